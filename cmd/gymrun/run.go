package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/episodes"
)

type runOptions struct {
	episodes     int
	maxSteps     int
	serverSample bool
	seed         uint64
	monitorDir   string
	stats        bool
	listLimit    int
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.episodes, "episodes", 1, "episodes to run per session")
	f.IntVar(&o.maxSteps, "max-steps", 1000, "step limit per episode")
	f.BoolVar(&o.serverSample, "server-sample", false, "sample discrete actions on the server")
	f.Uint64Var(&o.seed, "policy-seed", uint64(time.Now().UnixNano()), "seed for the local random policy")
	f.StringVar(&o.monitorDir, "monitor", "", "record videos into this server-side directory")
	f.BoolVar(&o.stats, "stats", false, "enable server-side episode statistics")
	f.IntVar(&o.listLimit, "list", 20, "recorded episodes to print when done (0 prints none)")
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a random agent for a number of episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec := episodes.NewRecorder(store, episodes.WithRecorderLogger(a.log))
			s, err := a.connect(ctx, environment.WithObserver(rec.Observe))
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			if err := runSession(ctx, a.log, s, rec, newRandomPolicy(opts.seed, opts.serverSample), opts); err != nil {
				return err
			}
			return printEpisodes(ctx, cmd.OutOrStdout(), store, a.cfg.Env, opts.listLimit)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runSession(ctx context.Context, log *slog.Logger, s *environment.Session, rec *episodes.Recorder, p *randomPolicy, opts runOptions) error {
	if opts.stats {
		if err := s.RecordEpisodeStatistics(ctx); err != nil {
			return err
		}
	}
	if opts.monitorDir != "" {
		if err := s.MonitorStart(ctx, opts.monitorDir, true, false); err != nil {
			return err
		}
	}

	for i := 0; i < opts.episodes; i++ {
		if err := runEpisode(ctx, s, p, opts.maxSteps); err != nil {
			_ = rec.Flush(context.WithoutCancel(ctx))
			return fmt.Errorf("episode %d: %w", i+1, err)
		}
	}
	if err := rec.Flush(ctx); err != nil {
		return err
	}

	if opts.monitorDir != "" {
		if err := s.MonitorClose(ctx); err != nil {
			return err
		}
		if u, err := s.URL(ctx); err == nil {
			log.InfoContext(ctx, "monitor.url", slog.String("url", u))
		}
	}
	return nil
}

// runEpisode resets s and steps until done or maxSteps.
func runEpisode(ctx context.Context, s *environment.Session, p *randomPolicy, maxSteps int) error {
	if _, err := s.Reset(ctx); err != nil {
		return err
	}
	for step := 0; step < maxSteps && !s.Done(); step++ {
		action, err := p.act(ctx, s)
		if err != nil {
			return err
		}
		if _, err := s.Step(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

func printEpisodes(ctx context.Context, w io.Writer, store episodes.Store, env string, limit int) error {
	if limit <= 0 {
		return nil
	}
	list, err := store.List(ctx, env, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range list {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
