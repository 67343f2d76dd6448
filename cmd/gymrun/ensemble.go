package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/episodes"
	"github.com/ggoodman/gym-tcp-go/internal/logctx"
)

func newEnsembleCmd(a *app) *cobra.Command {
	var (
		opts    runOptions
		workers int
	)
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "Run independent sessions concurrently, one per worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			g, gctx := errgroup.WithContext(ctx)
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					return runWorker(gctx, a, store, w, opts)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return printEpisodes(ctx, cmd.OutOrStdout(), store, a.cfg.Env, opts.listLimit)
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent sessions")
	return cmd
}

// runWorker owns one session; sessions share nothing but the episode store.
func runWorker(ctx context.Context, a *app, store episodes.Store, worker int, opts runOptions) error {
	ctx = logctx.WithEpisodeData(ctx, &logctx.EpisodeData{Worker: worker})
	rec := episodes.NewRecorder(store, episodes.WithWorker(worker), episodes.WithRecorderLogger(a.log))
	s, err := a.connect(ctx, environment.WithObserver(rec.Observe))
	if err != nil {
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	defer s.Close(context.WithoutCancel(ctx))

	p := newRandomPolicy(opts.seed+uint64(worker), opts.serverSample)
	if err := runSession(ctx, a.log, s, rec, p, opts); err != nil {
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	a.log.InfoContext(ctx, "ensemble.worker.done", slog.Int("worker", worker))
	return nil
}
