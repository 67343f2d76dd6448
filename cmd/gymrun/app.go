package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggoodman/gym-tcp-go/config"
	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/episodes"
	"github.com/ggoodman/gym-tcp-go/episodes/memory"
	"github.com/ggoodman/gym-tcp-go/episodes/redis"
	"github.com/ggoodman/gym-tcp-go/transport"
)

// app carries state shared by subcommands.
type app struct {
	envFiles []string
	envName  string

	cfg *config.Config
	log *slog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	if a.envName != "" {
		cfg.Env = a.envName
	}
	a.cfg = cfg
	a.log = cfg.Logger(os.Stderr)
	return nil
}

func (a *app) openStore(ctx context.Context) (episodes.Store, error) {
	if rc, ok := a.cfg.RedisConfig(); ok {
		s, err := redis.New(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("open redis episode store: %w", err)
		}
		a.log.InfoContext(ctx, "episodes.store.redis", slog.String("addr", rc.Addr))
		return s, nil
	}
	s, err := memory.New(a.cfg.EpisodesMax)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// connect dials a session, makes the configured environment and applies the
// configured seed, compression and render settings.
func (a *app) connect(ctx context.Context, opts ...environment.Option) (*environment.Session, error) {
	cfg := a.cfg
	opts = append([]environment.Option{
		environment.WithLogger(a.log),
		environment.WithRender(cfg.Render),
		environment.WithTransportOptions(transport.WithDialTimeout(cfg.DialTimeout)),
	}, opts...)
	if !cfg.InstanceAck {
		opts = append(opts, environment.WithoutInstanceAck())
	}

	s, err := environment.Dial(ctx, cfg.Host, cfg.Port, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.setup(ctx, s); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (a *app) setup(ctx context.Context, s *environment.Session) error {
	cfg := a.cfg
	if err := s.Make(ctx, cfg.Env); err != nil {
		return err
	}
	if seed, ok, _ := cfg.SeedValue(); ok {
		if err := s.Seed(ctx, seed); err != nil {
			return err
		}
	}
	if cfg.Compression > 0 {
		if err := s.Compression(ctx, cfg.Compression); err != nil {
			return err
		}
	}
	return nil
}
