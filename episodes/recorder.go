package episodes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/internal/logctx"
)

// Recorder turns session events into Episodes. Its Observe method is an
// environment.Observer:
//
//	rec := episodes.NewRecorder(store)
//	sess, err := environment.Dial(ctx, host, port, environment.WithObserver(rec.Observe))
type Recorder struct {
	store  Store
	log    *slog.Logger
	worker int

	mu      sync.Mutex
	current *Episode
	last    *Episode
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger overrides the logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithWorker tags recorded episodes with a worker index.
func WithWorker(n int) RecorderOption {
	return func(r *Recorder) { r.worker = n }
}

// NewRecorder returns a Recorder saving into store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logctx.Wrap(r.log)
	return r
}

// Observe implements environment.Observer. A reset closes any open episode
// as incomplete and starts a new one; a step with done set completes it.
func (r *Recorder) Observe(ctx context.Context, ev environment.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Kind {
	case environment.EventReset:
		if err := r.finish(ctx, at, false); err != nil {
			return err
		}
		r.start(ev, at)
		return r.save(ctx, r.current)

	case environment.EventStep:
		if r.current == nil {
			r.start(ev, at)
		}
		r.current.Steps = ev.Step
		r.current.TotalReward += ev.Reward
		if ev.Done {
			return r.finish(ctx, at, true)
		}
		return nil
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}

// Flush saves the open episode, if any, as incomplete.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finish(ctx, time.Now(), false)
}

// Current returns a copy of the open episode, or nil.
func (r *Recorder) Current() *Episode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

// Last returns a copy of the most recently finished episode, or nil.
func (r *Recorder) Last() *Episode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.Clone()
}

func (r *Recorder) start(ev environment.Event, at time.Time) {
	r.current = &Episode{
		ID:        uuid.NewString(),
		Env:       ev.Env,
		Instance:  ev.Instance,
		Worker:    r.worker,
		StartedAt: at,
	}
}

func (r *Recorder) finish(ctx context.Context, at time.Time, completed bool) error {
	ep := r.current
	if ep == nil {
		return nil
	}
	ep.Completed = completed
	ep.EndedAt = &at
	r.current = nil
	r.last = ep

	ctx = logctx.WithEpisodeData(ctx, &logctx.EpisodeData{EpisodeID: ep.ID, Worker: ep.Worker})
	r.log.InfoContext(ctx, "episode.finish",
		slog.String("env", ep.Env),
		slog.Int("steps", ep.Steps),
		slog.Float64("total_reward", ep.TotalReward),
		slog.Bool("completed", completed),
	)
	return r.save(ctx, ep)
}

func (r *Recorder) save(ctx context.Context, ep *Episode) error {
	if err := r.store.Save(ctx, ep.Clone()); err != nil {
		return fmt.Errorf("save episode %s: %w", ep.ID, err)
	}
	return nil
}
