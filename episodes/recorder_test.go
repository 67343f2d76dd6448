package episodes_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/episodes"
	"github.com/ggoodman/gym-tcp-go/episodes/memory"
	"github.com/ggoodman/gym-tcp-go/transport/transporttest"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.New(100)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return s
}

func TestRecorderEpisodeLifecycle(t *testing.T) {
	store := newStore(t)
	rec := episodes.NewRecorder(store, episodes.WithWorker(3))
	ctx := context.Background()
	start := time.Unix(1700000000, 0)

	events := []environment.Event{
		{Kind: environment.EventReset, Env: "CartPole-v0", Instance: "i1", Time: start},
		{Kind: environment.EventStep, Env: "CartPole-v0", Step: 1, Reward: 1, Time: start.Add(time.Second)},
		{Kind: environment.EventStep, Env: "CartPole-v0", Step: 2, Reward: 0.5, Done: true, Time: start.Add(2 * time.Second)},
	}
	for _, ev := range events {
		if err := rec.Observe(ctx, ev); err != nil {
			t.Fatalf("Observe(%s): %v", ev.Kind, err)
		}
	}

	if rec.Current() != nil {
		t.Fatalf("expected no open episode after done")
	}
	last := rec.Last()
	if last == nil || !last.Completed || last.Steps != 2 || last.TotalReward != 1.5 || last.Worker != 3 || last.Instance != "i1" {
		t.Fatalf("unexpected last episode %+v", last)
	}
	if last.Duration() != 2*time.Second {
		t.Fatalf("duration: got %v", last.Duration())
	}

	stored, err := store.Get(ctx, last.ID)
	if err != nil || stored == nil || !stored.Completed {
		t.Fatalf("completed episode not stored: %+v, %v", stored, err)
	}
}

func TestRecorderResetAbandonsOpenEpisode(t *testing.T) {
	store := newStore(t)
	rec := episodes.NewRecorder(store)
	ctx := context.Background()

	_ = rec.Observe(ctx, environment.Event{Kind: environment.EventReset, Env: "CartPole-v0"})
	_ = rec.Observe(ctx, environment.Event{Kind: environment.EventStep, Env: "CartPole-v0", Step: 1, Reward: 1})
	first := rec.Current()
	if first == nil {
		t.Fatalf("expected open episode")
	}
	_ = rec.Observe(ctx, environment.Event{Kind: environment.EventReset, Env: "CartPole-v0"})

	abandoned, err := store.Get(ctx, first.ID)
	if err != nil || abandoned == nil {
		t.Fatalf("abandoned episode not stored: %v", err)
	}
	if abandoned.Completed || abandoned.EndedAt == nil || abandoned.Steps != 1 {
		t.Fatalf("unexpected abandoned episode %+v", abandoned)
	}
	if cur := rec.Current(); cur == nil || cur.ID == first.ID {
		t.Fatalf("expected a new open episode")
	}

	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if rec.Current() != nil || store.Len() != 2 {
		t.Fatalf("flush did not close the open episode")
	}
}

func TestRecorderUnknownEvent(t *testing.T) {
	rec := episodes.NewRecorder(newStore(t))
	if err := rec.Observe(context.Background(), environment.Event{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown event kind")
	}
}

type failingStore struct{ episodes.Store }

func (failingStore) Save(context.Context, *episodes.Episode) error { return errors.New("boom") }

func TestRecorderSaveError(t *testing.T) {
	rec := episodes.NewRecorder(failingStore{})
	err := rec.Observe(context.Background(), environment.Event{Kind: environment.EventReset, Env: "CartPole-v0"})
	if err == nil {
		t.Fatalf("expected save error")
	}
}

func TestRecorderWithSession(t *testing.T) {
	srv := transporttest.NewServer(t)
	store := newStore(t)
	rec := episodes.NewRecorder(store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := environment.Dial(ctx, srv.Host(), srv.Port(), environment.WithObserver(rec.Observe))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close(ctx)

	if err := s.Make(ctx, "CartPole-v0"); err != nil {
		t.Fatalf("make: %v", err)
	}
	if _, err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for !s.Done() {
		if _, err := s.StepIndex(ctx, 0); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	list, err := store.List(ctx, "CartPole-v0", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || !list[0].Completed || list[0].Steps != 10 || list[0].TotalReward != 10 {
		t.Fatalf("unexpected episodes %+v", list)
	}
	if list[0].Instance != s.InstanceID() {
		t.Fatalf("instance not recorded")
	}
}
