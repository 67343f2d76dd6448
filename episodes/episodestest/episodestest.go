// Package episodestest provides a conformance suite for episodes.Store
// implementations.
package episodestest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/gym-tcp-go/episodes"
)

// StoreFactory creates a new, empty Store for testing.
type StoreFactory func(t *testing.T) episodes.Store

// RunStoreTests runs the complete Store test suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("SaveReplaces", func(t *testing.T) { testSaveReplaces(t, factory) })
	t.Run("SaveRejectsInvalid", func(t *testing.T) { testSaveRejectsInvalid(t, factory) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, factory) })
	t.Run("ListFiltersByEnv", func(t *testing.T) { testListFiltersByEnv(t, factory) })
	t.Run("ListLimit", func(t *testing.T) { testListLimit(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
}

// Episode returns a valid episode of env that started at start.
func Episode(env string, start time.Time) *episodes.Episode {
	end := start.Add(time.Second)
	return &episodes.Episode{
		ID:          uuid.NewString(),
		Env:         env,
		Instance:    "inst-" + env,
		Steps:       10,
		TotalReward: 10,
		Completed:   true,
		StartedAt:   start.UTC(),
		EndedAt:     &end,
	}
}

func newStore(t *testing.T, factory StoreFactory) (episodes.Store, context.Context) {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return s, ctx
}

func save(t *testing.T, ctx context.Context, s episodes.Store, eps ...*episodes.Episode) {
	t.Helper()
	for _, e := range eps {
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s): %v", e.ID, err)
		}
	}
}

func ids(eps []*episodes.Episode) []string {
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.ID
	}
	return out
}

func testSaveAndGet(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	e := Episode("CartPole-v0", time.Unix(1700000000, 0))
	save(t, ctx, s, e)

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected episode")
	}
	if got.ID != e.ID || got.Env != e.Env || got.Steps != e.Steps || got.TotalReward != e.TotalReward || !got.Completed {
		t.Fatalf("unexpected episode %+v", got)
	}
	if !got.StartedAt.Equal(e.StartedAt) || got.EndedAt == nil || !got.EndedAt.Equal(*e.EndedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	// Mutating the saved value must not leak into the store.
	e.Steps = 99
	got, _ = s.Get(ctx, e.ID)
	if got.Steps != 10 {
		t.Fatalf("store aliases saved episode")
	}
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	got, err := s.Get(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func testSaveReplaces(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	e := Episode("CartPole-v0", time.Unix(1700000000, 0))
	e.Completed = false
	e.EndedAt = nil
	save(t, ctx, s, e)

	e.Steps, e.Completed = 25, true
	save(t, ctx, s, e)

	got, err := s.Get(ctx, e.ID)
	if err != nil || got == nil {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if got.Steps != 25 || !got.Completed {
		t.Fatalf("episode not replaced: %+v", got)
	}
	list, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one listed episode, got %d", len(list))
	}
}

func testSaveRejectsInvalid(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	for _, e := range []*episodes.Episode{
		{Env: "CartPole-v0"},
		{ID: uuid.NewString()},
	} {
		if err := s.Save(ctx, e); !errors.Is(err, episodes.ErrInvalidEpisode) {
			t.Fatalf("Save(%+v): expected ErrInvalidEpisode, got %v", e, err)
		}
	}
}

func testListNewestFirst(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	base := time.Unix(1700000000, 0)
	a := Episode("CartPole-v0", base)
	b := Episode("CartPole-v0", base.Add(2*time.Minute))
	c := Episode("CartPole-v0", base.Add(time.Minute))
	save(t, ctx, s, a, b, c)

	list, err := s.List(ctx, "CartPole-v0", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := ids(list)
	want := []string{b.ID, c.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func testListFiltersByEnv(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	base := time.Unix(1700000000, 0)
	cart := Episode("CartPole-v0", base)
	pong := Episode("Pong-v0", base.Add(time.Minute))
	save(t, ctx, s, cart, pong)

	list, err := s.List(ctx, "Pong-v0", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != pong.ID {
		t.Fatalf("unexpected filtered list %v", ids(list))
	}
	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 || all[0].ID != pong.ID {
		t.Fatalf("unexpected full list %v", ids(all))
	}
	none, err := s.List(ctx, "MountainCar-v0", 0)
	if err != nil {
		t.Fatalf("List none: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty list, got %v", ids(none))
	}
}

func testListLimit(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	base := time.Unix(1700000000, 0)
	var newest *episodes.Episode
	for i := 0; i < 5; i++ {
		newest = Episode("CartPole-v0", base.Add(time.Duration(i)*time.Second))
		save(t, ctx, s, newest)
	}
	list, err := s.List(ctx, "CartPole-v0", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != newest.ID {
		t.Fatalf("unexpected limited list %v", ids(list))
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	s, ctx := newStore(t, factory)
	e := Episode("CartPole-v0", time.Unix(1700000000, 0))
	save(t, ctx, s, e)

	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Get(ctx, e.ID)
	if err != nil || got != nil {
		t.Fatalf("expected deleted episode, got %+v, %v", got, err)
	}
	list, err := s.List(ctx, "CartPole-v0", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted episode still listed: %v", ids(list))
	}
	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
