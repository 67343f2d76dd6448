// Package memory provides an in-memory episodes.Store backed by
// github.com/hashicorp/golang-lru/v2. The least recently saved or read
// episodes are evicted once the store is full.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ggoodman/gym-tcp-go/episodes"
)

// DefaultMaxEpisodes is used by New when maxEpisodes is not positive.
const DefaultMaxEpisodes = 10_000

// Store implements episodes.Store.
type Store struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *episodes.Episode]
}

var _ episodes.Store = (*Store)(nil)

// New creates a store holding at most maxEpisodes episodes.
func New(maxEpisodes int) (*Store, error) {
	if maxEpisodes <= 0 {
		maxEpisodes = DefaultMaxEpisodes
	}
	cache, err := lru.New[string, *episodes.Episode](maxEpisodes)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Save implements episodes.Store.
func (s *Store) Save(ctx context.Context, e *episodes.Episode) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache.Add(e.ID, e.Clone())
	s.mu.Unlock()
	return nil
}

// Get implements episodes.Store.
func (s *Store) Get(ctx context.Context, id string) (*episodes.Episode, error) {
	s.mu.RLock()
	e, ok := s.cache.Get(id)
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

// List implements episodes.Store. It does not affect eviction order.
func (s *Store) List(ctx context.Context, env string, limit int) ([]*episodes.Episode, error) {
	s.mu.RLock()
	all := s.cache.Values()
	s.mu.RUnlock()

	var out []*episodes.Episode
	for _, e := range all {
		if env == "" || e.Env == env {
			out = append(out, e.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b *episodes.Episode) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements episodes.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.cache.Remove(id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored episodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Close implements episodes.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}
