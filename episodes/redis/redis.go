// Package redis provides an episodes.Store backed by Redis.
//
// Each episode is stored as JSON under <prefix>ep:<id>. Sorted sets
// <prefix>env:<env> and <prefix>all index episode IDs by start time for
// List.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/gym-tcp-go/episodes"
)

// DefaultKeyPrefix is used when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "gym:episodes:"

// Config for a Redis-backed Store. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: EPISODES_REDIS_ADDR
	Addr string `env:"EPISODES_REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: EPISODES_KEY_PREFIX
	KeyPrefix string `env:"EPISODES_KEY_PREFIX,default=gym:episodes:"`
	// TTL expires stored episodes; zero keeps them. ENV: EPISODES_TTL
	TTL time.Duration `env:"EPISODES_TTL"`
}

// Store implements episodes.Store.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	owned     bool
}

var _ episodes.Store = (*Store)(nil)

// New connects to cfg.Addr and verifies the connection. Close closes the
// client.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	s := NewWithClient(cl, cfg.KeyPrefix, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode episodes config: %w", err)
	}
	return New(ctx, cfg)
}

// NewWithClient wraps an existing client. Close leaves the client open.
func NewWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// --- Key helpers ---

func (s *Store) episodeKey(id string) string { return s.keyPrefix + "ep:" + id }
func (s *Store) envKey(env string) string   { return s.keyPrefix + "env:" + env }
func (s *Store) allKey() string             { return s.keyPrefix + "all" }

func (s *Store) indexKey(env string) string {
	if env == "" {
		return s.allKey()
	}
	return s.envKey(env)
}

// Save implements episodes.Store.
func (s *Store) Save(ctx context.Context, e *episodes.Episode) error {
	if err := e.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}
	z := redis.Z{Score: float64(e.StartedAt.UnixNano()), Member: e.ID}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.episodeKey(e.ID), data, s.ttl)
		p.ZAdd(ctx, s.envKey(e.Env), z)
		p.ZAdd(ctx, s.allKey(), z)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save episode %s: %w", e.ID, err)
	}
	return nil
}

// Get implements episodes.Store.
func (s *Store) Get(ctx context.Context, id string) (*episodes.Episode, error) {
	data, err := s.client.Get(ctx, s.episodeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get episode %s: %w", id, err)
	}
	var e episodes.Episode
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode %s: %w", id, err)
	}
	return &e, nil
}

// List implements episodes.Store. Index entries whose episode has expired are
// skipped and pruned.
func (s *Store) List(ctx context.Context, env string, limit int) ([]*episodes.Episode, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(env), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.episodeKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load episodes: %w", err)
	}

	out := make([]*episodes.Episode, 0, len(vals))
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var e episodes.Episode
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal episode %s: %w", ids[i], err)
		}
		out = append(out, &e)
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, s.indexKey(env), stale...).Err()
	}
	return out, nil
}

// Delete implements episodes.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.episodeKey(id))
		p.ZRem(ctx, s.allKey(), id)
		if e != nil {
			p.ZRem(ctx, s.envKey(e.Env), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete episode %s: %w", id, err)
	}
	return nil
}

// Close closes the client when the Store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
