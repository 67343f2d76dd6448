package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/gym-tcp-go/episodes"
	"github.com/ggoodman/gym-tcp-go/episodes/episodestest"
)

func TestRedisStore(t *testing.T) {
	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3, // Use separate DB for episode tests
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()
	defer client.FlushDB(ctx)

	episodestest.RunStoreTests(t, func(t *testing.T) episodes.Store {
		// A fresh prefix per test keeps the sorted-set indexes isolated.
		return NewWithClient(client, "gym:test:"+uuid.NewString()+":", 0)
	})
}
