package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// openTestRedis connects to the Redis named by REDIS_URL, or skips.
// Keys are namespaced per test run and cleaned up afterwards.
func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping redis backend tests")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisPutGetRoundTrip(t *testing.T) {
	// WHAT: Products written for (query, vendor) come back on Get, with
	// price bounds and image policy applied on read.
	// WHY: The redis backend must honor the same Store contract as SQLite.
	client := openTestRedis(t)
	r := NewRedis(client, Config{TTL: time.Minute})
	ctx := context.Background()

	query := "laptop-" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, r.key(query, "Amazon")) })

	if err := r.Put(ctx, query, "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := r.Get(ctx, query, "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d products, want 3", len(got))
	}
	for _, p := range got {
		if p.ImageURL != "" {
			t.Errorf("image leaked with ShowImages off: %q", p.ImageURL)
		}
	}

	bounded, err := r.Get(ctx, query, "Amazon", 40000, 45000)
	if err != nil {
		t.Fatalf("bounded get: %v", err)
	}
	if len(bounded) != 1 || bounded[0].Name != "HP Pavilion 14" {
		t.Fatalf("bounds: got %d products, want only HP Pavilion 14", len(bounded))
	}
}

func TestRedisMiss(t *testing.T) {
	// WHAT: An absent key is a miss, not an error.
	// WHY: Callers downgrade errors to misses; an absent key is not even that.
	client := openTestRedis(t)
	r := NewRedis(client, Config{})

	got, err := r.Get(context.Background(), "never-cached-"+uuid.NewString(), "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d products, want 0", len(got))
	}
}
