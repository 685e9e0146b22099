package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/goleak"

	"github.com/ravelchat/ravel/internal/log"
	"github.com/ravelchat/ravel/internal/store"
)

// setupRedis starts a Redis container and returns a connected store.
// Skipped in short mode because container startup takes seconds.
func setupRedis(t *testing.T) *store.Redis {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	r, err := store.NewRedis(ctx, store.RedisConfig{
		Addr:   strings.TrimPrefix(connStr, "redis://"),
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
	})

	return r
}

func TestRedisPutGetDelete(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, "sess:chat(1)"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get on absent key: got %v, want ErrNotFound", err)
	}

	if err := r.Put(ctx, "sess:chat(1)", []byte(`{"id":"chat(1)"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := r.Get(ctx, "sess:chat(1)")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"id":"chat(1)"}` {
		t.Fatalf("Get: got %q", got)
	}

	if err := r.Delete(ctx, "sess:chat(1)"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Deleting an absent key is not an error.
	if err := r.Delete(ctx, "sess:chat(1)"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if _, err := r.Get(ctx, "sess:chat(1)"); err == nil {
		t.Fatal("Get after Delete: expected error")
	}
}

func TestRedisListPrefix(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	keys := []string{
		"msg:chat(10):user(1)",
		"msg:chat(10):assistant(1)",
		"msg:chat(11):user(1)",
		"art:chat(10):user(1)_code(1)",
	}
	for _, k := range keys {
		if err := r.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	got, err := r.List(ctx, "msg:chat(10):")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List: got %d keys %v, want 2", len(got), got)
	}
	for _, k := range got {
		if !strings.HasPrefix(k, "msg:chat(10):") {
			t.Errorf("List returned key outside prefix: %s", k)
		}
	}

	empty, err := r.List(ctx, "nope:")
	if err != nil {
		t.Fatalf("List empty prefix: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("List empty prefix: got %v", empty)
	}
}

func TestRedisAtomicIncrement(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := setupRedis(t)
	ctx := context.Background()

	first, err := r.AtomicIncrement(ctx, "ctr:chat(1):user")
	if err != nil {
		t.Fatalf("AtomicIncrement: %v", err)
	}
	if first != 1 {
		t.Fatalf("first increment: got %d, want 1", first)
	}

	const goroutines = 50
	results := make(chan int64, goroutines)
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			n, err := r.AtomicIncrement(ctx, "ctr:chat(1):user")
			if err != nil {
				errs <- err
				return
			}
			results <- n
		}()
	}

	seen := make(map[int64]bool)
	deadline := time.After(30 * time.Second)
	for i := 0; i < goroutines; i++ {
		select {
		case n := <-results:
			if seen[n] {
				t.Fatalf("duplicate counter value %d", n)
			}
			seen[n] = true
		case err := <-errs:
			t.Fatalf("AtomicIncrement: %v", err)
		case <-deadline:
			t.Fatal("timed out waiting for increments")
		}
	}
	for n := int64(2); n <= goroutines+1; n++ {
		if !seen[n] {
			t.Fatalf("missing counter value %d", n)
		}
	}
}

func TestRedisPing(t *testing.T) {
	r := setupRedis(t)
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
