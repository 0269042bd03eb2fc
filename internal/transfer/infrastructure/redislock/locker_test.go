package redislock_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"certificate-transfer/internal/transfer/infrastructure/redislock"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

func TestLocker_ExcludesSecondHolder(t *testing.T) {
	client := newTestClient(t)
	prefix := "transfer-test:" + uuid.NewString() + ":"
	locker, err := redislock.New(client, redislock.WithKeyPrefix(prefix), redislock.WithRetryInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}

	release, err := locker.Lock(context.Background(), "org-b", "org-a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "org-a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while held, got %v", err)
	}
	// The failed attempt must not have left org-a behind.
	if n, err := client.Exists(context.Background(), prefix+"org-a").Result(); err != nil || n != 1 {
		t.Fatalf("expected org-a still held, n=%d err=%v", n, err)
	}

	release()
	release()

	again, err := locker.Lock(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
	if n, err := client.Exists(context.Background(), prefix+"org-a", prefix+"org-b").Result(); err != nil || n != 0 {
		t.Fatalf("expected keys released, n=%d err=%v", n, err)
	}
}

func TestLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := newTestClient(t)
	prefix := "transfer-test:" + uuid.NewString() + ":"
	var logs bytes.Buffer
	locker, err := redislock.New(client, redislock.WithKeyPrefix(prefix), redislock.WithLogger(log.New(&logs, "", 0)))
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	ctx := context.Background()

	release, err := locker.Lock(ctx, "org-a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := client.Set(ctx, prefix+"org-a", "someone-else", time.Minute).Err(); err != nil {
		t.Fatalf("set foreign token: %v", err)
	}
	release()

	value, err := client.Get(ctx, prefix+"org-a").Result()
	if err != nil || value != "someone-else" {
		t.Fatalf("foreign lock removed: value=%q err=%v", value, err)
	}
	if !strings.Contains(logs.String(), "lock lost") {
		t.Fatalf("expected a lost lock warning, got %q", logs.String())
	}
	_ = client.Del(ctx, prefix+"org-a").Err()
}

func TestLocker_ExtendsWhileHeld(t *testing.T) {
	client := newTestClient(t)
	prefix := "transfer-test:" + uuid.NewString() + ":"
	locker, err := redislock.New(client, redislock.WithKeyPrefix(prefix), redislock.WithTTL(90*time.Millisecond))
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	ctx := context.Background()

	release, err := locker.Lock(ctx, "org-a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if n, err := client.Exists(ctx, prefix+"org-a").Result(); err != nil || n != 1 {
		t.Fatalf("expected the lock to outlive its ttl while held, n=%d err=%v", n, err)
	}
	release()
	if n, err := client.Exists(ctx, prefix+"org-a").Result(); err != nil || n != 0 {
		t.Fatalf("expected the lock released, n=%d err=%v", n, err)
	}
}

func TestNew_RejectsNilClient(t *testing.T) {
	if _, err := redislock.New(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
