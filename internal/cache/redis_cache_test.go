package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisCache(rdb, ttl)
}

func TestRedisCache_StoreCompleted_Success(t *testing.T) {
	t.Parallel()

	mr, cache := newTestCache(t, 10*time.Second)

	ctx := context.Background()
	completedAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreCompleted(ctx, "r-42", "call-123", completedAt); err != nil {
		t.Fatalf("StoreCompleted() error: %v", err)
	}

	k := "reminder:call:r-42"

	if !mr.Exists(k) {
		t.Fatalf("expected key %q to exist", k)
	}
	if ttl := mr.TTL(k); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(k)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", k, err)
	}

	var got completedValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.CallSID != "call-123" {
		t.Fatalf("expected CallSID %q, got %q", "call-123", got.CallSID)
	}
	if !got.CompletedAt.Equal(completedAt) {
		t.Fatalf("expected CompletedAt %v, got %v", completedAt, got.CompletedAt)
	}
}

func TestRedisCache_LookupCompleted(t *testing.T) {
	t.Parallel()

	mr, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok, err := cache.LookupCompleted(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.StoreCompleted(ctx, "r1", "first", time.Now()); err != nil {
		t.Fatalf("first StoreCompleted() error: %v", err)
	}
	if err := cache.StoreCompleted(ctx, "r1", "second", time.Now()); err != nil {
		t.Fatalf("second StoreCompleted() error: %v", err)
	}

	sid, ok, err := cache.LookupCompleted(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if sid != "second" {
		t.Fatalf("expected overwritten call sid %q, got %q", "second", sid)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.LookupCompleted(ctx, "r1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestRedisCache_StoreCompleted_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, cache := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreCompleted(ctx, "r1", "x", time.Now()); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
