package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := l.RecordFailure(ctx, "john", ""); err != nil {
			t.Fatalf("failure %d: unexpected %v", i, err)
		}
		if err := l.Check(ctx, "john", ""); err != nil {
			t.Fatalf("check after %d failures: %v", i, err)
		}
	}
	if err := l.RecordFailure(ctx, "john", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third failure: expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "john", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected throttled check, got %v", err)
	}
	if err := l.Check(ctx, "asraf", ""); err != nil {
		t.Fatalf("other identity must not be throttled: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "john", "")
	if err := l.Check(ctx, "john", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected throttled, got %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "john", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestLimiterResetClearsIdentityOnly(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "john", "10.0.0.1")
	_ = l.RecordFailure(ctx, "john", "10.0.0.1")
	if err := l.Reset(ctx, "john"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := l.Attempts(ctx, "john")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d, %v", n, err)
	}
	if err := l.Check(ctx, "john", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP counter to survive reset, got %v", err)
	}
	if err := l.Check(ctx, "john", "10.0.0.2"); err != nil {
		t.Fatalf("other IP: %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	mr.Close()

	if err := l.Check(context.Background(), "john", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.RecordFailure(context.Background(), "john", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestLimiterKeysAreUnambiguous(t *testing.T) {
	l := New(nil, Config{})
	if l.identityKey("a:1") == l.identityKey("a") {
		t.Fatal("identity keys collide")
	}
	if got := l.identityKey("john"); got != "gs:lf:4:john" {
		t.Fatalf("unexpected key %q", got)
	}
}
