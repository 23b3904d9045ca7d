package tokens

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/redis/go-redis/v9"
)

func exerciseLocker(t *testing.T, locker Locker, key string) {
	t.Helper()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, key)
			if err != nil {
				t.Errorf("failed to lock: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most 1 holder, saw %d", maxActive)
	}
}

func TestLocalLocker(t *testing.T) {
	t.Run("mutual exclusion", func(t *testing.T) {
		l := NewLocalLocker()
		exerciseLocker(t, l, "spotify:user-1")

		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.locks) != 0 {
			t.Errorf("expected released locks to be dropped, got %d", len(l.locks))
		}
	})

	t.Run("independent keys", func(t *testing.T) {
		l := NewLocalLocker()
		unlockA, err := l.Lock(context.Background(), "a")
		if err != nil {
			t.Fatalf("failed to lock a: %v", err)
		}
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := l.Lock(ctx, "b")
		if err != nil {
			t.Fatalf("expected b to be free, got %v", err)
		}
		unlockB()
	})

	t.Run("context cancellation", func(t *testing.T) {
		l := NewLocalLocker()
		unlock, _ := l.Lock(context.Background(), "a")
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := l.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		l := NewLocalLocker()
		unlock, _ := l.Lock(context.Background(), "a")
		unlock()
		unlock()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		again, err := l.Lock(ctx, "a")
		if err != nil {
			t.Fatalf("expected relock to succeed, got %v", err)
		}
		again()
	})
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	prefix := "bubl_test_" + shared.GenerateID()[:8]

	t.Run("mutual exclusion", func(t *testing.T) {
		exerciseLocker(t, NewRedisLocker(client, prefix, time.Second), "spotify:user-1")
	})

	t.Run("lock expires", func(t *testing.T) {
		l := NewRedisLocker(client, prefix, 100*time.Millisecond)
		if _, err := l.Lock(context.Background(), "stuck"); err != nil {
			t.Fatalf("failed to lock: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		unlock, err := l.Lock(ctx, "stuck")
		if err != nil {
			t.Fatalf("expected abandoned lock to expire, got %v", err)
		}
		unlock()
	})
}
