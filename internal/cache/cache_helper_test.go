package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedTest struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelperGetSet(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestHelper(t)

	original := cachedTest{ID: 1, Title: "Algebra quiz"}
	if err := helper.Set(ctx, "1", original, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got cachedTest
	if err := helper.Get(ctx, "1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != original {
		t.Errorf("got %+v, want %+v", got, original)
	}

	// Prefix must be applied to the stored key.
	if !mr.Exists("test:1") {
		t.Error("key stored without prefix")
	}
}

func TestCacheHelperMiss(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t)

	var got cachedTest
	if err := helper.Get(ctx, "missing", &got); err != ErrCacheNotFound {
		t.Errorf("err = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelperExpiry(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestHelper(t)

	if err := helper.Set(ctx, "1", cachedTest{ID: 1}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	var got cachedTest
	if err := helper.Get(ctx, "1", &got); err != ErrCacheNotFound {
		t.Errorf("err after TTL = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelperDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t)

	if err := helper.SetString(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := helper.SetString(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	exists, err := helper.Exists(ctx, "a")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}

	if err := helper.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = helper.Exists(ctx, "a")
	if err != nil || exists {
		t.Errorf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
}

func TestCacheHelperInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestHelper(t)

	for _, key := range []string{"assignment:1", "assignment:2", "other:1"} {
		if err := helper.SetString(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("SetString failed: %v", err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "assignment:*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	if mr.Exists("test:assignment:1") || mr.Exists("test:assignment:2") {
		t.Error("matching keys survived invalidation")
	}
	if !mr.Exists("test:other:1") {
		t.Error("non-matching key was invalidated")
	}
}

func TestCacheHelperNilClientDegrades(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "test:")

	// Writes are no-ops, reads report unavailability.
	if err := helper.Set(ctx, "1", cachedTest{}, time.Minute); err != nil {
		t.Errorf("Set with nil client = %v, want nil", err)
	}
	var got cachedTest
	if err := helper.Get(ctx, "1", &got); err != ErrCacheNotAvailable {
		t.Errorf("Get with nil client = %v, want ErrCacheNotAvailable", err)
	}
	if err := helper.Delete(ctx, "1"); err != nil {
		t.Errorf("Delete with nil client = %v, want nil", err)
	}
}

func TestCacheOrExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches on miss", func(t *testing.T) {
		helper, _ := newTestHelper(t)

		calls := 0
		var got cachedTest
		err := helper.CacheOrExecute(ctx, "1", &got, time.Minute, func() (interface{}, error) {
			calls++
			return cachedTest{ID: 1, Title: "fetched"}, nil
		})
		if err != nil {
			t.Fatalf("CacheOrExecute failed: %v", err)
		}
		if calls != 1 {
			t.Errorf("fetch called %d times, want 1", calls)
		}
		if got.Title != "fetched" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("skips fetch on hit", func(t *testing.T) {
		helper, _ := newTestHelper(t)

		if err := helper.Set(ctx, "1", cachedTest{ID: 1, Title: "cached"}, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		var got cachedTest
		err := helper.CacheOrExecute(ctx, "1", &got, time.Minute, func() (interface{}, error) {
			t.Fatal("fetch called despite cache hit")
			return nil, nil
		})
		if err != nil {
			t.Fatalf("CacheOrExecute failed: %v", err)
		}
		if got.Title != "cached" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("works without a client", func(t *testing.T) {
		helper := NewCacheHelper(nil, "test:")

		var got cachedTest
		err := helper.CacheOrExecute(ctx, "1", &got, time.Minute, func() (interface{}, error) {
			return cachedTest{ID: 7}, nil
		})
		if err != nil {
			t.Fatalf("CacheOrExecute failed: %v", err)
		}
		if got.ID != 7 {
			t.Errorf("got %+v", got)
		}
	})
}
