package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

type mapCache map[string]any

func (m mapCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, nil
	}
	*(dst.(*[]string)) = v.([]string)
	return true, nil
}

func (m mapCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	m[key] = v
	return nil
}

func (m mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func TestFetchLoadsOnce(t *testing.T) {
	c := mapCache{}
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), c, "k", time.Minute, load)
		if err != nil || len(v) != 2 {
			t.Fatalf("Fetch = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := mapCache{}
	boom := errors.New("boom")
	_, err := Fetch(context.Background(), c, "k", time.Minute, func(context.Context) ([]string, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c["k"]; ok {
		t.Fatal("error result was cached")
	}
}

func TestNopAlwaysLoads(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, _ = Fetch(context.Background(), Nop{}, "k", time.Minute, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	c := NewRedis(rdb, "test:")
	if err := c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	ok, err := c.Get(ctx, "k", &got)
	if err != nil || !ok || got["a"] != 1 {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	_ = c.Delete(ctx, "k")
}
