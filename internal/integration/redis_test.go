package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/cache"

	"github.com/google/uuid"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := cache.Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.NewRedis(rdb, "it:"+uuid.NewString()+":")
	type item struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}

	loads := 0
	load := func(context.Context) ([]item, error) {
		loads++
		return []item{{Name: "Katana", Price: 500}}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := cache.Fetch(ctx, c, "items", time.Minute, load)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Katana" {
			t.Fatalf("Fetch = %+v", got)
		}
	}
	if loads != 1 {
		t.Fatalf("loader ran %d times, want 1", loads)
	}

	if err := c.Delete(ctx, "items"); err != nil {
		t.Fatal(err)
	}
	var dst []item
	if ok, err := c.Get(ctx, "items", &dst); err != nil || ok {
		t.Fatalf("Get after Delete = %v, %v", ok, err)
	}
}
