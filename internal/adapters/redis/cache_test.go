package redisad

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type payload struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(mr.Addr(), "", 0)
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	in := payload{Name: "Shoreditch Heights", Rating: 4.8}
	if err := c.Set(ctx, "reviews:prop:1:true", in, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	ok, err := c.Get(ctx, "reviews:prop:1:true", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || out != in {
		t.Fatalf("round trip mismatch: ok=%v out=%+v", ok, out)
	}
}

func TestCache_MissIsNotError(t *testing.T) {
	c := newTestCache(t)

	var out payload
	ok, err := c.Get(context.Background(), "absent", &out)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestCache_Del(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "stats:30d", payload{Name: "x"}, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Del(ctx, "stats:30d"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var out payload
	if ok, _ := c.Get(ctx, "stats:30d", &out); ok {
		t.Fatalf("key should be gone after Del")
	}
}
