package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSetRoundTrip(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("expected hit v=%q, got v=%q ok=%v err=%v", "v", v, ok, err)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected expired miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryGetOrFetchInvokesProducerOnceOnMiss(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	calls := 0

	producer := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("produced"), nil
	}

	v, err := c.GetOrFetch(ctx, "k", time.Minute, producer)
	if err != nil || string(v) != "produced" {
		t.Fatalf("unexpected result v=%q err=%v", v, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 producer call, got %d", calls)
	}

	// Second call should hit the cache, not invoke producer again.
	v, err = c.GetOrFetch(ctx, "k", time.Minute, producer)
	if err != nil || string(v) != "produced" {
		t.Fatalf("unexpected cached result v=%q err=%v", v, err)
	}
	if calls != 1 {
		t.Fatalf("expected producer not called again, total calls=%d", calls)
	}
}

func TestMemoryGetOrFetchPropagatesProducerError(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	wantErr := errors.New("boom")

	_, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("failed producer must not populate the cache")
	}
}

func TestMemoryGetOrFetchSkipsEmptyResult(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) ([]byte, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("empty producer result must not be cached")
	}
}
