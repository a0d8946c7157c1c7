package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("missing key error = %v, want ErrCacheMiss", err)
	}

	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want v", got)
	}

	if err := m.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("deleted key error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryProviderTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	if err := m.Set(ctx, "k", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryProviderSetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	stored, err := m.SetNX(ctx, "k", []byte("first"), 0)
	if err != nil || !stored {
		t.Fatalf("first SetNX = (%v, %v), want stored", stored, err)
	}
	stored, err = m.SetNX(ctx, "k", []byte("second"), 0)
	if err != nil || stored {
		t.Fatalf("second SetNX = (%v, %v), want not stored", stored, err)
	}

	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "first" {
		t.Fatalf("value = %q (%v), want first", got, err)
	}
}

func TestMemoryProviderCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	src := []byte("original")
	if err := m.Set(ctx, "k", src, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	src[0] = 'X'

	got, _ := m.Get(ctx, "k")
	if string(got) != "original" {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}
}

func TestNoopProviderAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	p := NoopProvider{}

	if err := p.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("noop Get error = %v, want ErrCacheMiss", err)
	}
}
