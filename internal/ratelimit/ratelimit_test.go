package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.expires[key] = ttl
	return nil
}

func fixedDay(day string) func() time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestHitCountsPerUserPerDay(t *testing.T) {
	store := newFakeCounter()
	limiter := New(Options{Store: store, Logger: zerolog.Nop(), Now: fixedDay("2026-08-29")})

	for want := int64(1); want <= 3; want++ {
		got, err := limiter.Hit(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	key := "rate_limit:u1:2026-08-29"
	if store.counts[key] != 3 {
		t.Fatalf("stored count = %d, want 3", store.counts[key])
	}
}

func TestHitArmsExpiryOnceOnFirstIncrement(t *testing.T) {
	store := newFakeCounter()
	limiter := New(Options{Store: store, Logger: zerolog.Nop(), Now: fixedDay("2026-08-29")})

	for i := 0; i < 3; i++ {
		if _, err := limiter.Hit(context.Background(), "u1"); err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
	}

	key := "rate_limit:u1:2026-08-29"
	if len(store.expires) != 1 {
		t.Fatalf("expire calls = %d, want 1", len(store.expires))
	}
	if store.expires[key] != 24*time.Hour {
		t.Fatalf("ttl = %v, want 24h", store.expires[key])
	}
}

func TestHitStartsFreshCountAfterRollover(t *testing.T) {
	store := newFakeCounter()
	day := "2026-08-29"
	limiter := New(Options{Store: store, Logger: zerolog.Nop(), Now: func() time.Time {
		t, _ := time.Parse("2006-01-02", day)
		return t
	}})

	for i := 0; i < 2; i++ {
		if _, err := limiter.Hit(context.Background(), "u1"); err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
	}

	day = "2026-08-30"
	got, err := limiter.Hit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if got != 1 {
		t.Fatalf("count after rollover = %d, want 1", got)
	}
	if store.expires["rate_limit:u1:2026-08-30"] != 24*time.Hour {
		t.Fatal("expected fresh expiry on the new day's key")
	}
}

func TestHitIsolatesUsers(t *testing.T) {
	store := newFakeCounter()
	limiter := New(Options{Store: store, Logger: zerolog.Nop(), Now: fixedDay("2026-08-29")})

	if _, err := limiter.Hit(context.Background(), "u1"); err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	got, err := limiter.Hit(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if got != 1 {
		t.Fatalf("u2 count = %d, want 1", got)
	}
}

func TestHitPropagatesStoreError(t *testing.T) {
	store := newFakeCounter()
	store.incrErr = fmt.Errorf("connection refused")
	limiter := New(Options{Store: store, Logger: zerolog.Nop(), Now: fixedDay("2026-08-29")})

	_, err := limiter.Hit(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if !errors.Is(err, store.incrErr) {
		t.Fatalf("error does not wrap store error: %v", err)
	}
}
