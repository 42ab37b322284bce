package rate

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	burst := 1

	interval := 10 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, 100, lim)

	tooshort := 1 * time.Millisecond

	key := "courses"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Allow(key); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterWait(t *testing.T) {
	burst := 2

	interval := 50 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, 100, lim)

	key := "enrollments"
	for i := 0; i < burst; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		if err := r.Wait(ctx, key); err != nil {
			t.Fatalf("request %d within burst should not block: %v", i, err)
		}
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx, key); err == nil {
		t.Fatal("request beyond burst should fail when the context expires first")
	}

	if err := r.Wait(context.Background(), key); err != nil {
		t.Fatalf("request beyond burst should succeed when allowed to block: %v", err)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	burst := 1

	lim := Every(time.Minute)
	r := NewLimiter(burst, 100, lim)

	if got := r.Allow("courses"); !got {
		t.Fatal("first request for key should pass")
	}
	if got := r.Allow("courses"); got {
		t.Fatal("second request for key should be throttled")
	}
	if got := r.Allow("reviews"); !got {
		t.Fatal("request for a fresh key should pass")
	}
}
