package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testPool(t *testing.T, keys []string, rpm int) *Pool {
	t.Helper()
	p, err := NewPool("test", keys, rpm, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

// fakeClock drives the pool's notion of now without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestNewPoolRejectsEmpty(t *testing.T) {
	if _, err := NewPool("main", nil, 10, zerolog.Nop()); err == nil {
		t.Error("expected error for empty key list")
	}
	if _, err := NewPool("main", []string{"k"}, 0, zerolog.Nop()); err == nil {
		t.Error("expected error for zero rpm limit")
	}
}

func TestLeaseImmediateWhenWindowEmpty(t *testing.T) {
	p := testPool(t, []string{"a", "b"}, 5)

	cred, err := p.Lease(context.Background())
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if cred.Secret() != "a" {
		t.Errorf("expected first key, got %q", cred.Secret())
	}
}

func TestLeaseRotatesRoundRobin(t *testing.T) {
	p := testPool(t, []string{"a", "b", "c"}, 5)

	var got []string
	for i := 0; i < 6; i++ {
		cred, err := p.Lease(context.Background())
		if err != nil {
			t.Fatalf("Lease %d: %v", i, err)
		}
		got = append(got, cred.Secret())
	}
	want := []string{"a", "b", "c", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation order %v, want %v", got, want)
		}
	}
}

func TestWindowExhaustionBlocksUntilOldestExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := testPool(t, []string{"only"}, 3)
	p.now = clock.now

	// Spend the full budget; each lease reserves its slot.
	for i := 0; i < 3; i++ {
		cred, wait := p.tryLease()
		if cred == nil {
			t.Fatalf("lease %d should be available, wait=%v", i, wait)
		}
		clock.advance(time.Second)
	}

	cred, wait := p.tryLease()
	if cred != nil {
		t.Fatal("expected exhausted pool")
	}
	// Oldest dispatch was 3 s ago, so availability is ~57 s out.
	if wait < 56*time.Second || wait > 58*time.Second {
		t.Errorf("predicted wait %v, want ~57s", wait)
	}

	clock.advance(58 * time.Second)
	if cred, _ := p.tryLease(); cred == nil {
		t.Error("credential should be available after the oldest entry aged out")
	}
}

// Budget is committed at lease time, before any request goes out, so
// lessees racing between lease and dispatch cannot push a key past its
// rpm limit.
func TestLeaseReservesSlotImmediately(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := testPool(t, []string{"k"}, 2)
	p.now = clock.now

	for i := 0; i < 2; i++ {
		if cred, _ := p.tryLease(); cred == nil {
			t.Fatalf("lease %d should be available", i)
		}
	}

	// Neither lessee has dispatched yet; the budget is already spent.
	cred, wait := p.tryLease()
	if cred != nil {
		t.Fatal("third lease should wait for a slot to age out")
	}
	if wait < 59*time.Second || wait > 61*time.Second {
		t.Errorf("predicted wait %v, want ~60s", wait)
	}
}

// Credential-limit safety: replay a burst of leases through a fake clock and
// assert no 60 s span ever exceeds the rpm budget.
func TestSlidingWindowNeverExceedsBudget(t *testing.T) {
	const rpm = 5
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := testPool(t, []string{"k"}, rpm)
	p.now = clock.now

	var dispatches []time.Time
	for i := 0; i < 60; i++ {
		for {
			cred, wait := p.tryLease()
			if cred != nil {
				dispatches = append(dispatches, clock.now())
				break
			}
			clock.advance(wait)
		}
		clock.advance(500 * time.Millisecond)
	}

	for i := range dispatches {
		count := 0
		for j := i; j < len(dispatches); j++ {
			if dispatches[j].Sub(dispatches[i]) < windowSpan {
				count++
			}
		}
		if count > rpm {
			t.Fatalf("window starting at %v holds %d dispatches, budget %d",
				dispatches[i], count, rpm)
		}
	}
}

func TestRecordThrottledBacksOffExponentially(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := testPool(t, []string{"k"}, 100)
	p.now = clock.now

	cred, _ := p.tryLease()
	if cred == nil {
		t.Fatal("expected lease")
	}

	p.RecordThrottled(cred)
	first := cred.blockedUntil.Sub(clock.now())
	// 2^1 = 2 s plus up to 1 s jitter.
	if first < 2*time.Second || first > 3*time.Second {
		t.Errorf("first backoff %v, want 2s..3s", first)
	}
	if c, _ := p.tryLease(); c != nil {
		t.Error("throttled credential should not lease")
	}

	p.RecordThrottled(cred)
	second := cred.blockedUntil.Sub(clock.now())
	if second < 4*time.Second || second > 5*time.Second {
		t.Errorf("second backoff %v, want 4s..5s", second)
	}

	// Backoff is capped at 64 s.
	for i := 0; i < 10; i++ {
		p.RecordThrottled(cred)
	}
	capped := cred.blockedUntil.Sub(clock.now())
	if capped > maxBackoff+time.Second {
		t.Errorf("backoff %v exceeds cap %v", capped, maxBackoff)
	}
}

func TestThrottleEpisodesReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := testPool(t, []string{"k"}, 100)
	p.now = clock.now

	cred, _ := p.tryLease()
	p.RecordThrottled(cred)
	p.RecordThrottled(cred)
	p.RecordThrottled(cred)

	// A quiet stretch ends the episode; the next throttle starts over.
	clock.advance(10 * time.Minute)
	p.RecordThrottled(cred)
	backoff := cred.blockedUntil.Sub(clock.now())
	if backoff < 2*time.Second || backoff > 3*time.Second {
		t.Errorf("post-episode backoff %v, want 2s..3s", backoff)
	}
}

func TestLeaseHonorsContextCancel(t *testing.T) {
	p := testPool(t, []string{"k"}, 1)

	if _, err := p.Lease(context.Background()); err != nil {
		t.Fatalf("Lease: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Lease(ctx); err == nil {
		t.Error("expected context error while pool is exhausted")
	}
}

func TestPoolsAreDisjoint(t *testing.T) {
	main := testPool(t, []string{"m"}, 1)
	tournament := testPool(t, []string{"t"}, 1)

	if _, err := main.Lease(context.Background()); err != nil {
		t.Fatalf("Lease: %v", err)
	}

	// Exhausting main must not affect the tournament pool.
	if c, _ := tournament.tryLease(); c == nil {
		t.Error("tournament pool should be unaffected by main exhaustion")
	}
}
