package guard

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testGuard builds a guard with a controllable clock and no cleanup loop.
func testGuard(cfg Config) (*Guard, *time.Time) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	g := &Guard{
		config:  cfg,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
	}
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGuardBlocksAfterMaxFailures(t *testing.T) {
	g, now := testGuard(DefaultConfig())

	for i := 0; i < DefaultMaxFailures-1; i++ {
		g.RecordFailure("10.0.0.1")
		if err := g.Check("10.0.0.1"); err != nil {
			t.Fatalf("blocked after %d failures: %v", i+1, err)
		}
	}

	g.RecordFailure("10.0.0.1")

	err := g.Check("10.0.0.1")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError after %d failures, got %v", DefaultMaxFailures, err)
	}
	if want := now.Add(DefaultBlockDuration); !blocked.Until.Equal(want) {
		t.Fatalf("block expiry %v, want %v", blocked.Until, want)
	}
}

func TestGuardBlockExpires(t *testing.T) {
	g, now := testGuard(DefaultConfig())

	for i := 0; i < DefaultMaxFailures; i++ {
		g.RecordFailure("10.0.0.1")
	}
	if g.Check("10.0.0.1") == nil {
		t.Fatal("expected an active block")
	}

	*now = now.Add(DefaultBlockDuration + time.Second)

	if err := g.Check("10.0.0.1"); err != nil {
		t.Fatalf("block must expire, got %v", err)
	}
}

func TestGuardWindowExpiry(t *testing.T) {
	g, now := testGuard(DefaultConfig())

	for i := 0; i < DefaultMaxFailures-1; i++ {
		g.RecordFailure("10.0.0.1")
	}

	// the old failures age out of the window
	*now = now.Add(DefaultWindow + time.Second)

	g.RecordFailure("10.0.0.1")
	if err := g.Check("10.0.0.1"); err != nil {
		t.Fatalf("stale failures must not count, got %v", err)
	}
	if n := g.FailureCount("10.0.0.1"); n != 1 {
		t.Fatalf("expected 1 windowed failure, got %d", n)
	}
}

func TestGuardClientsIndependent(t *testing.T) {
	g, _ := testGuard(DefaultConfig())

	for i := 0; i < DefaultMaxFailures; i++ {
		g.RecordFailure("10.0.0.1")
	}

	if err := g.Check("10.0.0.2"); err != nil {
		t.Fatalf("unrelated client must not be blocked: %v", err)
	}
}

func TestGuardUnknownClient(t *testing.T) {
	g, _ := testGuard(DefaultConfig())

	if err := g.Check("10.0.0.9"); err != nil {
		t.Fatalf("unknown client must pass: %v", err)
	}
	if n := g.FailureCount("10.0.0.9"); n != 0 {
		t.Fatalf("expected 0 failures, got %d", n)
	}
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           3,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst must pass", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request beyond burst must be rejected")
	}

	// second client has its own bucket
	if !rl.Allow("10.0.0.2") {
		t.Fatal("fresh client must pass")
	}
	if rl.Count() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", rl.Count())
	}
}

func TestLoginAttempts(t *testing.T) {
	la := NewLoginAttempts(15 * time.Minute)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	la.now = func() time.Time { return now }

	la.Record("10.0.0.1")
	la.Record("10.0.0.1")
	if n := la.Count("10.0.0.1"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}

	// attempts age out
	now = now.Add(16 * time.Minute)
	if n := la.Count("10.0.0.1"); n != 0 {
		t.Fatalf("expected attempts to expire, got %d", n)
	}

	la.Record("10.0.0.1")
	la.Clear("10.0.0.1")
	if n := la.Count("10.0.0.1"); n != 0 {
		t.Fatalf("expected cleared counter, got %d", n)
	}
}
