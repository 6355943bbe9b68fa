package guard

import (
	"sync"
	"time"
)

// LoginAttempts counts short-term admin login failures per client. It is
// kept separate from the failure guard: a successful attendance mark clears
// a client's login counter but never its guard failures.
type LoginAttempts struct {
	window time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
}

// NewLoginAttempts tracks attempts inside the given window.
func NewLoginAttempts(window time.Duration) *LoginAttempts {
	return &LoginAttempts{
		window:   window,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Record adds a failed login attempt for the client.
func (la *LoginAttempts) Record(client string) {
	now := la.now()

	la.mu.Lock()
	defer la.mu.Unlock()

	cutoff := now.Add(-la.window)
	kept := la.attempts[client][:0]
	for _, t := range la.attempts[client] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	la.attempts[client] = append(kept, now)
}

// Count returns the client's attempts inside the window.
func (la *LoginAttempts) Count(client string) int {
	la.mu.Lock()
	defer la.mu.Unlock()

	cutoff := la.now().Add(-la.window)
	n := 0
	for _, t := range la.attempts[client] {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Clear drops the client's counter entirely.
func (la *LoginAttempts) Clear(client string) {
	la.mu.Lock()
	defer la.mu.Unlock()
	delete(la.attempts, client)
}
