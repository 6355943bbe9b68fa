// Package guard tracks per-client abuse: repeated liveness/match failures
// lead to a temporary block, and a token-bucket limiter caps request rates.
package guard

import (
	"fmt"
	"sync"
	"time"
)

// Defaults for the failure window policy.
const (
	DefaultMaxFailures   = 5
	DefaultWindow        = 10 * time.Minute
	DefaultBlockDuration = time.Hour

	cleanupInterval = 5 * time.Minute
)

// BlockedError reports an active block with its expiry.
type BlockedError struct {
	Client string
	Until  time.Time
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("client %s blocked until %s", e.Client, e.Until.Format(time.RFC3339))
}

// Config tunes the sliding failure window.
type Config struct {
	MaxFailures   int           // failures within Window that trigger a block
	Window        time.Duration // sliding window for counting failures
	BlockDuration time.Duration // how long a triggered block lasts
}

// DefaultConfig returns the stock policy: 5 failures in 10 minutes blocks
// for an hour.
func DefaultConfig() Config {
	return Config{
		MaxFailures:   DefaultMaxFailures,
		Window:        DefaultWindow,
		BlockDuration: DefaultBlockDuration,
	}
}

// clientState holds one client's failure history and block expiry.
type clientState struct {
	failures   []time.Time
	blockUntil time.Time
	lastAccess time.Time
}

// Guard keeps a sliding failure window per client. A block set once stays
// until its expiry even if the window later empties out; a successful scan
// never removes recorded failures, only time does.
type Guard struct {
	config Config

	mu      sync.Mutex
	clients map[string]*clientState

	stopCh chan struct{}
	now    func() time.Time
}

// New creates a guard and starts the background cleanup of idle clients.
func New(config Config) *Guard {
	g := &Guard{
		config:  config,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go g.cleanupLoop()

	return g
}

// Stop terminates the background cleanup goroutine.
func (g *Guard) Stop() {
	close(g.stopCh)
}

// Check returns a BlockedError when the client has an active block. It must
// run before any detection work.
func (g *Guard) Check(client string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.clients[client]
	if !ok {
		return nil
	}
	st.lastAccess = g.now()
	if g.now().Before(st.blockUntil) {
		return &BlockedError{Client: client, Until: st.blockUntil}
	}
	return nil
}

// RecordFailure adds a failure timestamp for the client and sets a block
// when the window fills up.
func (g *Guard) RecordFailure(client string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.clients[client]
	if !ok {
		st = &clientState{}
		g.clients[client] = st
	}
	st.lastAccess = now

	// drop failures older than the window
	cutoff := now.Add(-g.config.Window)
	kept := st.failures[:0]
	for _, t := range st.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.failures = append(kept, now)

	if len(st.failures) >= g.config.MaxFailures {
		st.blockUntil = now.Add(g.config.BlockDuration)
	}
}

// FailureCount returns the number of failures inside the current window.
func (g *Guard) FailureCount(client string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.clients[client]
	if !ok {
		return 0
	}
	cutoff := g.now().Add(-g.config.Window)
	n := 0
	for _, t := range st.failures {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func (g *Guard) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanup()
		case <-g.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for longer than the block duration with no
// active block left.
func (g *Guard) cleanup() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for client, st := range g.clients {
		if now.After(st.blockUntil) && now.Sub(st.lastAccess) > g.config.BlockDuration {
			delete(g.clients, client)
		}
	}
}
