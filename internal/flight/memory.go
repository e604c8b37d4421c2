package flight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Memory Guard
// =============================================================================

// failedRetention is how long a Failed key stays visible before a sweep
// drops it. A Failed key acquires like Idle, so dropping it is invisible
// to callers.
const failedRetention = 10 * time.Minute

// MemoryGuard keeps guard state in process memory. Suitable for a single
// instance; use RedisGuard when several instances serve the same users.
type MemoryGuard struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*guardEntry
	lastSweep time.Time
}

type guardEntry struct {
	state     State
	changedAt time.Time
}

// NewMemoryGuard creates a new in-memory guard.
func NewMemoryGuard(config Config, logger *slog.Logger) (*MemoryGuard, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &MemoryGuard{
		config:  config,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*guardEntry),
	}, nil
}

// Acquire moves the key to InFlight or returns ErrInFlight.
func (g *MemoryGuard) Acquire(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= failedRetention {
		if n := g.sweep(now); n > 0 {
			g.logger.Debug("swept idle guard keys", "count", n)
		}
		g.lastSweep = now
	}
	entry := g.current(key, now)

	if !entry.state.CanTransitionTo(StateInFlight) {
		g.logger.Debug("guard rejected acquire", "key", key, "state", entry.state)
		return ErrInFlight
	}

	g.entries[key] = &guardEntry{state: StateInFlight, changedAt: now}
	return nil
}

// Succeed marks the action finished and keeps the key held.
func (g *MemoryGuard) Succeed(_ context.Context, key string) error {
	return g.finish(key, StateSucceeded)
}

// Fail marks the action failed so it can be retried by the user.
func (g *MemoryGuard) Fail(_ context.Context, key string) error {
	return g.finish(key, StateFailed)
}

// Release returns the key to Idle.
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

// State reports the current state of the key.
func (g *MemoryGuard) State(_ context.Context, key string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current(key, g.now()).state, nil
}

func (g *MemoryGuard) finish(key string, target State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	entry := g.current(key, now)
	if !entry.state.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition guard %q from %s to %s", key, entry.state, target)
	}

	g.entries[key] = &guardEntry{state: target, changedAt: now}
	return nil
}

// current returns the effective entry for key, expiring stale holds.
// Caller must hold g.mu.
func (g *MemoryGuard) current(key string, now time.Time) guardEntry {
	entry, exists := g.entries[key]
	if !exists {
		return guardEntry{state: StateIdle}
	}

	var ttl time.Duration
	switch entry.state {
	case StateSucceeded, StateFailed:
		ttl = g.config.HoldTTL
	case StateInFlight:
		ttl = g.config.InFlightTTL
	}

	if ttl > 0 && now.Sub(entry.changedAt) > ttl {
		delete(g.entries, key)
		return guardEntry{state: StateIdle}
	}

	return *entry
}

// sweep drops expired keys and Failed keys older than failedRetention.
// Succeeded keys without a HoldTTL stay until Release.
// Caller must hold g.mu.
func (g *MemoryGuard) sweep(now time.Time) int {
	removed := 0
	for key, entry := range g.entries {
		stale := entry.state == StateFailed && now.Sub(entry.changedAt) > failedRetention
		if stale || g.current(key, now).state == StateIdle {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}
