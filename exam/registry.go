package exam

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"certprep-server/models"
)

// PoolLoader fetches the question pool used to hydrate a new engine.
type PoolLoader func(ctx context.Context) []models.Question

const maxSweepInterval = time.Minute

// Registry holds the live engine for every (user, mode) pair. Engines not
// acquired for idleTTL are closed and dropped; their progress stays in the
// store and the next Acquire hydrates a fresh engine from it.
type Registry struct {
	mu        sync.Mutex
	factory   func(userID string, mode Mode) *Engine
	entries   map[string]*registryEntry
	clock     clockwork.Clock
	idleTTL   time.Duration
	lastSweep time.Time
}

type registryEntry struct {
	once     sync.Once
	engine   *Engine
	lastUsed time.Time
}

// NewRegistry returns an empty registry creating engines with factory.
// A non-positive idleTTL keeps engines until Close.
func NewRegistry(factory func(userID string, mode Mode) *Engine, clock clockwork.Clock, idleTTL time.Duration) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		factory:   factory,
		entries:   make(map[string]*registryEntry),
		clock:     clock,
		idleTTL:   idleTTL,
		lastSweep: clock.Now(),
	}
}

// Acquire returns the user's engine for mode. The first call for a pair creates
// the engine and hydrates it from the progress store against load's pool.
func (r *Registry) Acquire(ctx context.Context, userID string, mode Mode, load PoolLoader) *Engine {
	key := userID + "|" + string(mode)
	now := r.clock.Now()

	r.mu.Lock()
	ent, ok := r.entries[key]
	if !ok {
		ent = &registryEntry{engine: r.factory(userID, mode)}
		r.entries[key] = ent
	}
	ent.lastUsed = now
	var idle []*Engine
	if r.idleTTL > 0 && now.Sub(r.lastSweep) >= min(r.idleTTL, maxSweepInterval) {
		idle = r.detachIdleLocked(now)
	}
	r.mu.Unlock()

	for _, e := range idle {
		e.Close()
	}

	ent.once.Do(func() {
		ent.engine.Open(ctx, load(ctx))
	})
	return ent.engine
}

// EvictIdle closes every engine not acquired within the idle TTL and reports
// how many were dropped.
func (r *Registry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	idle := r.detachIdleLocked(r.clock.Now())
	r.mu.Unlock()

	for _, e := range idle {
		e.Close()
	}
	return len(idle)
}

func (r *Registry) detachIdleLocked(now time.Time) []*Engine {
	r.lastSweep = now
	var idle []*Engine
	for key, ent := range r.entries {
		if now.Sub(ent.lastUsed) > r.idleTTL {
			idle = append(idle, ent.engine)
			delete(r.entries, key)
		}
	}
	return idle
}

// Len reports the number of live engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close tears down every engine, stopping their countdowns.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.entries))
	for _, ent := range r.entries {
		engines = append(engines, ent.engine)
	}
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}
