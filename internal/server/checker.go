package server

import (
	"context"
	"sync"
	"sync/atomic"
)

// Probe reports whether a component can currently serve. A nil error is healthy.
type Probe func(ctx context.Context) error

// Checker is a HealthChecker built from named component probes and
// informational status providers.
type Checker struct {
	alive  atomic.Bool
	mu     sync.RWMutex
	probes map[string]Probe
	info   map[string]func() string
}

// NewChecker creates a live checker with no probes.
func NewChecker() *Checker {
	c := &Checker{
		probes: make(map[string]Probe),
		info:   make(map[string]func() string),
	}
	c.alive.Store(true)
	return c
}

// Register adds or replaces a readiness probe.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Info adds a status entry reported alongside probe results.
func (c *Checker) Info(name string, fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[name] = fn
}

// SetAlive flips liveness. A process that is shutting down stays alive but
// its probes start failing.
func (c *Checker) SetAlive(alive bool) {
	c.alive.Store(alive)
}

// Liveness implements HealthChecker.
func (c *Checker) Liveness() bool {
	return c.alive.Load()
}

// Readiness reports true when every probe passes.
func (c *Checker) Readiness(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, probe := range c.probes {
		if probe(ctx) != nil {
			return false
		}
	}
	return true
}

// IsHealthy implements HealthChecker.
func (c *Checker) IsHealthy() bool {
	return c.Liveness() && c.Readiness(context.Background())
}

// GetStatus returns "ok" or the probe error for every probe, plus info entries.
func (c *Checker) GetStatus() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[string]string, len(c.probes)+len(c.info))
	for name, probe := range c.probes {
		if err := probe(context.Background()); err != nil {
			status[name] = err.Error()
		} else {
			status[name] = "ok"
		}
	}
	for name, fn := range c.info {
		status[name] = fn()
	}
	return status
}
