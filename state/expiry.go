package state

import (
	"sync"
	"time"

	"github.com/flowbridge/flowdecode/exporter"
)

// ExpiringRegistry wraps a Registry and evicts an exporter's entire
// template namespace once it has gone untouched for ttl. It runs a
// ticker-driven sweeper goroutine, started explicitly and stopped via
// Close — the same stop/done channel handshake used by the template
// TTL sweeper in the reference collector.
type ExpiringRegistry struct {
	*Registry

	mu       sync.Mutex
	lastSeen map[exporter.Key]time.Time
	ttl      time.Duration
	now      func() time.Time

	sweepOnce sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewExpiringRegistry wraps reg with a ttl-based eviction policy. ttl <= 0
// disables eviction entirely (SystemFor/Touch degenerate to passthrough).
func NewExpiringRegistry(reg *Registry, ttl time.Duration) *ExpiringRegistry {
	return &ExpiringRegistry{
		Registry: reg,
		lastSeen: map[exporter.Key]time.Time{},
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Touch records that key was just active, resetting its idle clock.
func (e *ExpiringRegistry) Touch(key exporter.Key) {
	if e.ttl <= 0 {
		return
	}
	e.mu.Lock()
	e.lastSeen[key] = e.now()
	e.mu.Unlock()
}

// StartSweeper launches the eviction goroutine. No-op if ttl <= 0.
func (e *ExpiringRegistry) StartSweeper(interval time.Duration) {
	if e.ttl <= 0 {
		return
	}
	e.sweepOnce.Do(func() {
		e.started = true
		go e.sweepLoop(interval)
	})
}

func (e *ExpiringRegistry) sweepLoop(interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.evictStale()
		}
	}
}

func (e *ExpiringRegistry) evictStale() {
	cutoff := e.now().Add(-e.ttl)
	e.mu.Lock()
	var stale []exporter.Key
	for k, t := range e.lastSeen {
		if t.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		delete(e.lastSeen, k)
	}
	e.mu.Unlock()

	for _, k := range stale {
		e.Registry.Drop(k)
	}
}

// Close stops the sweeper goroutine, if running, and waits for it to exit.
func (e *ExpiringRegistry) Close() {
	if !e.started {
		return
	}
	select {
	case <-e.stop:
		return // already closed
	default:
	}
	close(e.stop)
	<-e.done
}
