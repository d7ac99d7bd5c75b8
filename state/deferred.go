package state

import (
	"sync"
	"time"

	"github.com/flowbridge/flowdecode/exporter"
)

// DefaultDeferredMaxPerExporter and DefaultDeferredMaxAge are the bounds
// from SPEC_FULL.md §4.5: 500 datagrams or 10 minutes per exporter.
const (
	DefaultDeferredMaxPerExporter = 500
	DefaultDeferredMaxAge         = 10 * time.Minute
)

// DeferredDatagram is a datagram held back because one or more of its data
// sets referenced a template that had not yet arrived.
type DeferredDatagram struct {
	Data        []byte
	Exporter    exporter.Key
	ReceiptTime time.Time
	Unresolved  map[uint16]struct{}
}

// DeferredQueue holds back datagrams per-exporter until their templates
// arrive, bounded by count and age, and supports a pull-style drain once
// templates are installed. It is the collaborator the dispatch layer
// consults after a template-set flowset/set has been applied to the
// registry.
type DeferredQueue struct {
	mu      sync.Mutex
	byKey   map[exporter.Key][]*DeferredDatagram
	maxLen  int
	maxAge  time.Duration
	now     func() time.Time
	Dropped int // count of entries dropped via TemplateTimeout
}

// NewDeferredQueue builds a queue with the given per-exporter bounds.
func NewDeferredQueue(maxLen int, maxAge time.Duration) *DeferredQueue {
	if maxLen <= 0 {
		maxLen = DefaultDeferredMaxPerExporter
	}
	if maxAge <= 0 {
		maxAge = DefaultDeferredMaxAge
	}
	return &DeferredQueue{
		byKey:  map[exporter.Key][]*DeferredDatagram{},
		maxLen: maxLen,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Push enqueues a newly-deferred datagram, evicting the oldest entry for
// that exporter if the per-exporter bound is exceeded (counted as a
// TemplateTimeout drop, matching any age-based eviction).
func (q *DeferredQueue) Push(d *DeferredDatagram) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.byKey[d.Exporter]
	entries = append(entries, d)
	if len(entries) > q.maxLen {
		overflow := len(entries) - q.maxLen
		entries = entries[overflow:]
		q.Dropped += overflow
	}
	q.byKey[d.Exporter] = entries
}

// DrainResolved removes and returns every entry for key whose Unresolved
// set is now empty, in original receipt order, after also dropping
// entries older than the configured age bound. Callers pass the current
// view of what's still missing via isUnresolved; a nil isUnresolved
// re-checks nothing: only the age-based drop is applied and no entry is
// returned.
func (q *DeferredQueue) DrainResolved(key exporter.Key, isUnresolved func(templateID uint16) bool) []*DeferredDatagram {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.byKey[key]
	if len(entries) == 0 {
		return nil
	}

	cutoff := q.now().Add(-q.maxAge)
	var resolved []*DeferredDatagram
	var kept []*DeferredDatagram
	for _, d := range entries {
		if d.ReceiptTime.Before(cutoff) {
			q.Dropped++
			continue
		}
		if isUnresolved == nil {
			kept = append(kept, d)
			continue
		}
		stillMissing := false
		for id := range d.Unresolved {
			if isUnresolved(id) {
				stillMissing = true
				break
			}
		}
		if stillMissing {
			kept = append(kept, d)
		} else {
			resolved = append(resolved, d)
		}
	}
	if len(kept) == 0 {
		delete(q.byKey, key)
	} else {
		q.byKey[key] = kept
	}
	return resolved
}

// Depth returns how many datagrams are currently deferred for key.
func (q *DeferredQueue) Depth(key exporter.Key) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byKey[key])
}
