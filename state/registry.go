// Package state owns the mutable state that survives across datagrams:
// the per-exporter template registry and the deferred-datagram queue.
package state

import (
	"sync"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/exporter"
)

// templateSystem is one ExporterKey's template namespace: a plain map
// guarded by its own lock, satisfying netflow.Registry.
type templateSystem struct {
	mu        sync.RWMutex
	templates map[uint16]*netflow.Template
}

func newTemplateSystem() *templateSystem {
	return &templateSystem{templates: map[uint16]*netflow.Template{}}
}

func (t *templateSystem) Get(templateID uint16) (*netflow.Template, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tmpl, ok := t.templates[templateID]
	return tmpl, ok
}

func (t *templateSystem) Put(templateID uint16, tmpl *netflow.Template) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, existed := t.templates[templateID]
	t.templates[templateID] = tmpl
	return !existed || !old.Equal(tmpl)
}

// snapshot returns a copy of the id-to-template map (the templates
// themselves are shared), used by Registry.Snapshot for listing and
// persistence.
func (t *templateSystem) snapshot() map[uint16]*netflow.Template {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uint16]*netflow.Template, len(t.templates))
	for k, v := range t.templates {
		out[k] = v
	}
	return out
}

func (t *templateSystem) empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.templates) == 0
}

// Registry is the per-process collection of template namespaces, one per
// ExporterKey. It is the base of the decorator chain described in
// SPEC_FULL.md §4.2 (TTL eviction and binary snapshot persistence wrap it).
type Registry struct {
	mu       sync.RWMutex
	systems  map[exporter.Key]*templateSystem
}

// NewRegistry builds an empty, unwrapped in-memory registry.
func NewRegistry() *Registry {
	return &Registry{systems: map[exporter.Key]*templateSystem{}}
}

// SystemFor returns the netflow.Registry handle for key, creating its
// namespace on first use. Safe for concurrent use across distinct keys;
// operations against the same key are linearized by that key's own lock.
func (r *Registry) SystemFor(key exporter.Key) netflow.Registry {
	r.mu.RLock()
	ts, ok := r.systems[key]
	r.mu.RUnlock()
	if ok {
		return ts
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.systems[key]; ok {
		return ts
	}
	ts = newTemplateSystem()
	r.systems[key] = ts
	return ts
}

// Drop removes an exporter's entire template namespace, e.g. on idle
// timeout as decided by the embedder.
func (r *Registry) Drop(key exporter.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.systems, key)
}

// Keys returns every ExporterKey currently tracked.
func (r *Registry) Keys() []exporter.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]exporter.Key, 0, len(r.systems))
	for k := range r.systems {
		out = append(out, k)
	}
	return out
}

// Snapshot returns a defensive copy of every exporter's templates, for
// listing endpoints and for persistence.
func (r *Registry) Snapshot() map[exporter.Key]map[uint16]*netflow.Template {
	r.mu.RLock()
	keys := make([]exporter.Key, 0, len(r.systems))
	systems := make([]*templateSystem, 0, len(r.systems))
	for k, v := range r.systems {
		keys = append(keys, k)
		systems = append(systems, v)
	}
	r.mu.RUnlock()

	out := make(map[exporter.Key]map[uint16]*netflow.Template, len(keys))
	for i, k := range keys {
		out[k] = systems[i].snapshot()
	}
	return out
}

// Restore installs a previously-snapshotted template set, e.g. on startup
// after reading a persisted snapshot file.
func (r *Registry) Restore(data map[exporter.Key]map[uint16]*netflow.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, templates := range data {
		ts := newTemplateSystem()
		for id, tmpl := range templates {
			ts.templates[id] = tmpl
		}
		r.systems[key] = ts
	}
}
