package metrics

import (
	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/exporter"
)

// registrySource is the minimal surface a registry decorator wraps,
// mirroring decode.registrySource so any layer (state.Registry,
// state.ExpiringRegistry, state.PersistentRegistry) can sit underneath.
type registrySource interface {
	SystemFor(key exporter.Key) netflow.Registry
}

// toucher lets PromRegistry forward Touch to a wrapped TTL decorator
// regardless of wrapping order.
type toucher interface {
	Touch(exporter.Key)
}

// PromRegistry wraps a registrySource and records TemplatesInstalled for
// every Put that changes a template's stored shape.
type PromRegistry struct {
	wrapped registrySource
}

// NewPromRegistry wraps wrapped with Prometheus instrumentation.
func NewPromRegistry(wrapped registrySource) *PromRegistry {
	return &PromRegistry{wrapped: wrapped}
}

// Touch forwards to the wrapped registry if it tracks idle time.
func (r *PromRegistry) Touch(key exporter.Key) {
	if t, ok := r.wrapped.(toucher); ok {
		t.Touch(key)
	}
}

// SystemFor returns an instrumented netflow.Registry for key.
func (r *PromRegistry) SystemFor(key exporter.Key) netflow.Registry {
	return &promTemplateSystem{exporterLabel: key.String(), wrapped: r.wrapped.SystemFor(key)}
}

type promTemplateSystem struct {
	exporterLabel string
	wrapped       netflow.Registry
}

func (s *promTemplateSystem) Get(templateID uint16) (*netflow.Template, bool) {
	return s.wrapped.Get(templateID)
}

func (s *promTemplateSystem) Put(templateID uint16, t *netflow.Template) bool {
	_, existed := s.wrapped.Get(templateID)
	changed := s.wrapped.Put(templateID, t)
	if !changed {
		return false
	}
	outcome := "new"
	if existed {
		outcome = "redefined"
	}
	TemplatesInstalled.WithLabelValues(s.exporterLabel, outcome).Inc()
	return true
}
