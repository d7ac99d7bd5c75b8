// Package metrics instruments the decode and template-registry layers
// with Prometheus counters and gauges, following the same
// CounterVec/GaugeVec-plus-decorator approach the reference collector
// uses for its own NetFlow/sFlow metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "flowdecode"

var (
	// TemplatesInstalled counts every template Put that changed the
	// stored shape, split by whether it was a fresh id or a redefinition
	// of an existing one (the restart signal).
	TemplatesInstalled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "templates_installed_total",
		Help:      "Templates installed or redefined, by exporter and outcome.",
	}, []string{"exporter", "outcome"})

	// DecodeErrors counts non-fatal-to-the-process decode failures by
	// exporter and error taxonomy kind.
	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Decode failures by exporter and error kind.",
	}, []string{"exporter", "kind"})

	// DeferredDepth tracks how many datagrams are currently held back per
	// exporter awaiting a template.
	DeferredDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deferred_datagrams",
		Help:      "Datagrams currently held back awaiting a template, by exporter.",
	}, []string{"exporter"})

	// ExporterNamespaces tracks how many distinct (addr, domain) template
	// namespaces the registry currently holds.
	ExporterNamespaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "exporter_namespaces",
		Help:      "Distinct exporter template namespaces currently tracked.",
	})

	// UnknownFields counts field values decoded via the catalog-gap
	// fallback (non-enterprise information-element ids absent from
	// Catalog), by exporter. No field-id label: the catalog is small and
	// finite, but unknown ids are attacker- or vendor-controlled input,
	// so they stay out of the label set.
	UnknownFields = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_fields_total",
		Help:      "Field values decoded via the catalog-gap fallback, by exporter.",
	}, []string{"exporter"})
)

func init() {
	prometheus.MustRegister(TemplatesInstalled, DecodeErrors, DeferredDepth, ExporterNamespaces, UnknownFields)
}
