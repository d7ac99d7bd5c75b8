package decode

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/decoders/netflowlegacy"
	"github.com/flowbridge/flowdecode/errs"
	"github.com/flowbridge/flowdecode/exporter"
	"github.com/flowbridge/flowdecode/metrics"
	"github.com/flowbridge/flowdecode/state"
)

// registrySource is the subset of *state.Registry (and its decorators)
// the dispatcher needs: a handle into one exporter's template namespace.
type registrySource interface {
	SystemFor(key exporter.Key) netflow.Registry
}

// toucher is implemented by registry decorators that track idle time
// (state.ExpiringRegistry and anything wrapping it); the dispatcher
// detects it structurally so a decorator chain (metrics, persistence,
// TTL) still gets touch-on-access no matter the wrapping order.
type toucher interface {
	Touch(exporter.Key)
}

// Stats is the per-ExporterKey diagnostic counters required by the error
// taxonomy: truncated, malformed, unsupported, template_timeout,
// unknown_fields.
type Stats struct {
	Truncated       int
	Malformed       int
	Unsupported     int
	TemplateTimeout int
	UnknownFields   int
	RestartDetected int
}

// Resolved pairs a previously-deferred datagram's original receipt time
// with the ExportPacket it decodes to once its template arrives.
type Resolved struct {
	ReceiptTime time.Time
	Packet      *ExportPacket
}

// Dispatcher is the top-level entry point: it reads the version tag,
// routes to the matching parser, threads the template registry through
// v9/IPFIX, and owns the deferred-datagram queue and per-exporter stats.
type Dispatcher struct {
	registry registrySource
	touch    func(exporter.Key) // optional TTL touch-on-access hook
	deferred *state.DeferredQueue

	mu    sync.Mutex
	stats map[exporter.Key]*Stats
}

// NewDispatcher builds a Dispatcher over registry, with the given
// deferred-queue bounds (0 for either picks the spec default of 500
// datagrams / 10 minutes per exporter).
func NewDispatcher(registry registrySource, deferredMaxLen int, deferredMaxAge time.Duration) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		deferred: state.NewDeferredQueue(deferredMaxLen, deferredMaxAge),
		stats:    map[exporter.Key]*Stats{},
	}
	if t, ok := registry.(toucher); ok {
		d.touch = t.Touch
	}
	return d
}

// StatsFor returns the diagnostic counters for key, creating them on first
// access. The returned pointer is stable for the dispatcher's lifetime.
func (d *Dispatcher) StatsFor(key exporter.Key) *Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stats[key]
	if !ok {
		s = &Stats{}
		d.stats[key] = s
	}
	return s
}

// Decode routes one datagram from addr to the matching parser. A nil
// packet with a nil error means the datagram was legally deferred pending
// a template. errs.Error values carry the taxonomy from SPEC_FULL.md §7.
func (d *Dispatcher) Decode(data []byte, addr string, receiptTime time.Time) (*ExportPacket, error) {
	if len(data) < 2 {
		err := errs.New(errs.Truncated, nil)
		d.fail(exporter.Key{Addr: addr}, err)
		return nil, err
	}
	version := binary.BigEndian.Uint16(data[0:2])

	switch version {
	case 1:
		key := exporter.Key{Addr: addr}
		pkt, err := netflowlegacy.DecodeV1(data)
		if err != nil {
			d.fail(key, err)
			return nil, err
		}
		return &ExportPacket{Version: 1, Exporter: key, ReceiptTime: receiptTime,
			HeaderV1: &pkt.Header, Flows: recordsToFlows(pkt.Records)}, nil

	case 5:
		key := exporter.Key{Addr: addr}
		pkt, err := netflowlegacy.DecodeV5(data)
		if err != nil {
			d.fail(key, err)
			return nil, err
		}
		return &ExportPacket{Version: 5, Exporter: key, ReceiptTime: receiptTime,
			HeaderV5: &pkt.Header, Flows: recordsToFlows(pkt.Records)}, nil

	case 9:
		return d.decodeV9(data, addr, receiptTime)

	case 10:
		return d.decodeIPFIX(data, addr, receiptTime)

	default:
		err := errs.New(errs.UnsupportedVersion, nil)
		d.fail(exporter.Key{Addr: addr}, err)
		return nil, err
	}
}

func (d *Dispatcher) fail(key exporter.Key, err error) {
	stats := d.StatsFor(key)
	kind, ok := errs.KindOf(err)
	if !ok {
		return
	}
	switch kind {
	case errs.Truncated:
		stats.Truncated++
	case errs.Malformed:
		stats.Malformed++
	case errs.UnsupportedVersion:
		stats.Unsupported++
	}
	metrics.DecodeErrors.WithLabelValues(key.String(), kind.String()).Inc()
}

// v9 source_id sits at byte offset 16 of the fixed 20-byte header.
func peekV9SourceID(data []byte) (uint32, bool) {
	if len(data) < 20 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[16:20]), true
}

// IPFIX observation_domain_id sits at byte offset 12 of the fixed 16-byte
// header.
func peekIPFIXDomainID(data []byte) (uint32, bool) {
	if len(data) < 16 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[12:16]), true
}

func (d *Dispatcher) decodeV9(data []byte, addr string, receiptTime time.Time) (*ExportPacket, error) {
	domainID, ok := peekV9SourceID(data)
	if !ok {
		key := exporter.Key{Addr: addr}
		d.fail(key, errs.New(errs.Truncated, nil))
		return nil, errs.New(errs.Truncated, nil)
	}
	key := exporter.Key{Addr: addr, DomainID: domainID}
	if d.touch != nil {
		d.touch(key)
	}
	reg := d.registry.SystemFor(key)

	result, err := netflow.DecodeV9(data, reg)
	if err != nil {
		d.fail(key, err)
		return nil, err
	}
	stats := d.StatsFor(key)
	stats.Malformed += result.Diagnostics.Malformed
	stats.RestartDetected += len(result.Redefined)
	stats.UnknownFields += result.Diagnostics.CatalogGap
	if result.Diagnostics.CatalogGap > 0 {
		metrics.UnknownFields.WithLabelValues(key.String()).Add(float64(result.Diagnostics.CatalogGap))
	}

	if len(result.Unresolved) > 0 {
		d.deferred.Push(&state.DeferredDatagram{
			Data: append([]byte(nil), data...), Exporter: key, ReceiptTime: receiptTime, Unresolved: result.Unresolved,
		})
		metrics.DeferredDepth.WithLabelValues(key.String()).Set(float64(d.deferred.Depth(key)))
		return nil, nil
	}

	return &ExportPacket{
		Version: 9, Exporter: key, ReceiptTime: receiptTime,
		HeaderV9: &result.Header, Flows: dataRecordsToFlows(result.Records), NewTemplates: result.NewTemplates,
	}, nil
}

func (d *Dispatcher) decodeIPFIX(data []byte, addr string, receiptTime time.Time) (*ExportPacket, error) {
	domainID, ok := peekIPFIXDomainID(data)
	if !ok {
		key := exporter.Key{Addr: addr}
		d.fail(key, errs.New(errs.Truncated, nil))
		return nil, errs.New(errs.Truncated, nil)
	}
	key := exporter.Key{Addr: addr, DomainID: domainID}
	if d.touch != nil {
		d.touch(key)
	}
	reg := d.registry.SystemFor(key)

	result, err := netflow.DecodeIPFIX(data, reg)
	if err != nil {
		d.fail(key, err)
		return nil, err
	}
	stats := d.StatsFor(key)
	stats.Malformed += result.Diagnostics.Malformed
	stats.RestartDetected += len(result.Redefined)
	stats.UnknownFields += result.Diagnostics.CatalogGap
	if result.Diagnostics.CatalogGap > 0 {
		metrics.UnknownFields.WithLabelValues(key.String()).Add(float64(result.Diagnostics.CatalogGap))
	}

	if len(result.Unresolved) > 0 {
		d.deferred.Push(&state.DeferredDatagram{
			Data: append([]byte(nil), data...), Exporter: key, ReceiptTime: receiptTime, Unresolved: result.Unresolved,
		})
		metrics.DeferredDepth.WithLabelValues(key.String()).Set(float64(d.deferred.Depth(key)))
		return nil, nil
	}

	return &ExportPacket{
		Version: 10, Exporter: key, ReceiptTime: receiptTime,
		HeaderIPFIX: &result.Header, Flows: dataRecordsToFlows(result.Records), NewTemplates: result.NewTemplates,
	}, nil
}

// DrainResolved scans the deferred queue for key and returns every
// datagram whose templates are now known, re-decoding each one. Entries
// that age out are dropped and counted as TemplateTimeout.
func (d *Dispatcher) DrainResolved(addr string, domainID uint32) []Resolved {
	key := exporter.Key{Addr: addr, DomainID: domainID}
	reg := d.registry.SystemFor(key)

	before := d.deferred.Dropped
	entries := d.deferred.DrainResolved(key, func(templateID uint16) bool {
		_, ok := reg.Get(templateID)
		return !ok
	})
	if dropped := d.deferred.Dropped - before; dropped > 0 {
		d.StatsFor(key).TemplateTimeout += dropped
		metrics.DecodeErrors.WithLabelValues(key.String(), errs.TemplateTimeout.String()).Add(float64(dropped))
	}
	metrics.DeferredDepth.WithLabelValues(key.String()).Set(float64(d.deferred.Depth(key)))

	out := make([]Resolved, 0, len(entries))
	for _, e := range entries {
		pkt, err := d.Decode(e.Data, addr, e.ReceiptTime)
		if err != nil || pkt == nil {
			continue
		}
		out = append(out, Resolved{ReceiptTime: e.ReceiptTime, Packet: pkt})
	}
	return out
}

func recordsToFlows(records []netflowlegacy.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]interface{}(r))
	}
	return out
}

func dataRecordsToFlows(records []netflow.DataRecord) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		out = append(out, r.Fields)
	}
	return out
}
