package decode

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/flowbridge/flowdecode/errs"
	"github.com/flowbridge/flowdecode/exporter"
	"github.com/flowbridge/flowdecode/state"
	"github.com/stretchr/testify/require"
)

func be16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func be32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }

func v9Header(count uint16, sourceID uint32) []byte {
	var b []byte
	b = append(b, be16(9)...)
	b = append(b, be16(count)...)
	b = append(b, be32(0)...)
	b = append(b, be32(0)...)
	b = append(b, be32(1)...)
	b = append(b, be32(sourceID)...)
	return b
}

// oneFieldTemplateSet builds a flowset_id=0 template set with a single
// template of one 4-byte IN_BYTES field.
func oneFieldTemplateSet(templateID uint16) []byte {
	body := append(be16(templateID), be16(1)...)
	body = append(body, be16(1)...) // IN_BYTES
	body = append(body, be16(4)...)
	flowset := append(be16(0), be16(uint16(4+len(body)))...)
	return append(flowset, body...)
}

// unknownFieldTemplateSet builds a template with one field id that has no
// catalog entry, to exercise the catalog-gap diagnostic.
func unknownFieldTemplateSet(templateID uint16) []byte {
	body := append(be16(templateID), be16(1)...)
	body = append(body, be16(9999)...)
	body = append(body, be16(4)...)
	flowset := append(be16(0), be16(uint16(4+len(body)))...)
	return append(flowset, body...)
}

func dataFlowset(templateID uint16, value uint32) []byte {
	body := be32(value)
	flowset := append(be16(templateID), be16(uint16(4+len(body)))...)
	return append(flowset, body...)
}

func newDispatcher() *Dispatcher {
	reg := state.NewRegistry()
	return NewDispatcher(reg, 10, time.Hour)
}

func TestDispatcherDecodesV5(t *testing.T) {
	d := newDispatcher()
	hdr := append(be16(5), be16(0)...)
	hdr = append(hdr, be32(0)...)
	hdr = append(hdr, be32(0)...)
	hdr = append(hdr, be32(0)...)
	hdr = append(hdr, be32(1)...)
	hdr = append(hdr, 0, 0)
	hdr = append(hdr, be16(0)...)

	pkt, err := d.Decode(hdr, "10.0.0.1:2055", time.Now())
	require.NoError(t, err)
	require.Equal(t, uint16(5), pkt.Version)
	require.Equal(t, "10.0.0.1:2055", pkt.Exporter.Addr)
}

func TestDispatcherDefersThenResolvesV9(t *testing.T) {
	d := newDispatcher()
	addr := "10.0.0.9:2055"
	now := time.Now()

	dataOnly := append(v9Header(1, 42), dataFlowset(256, 1000)...)
	pkt, err := d.Decode(dataOnly, addr, now)
	require.NoError(t, err)
	require.Nil(t, pkt) // legally deferred

	resolved := d.DrainResolved(addr, 42)
	require.Empty(t, resolved)

	withTemplate := append(v9Header(1, 42), oneFieldTemplateSet(256)...)
	pkt, err = d.Decode(withTemplate, addr, now)
	require.NoError(t, err)
	require.Len(t, pkt.NewTemplates, 1)

	resolved = d.DrainResolved(addr, 42)
	require.Len(t, resolved, 1)
	require.Equal(t, uint64(1000), resolved[0].Packet.Flows[0]["IN_BYTES"])
}

func TestDispatcherCountsUnknownFields(t *testing.T) {
	d := newDispatcher()
	addr := "10.0.0.9:2055"
	now := time.Now()

	withTemplate := append(v9Header(1, 42), unknownFieldTemplateSet(256)...)
	_, err := d.Decode(withTemplate, addr, now)
	require.NoError(t, err)

	withData := append(v9Header(1, 42), dataFlowset(256, 1000)...)
	pkt, err := d.Decode(withData, addr, now)
	require.NoError(t, err)
	require.Equal(t, be32(1000), pkt.Flows[0]["_9999"]) // catalog gap: raw bytes, not decoded
	require.Equal(t, 1, d.StatsFor(exporter.Key{Addr: addr, DomainID: 42}).UnknownFields)
}

func TestDispatcherUnsupportedVersion(t *testing.T) {
	d := newDispatcher()
	_, err := d.Decode([]byte{0, 99, 0, 0}, "10.0.0.1:2055", time.Now())
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.UnsupportedVersion, kind)
	require.Equal(t, 1, d.StatsFor(exporter.Key{Addr: "10.0.0.1:2055"}).Unsupported)
}
