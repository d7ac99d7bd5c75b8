package state

import (
	"testing"
	"time"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/exporter"
	"github.com/stretchr/testify/require"
)

func tmpl(id uint16, n int) *netflow.Template {
	fields := make([]netflow.FieldSpec, n)
	for i := range fields {
		fields[i] = netflow.FieldSpec{ElementID: uint16(i + 1), Length: 4}
	}
	return &netflow.Template{ID: id, Fields: fields}
}

func TestRegistrySystemForIsolatesExporters(t *testing.T) {
	reg := NewRegistry()
	a := exporter.Key{Addr: "10.0.0.1:2055", DomainID: 1}
	b := exporter.Key{Addr: "10.0.0.2:2055", DomainID: 1}

	reg.SystemFor(a).Put(256, tmpl(256, 3))
	_, ok := reg.SystemFor(b).Get(256)
	require.False(t, ok)

	got, ok := reg.SystemFor(a).Get(256)
	require.True(t, ok)
	require.Equal(t, 3, len(got.Fields))
}

func TestRegistryPutReportsChange(t *testing.T) {
	reg := NewRegistry()
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	sys := reg.SystemFor(key)

	require.True(t, sys.Put(256, tmpl(256, 3)))
	require.False(t, sys.Put(256, tmpl(256, 3))) // identical shape, same field values
	require.True(t, sys.Put(256, tmpl(256, 5)))  // redefinition: different shape
}

func TestRegistrySnapshotAndRestore(t *testing.T) {
	reg := NewRegistry()
	key := exporter.Key{Addr: "10.0.0.1:2055", DomainID: 9}
	reg.SystemFor(key).Put(256, tmpl(256, 2))

	snap := reg.Snapshot()
	require.Contains(t, snap, key)
	require.Contains(t, snap[key], uint16(256))

	restored := NewRegistry()
	restored.Restore(snap)
	got, ok := restored.SystemFor(key).Get(256)
	require.True(t, ok)
	require.Equal(t, 2, len(got.Fields))
}

func TestRegistryDrop(t *testing.T) {
	reg := NewRegistry()
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	reg.SystemFor(key).Put(256, tmpl(256, 1))
	require.Len(t, reg.Keys(), 1)

	reg.Drop(key)
	require.Empty(t, reg.Keys())
}

func TestExpiringRegistryEvictsIdleExporters(t *testing.T) {
	reg := NewRegistry()
	exp := NewExpiringRegistry(reg, time.Minute)
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	exp.SystemFor(key).Put(256, tmpl(256, 1))
	exp.Touch(key)

	now := time.Now()
	exp.now = func() time.Time { return now.Add(2 * time.Minute) }
	exp.evictStale()

	require.Empty(t, reg.Keys())
}

func TestExpiringRegistryCloseWithoutStartIsNoop(t *testing.T) {
	exp := NewExpiringRegistry(NewRegistry(), time.Minute)
	exp.Close() // must not block: sweeper was never started
}

func TestExpiringRegistryStartAndClose(t *testing.T) {
	exp := NewExpiringRegistry(NewRegistry(), time.Minute)
	exp.StartSweeper(10 * time.Millisecond)
	exp.Close()
}

func TestDeferredQueuePushOverflowDrops(t *testing.T) {
	q := NewDeferredQueue(2, time.Hour)
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	for i := 0; i < 3; i++ {
		q.Push(&DeferredDatagram{Exporter: key, ReceiptTime: time.Now(), Unresolved: map[uint16]struct{}{256: {}}})
	}
	require.Equal(t, 2, q.Depth(key))
	require.Equal(t, 1, q.Dropped)
}

func TestDeferredQueueDrainResolved(t *testing.T) {
	q := NewDeferredQueue(10, time.Hour)
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	q.Push(&DeferredDatagram{Exporter: key, ReceiptTime: time.Now(), Unresolved: map[uint16]struct{}{256: {}}})

	stillMissing := func(id uint16) bool { return true }
	entries := q.DrainResolved(key, stillMissing)
	require.Empty(t, entries)
	require.Equal(t, 1, q.Depth(key))

	resolved := func(id uint16) bool { return false }
	entries = q.DrainResolved(key, resolved)
	require.Len(t, entries, 1)
	require.Equal(t, 0, q.Depth(key))
}

func TestDeferredQueueAgeEviction(t *testing.T) {
	q := NewDeferredQueue(10, time.Minute)
	key := exporter.Key{Addr: "10.0.0.1:2055"}
	old := time.Now().Add(-2 * time.Minute)
	q.Push(&DeferredDatagram{Exporter: key, ReceiptTime: old, Unresolved: map[uint16]struct{}{256: {}}})

	entries := q.DrainResolved(key, func(uint16) bool { return true })
	require.Empty(t, entries)
	require.Equal(t, 0, q.Depth(key))
	require.Equal(t, 1, q.Dropped)
}
