package state

import (
	"path/filepath"
	"testing"

	"github.com/flowbridge/flowdecode/exporter"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	reg := NewRegistry()
	key := exporter.Key{Addr: "10.0.0.1:2055", DomainID: 7}
	reg.SystemFor(key).Put(256, tmpl(256, 3))

	encoded := EncodeSnapshot(reg.Snapshot())
	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)

	restored := NewRegistry()
	restored.Restore(decoded)
	got, ok := restored.SystemFor(key).Get(256)
	require.True(t, ok)
	require.Equal(t, 3, len(got.Fields))
}

func TestDecodeSnapshotRejectsBadMagic(t *testing.T) {
	_, err := DecodeSnapshot([]byte{0, 0, 0, 0, 0, 1})
	require.Error(t, err)
}

func TestPersistentRegistrySaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.fdt")

	reg := NewRegistry()
	key := exporter.Key{Addr: "10.0.0.1:2055", DomainID: 1}
	reg.SystemFor(key).Put(256, tmpl(256, 2))

	p := NewPersistentRegistry(reg, NewAtomicFileWriter(path))
	require.NoError(t, p.Save())

	reloaded := NewPersistentRegistry(NewRegistry(), NewAtomicFileWriter(path))
	require.NoError(t, reloaded.Load())
	got, ok := reloaded.SystemFor(key).Get(256)
	require.True(t, ok)
	require.Equal(t, 2, len(got.Fields))
}

func TestPersistentRegistryLoadMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistentRegistry(NewRegistry(), NewAtomicFileWriter(filepath.Join(dir, "missing.fdt")))
	require.NoError(t, p.Load())
}
