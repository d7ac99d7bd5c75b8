package state

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/decoders/utils"
	"github.com/flowbridge/flowdecode/exporter"
)

var snapshotMagic = [4]byte{'F', 'D', 'T', '1'}

const snapshotVersion = uint16(1)

// AtomicWriter is the file-backed persistence primitive a Registry snapshot
// is written through: temp file, fsync, rename, directory fsync, so a crash
// mid-write never leaves a half-written snapshot where a restart would read
// it.
type AtomicWriter interface {
	Read() ([]byte, error)
	WriteAtomic(payload []byte) error
}

type atomicFileWriter struct {
	path string
	mu   *sync.Mutex
}

var (
	atomicFileLocksMu sync.Mutex
	atomicFileLocks   = map[string]*sync.Mutex{}
)

// NewAtomicFileWriter returns an AtomicWriter rooted at path.
func NewAtomicFileWriter(path string) AtomicWriter {
	if path == "" {
		return nil
	}
	return &atomicFileWriter{path: path, mu: atomicFileLock(path)}
}

func atomicFileLock(path string) *sync.Mutex {
	atomicFileLocksMu.Lock()
	defer atomicFileLocksMu.Unlock()
	if lock, ok := atomicFileLocks[path]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	atomicFileLocks[path] = lock
	return lock
}

func (w *atomicFileWriter) Read() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	payload, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return nil, io.EOF
	}
	return payload, err
}

func (w *atomicFileWriter) WriteAtomic(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.path)
	tmpPath := w.path + "_tmp"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}
	if err := syncDir(dir); err != nil {
		slog.Warn("error syncing template snapshot directory", slog.String("error", err.Error()))
	}
	return nil
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()
	return dir.Sync()
}

// EncodeSnapshot serializes every exporter's installed templates into the
// FDT1 binary format: a 4-byte magic, a 2-byte format version, a 4-byte
// exporter count, then one record per exporter: (addr as a 4-byte length
// plus bytes, domain_id, template_count, templates...),
// each template (id, is_option, scope_count, field_count, fields...), each
// field (enterprise, element_id, length).
func EncodeSnapshot(snapshot map[exporter.Key]map[uint16]*netflow.Template) []byte {
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	_ = utils.WriteU16(&buf, snapshotVersion)
	_ = utils.WriteU32(&buf, uint32(len(snapshot)))

	for key, templates := range snapshot {
		_ = utils.WriteString(&buf, key.Addr)
		_ = utils.WriteU32(&buf, key.DomainID)
		_ = utils.WriteU32(&buf, uint32(len(templates)))
		for id, tmpl := range templates {
			_ = utils.WriteU16(&buf, id)
			isOption := uint8(0)
			if tmpl.IsOption {
				isOption = 1
			}
			_ = utils.WriteU8(&buf, isOption)
			_ = utils.WriteU16(&buf, uint16(tmpl.ScopeCount))
			_ = utils.WriteU16(&buf, uint16(len(tmpl.Fields)))
			for _, f := range tmpl.Fields {
				_ = utils.WriteU32(&buf, f.Enterprise)
				_ = utils.WriteU16(&buf, f.ElementID)
				_ = utils.WriteU16(&buf, f.Length)
			}
		}
	}
	return buf.Bytes()
}

// DecodeSnapshot parses the FDT1 format produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (map[exporter.Key]map[uint16]*netflow.Template, error) {
	c := utils.NewCursor(data)
	magic, err := c.Bytes(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, snapshotMagic[:]) {
		return nil, fmt.Errorf("bad snapshot magic %x", magic)
	}
	version, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}

	exporterCount, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("read exporter count: %w", err)
	}

	out := make(map[exporter.Key]map[uint16]*netflow.Template, exporterCount)
	for i := uint32(0); i < exporterCount; i++ {
		addrLen, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("read addr length: %w", err)
		}
		addrBytes, err := c.Bytes(int(addrLen))
		if err != nil {
			return nil, fmt.Errorf("read addr: %w", err)
		}
		domainID, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("read domain id: %w", err)
		}
		templateCount, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("read template count: %w", err)
		}

		key := exporter.Key{Addr: string(addrBytes), DomainID: domainID}
		templates := make(map[uint16]*netflow.Template, templateCount)
		for j := uint32(0); j < templateCount; j++ {
			id, err := c.U16()
			if err != nil {
				return nil, fmt.Errorf("read template id: %w", err)
			}
			isOption, err := c.U8()
			if err != nil {
				return nil, fmt.Errorf("read is_option: %w", err)
			}
			scopeCount, err := c.U16()
			if err != nil {
				return nil, fmt.Errorf("read scope_count: %w", err)
			}
			fieldCount, err := c.U16()
			if err != nil {
				return nil, fmt.Errorf("read field_count: %w", err)
			}
			fields := make([]netflow.FieldSpec, 0, fieldCount)
			for k := uint16(0); k < fieldCount; k++ {
				ent, err := c.U32()
				if err != nil {
					return nil, fmt.Errorf("read field enterprise: %w", err)
				}
				elementID, err := c.U16()
				if err != nil {
					return nil, fmt.Errorf("read field element_id: %w", err)
				}
				length, err := c.U16()
				if err != nil {
					return nil, fmt.Errorf("read field length: %w", err)
				}
				fields = append(fields, netflow.FieldSpec{Enterprise: ent, ElementID: elementID, Length: length})
			}
			templates[id] = &netflow.Template{
				ID:         id,
				IsOption:   isOption != 0,
				ScopeCount: int(scopeCount),
				Fields:     fields,
			}
		}
		out[key] = templates
	}
	return out, nil
}

// PersistentRegistry wraps a Registry with load-on-start/save-on-demand
// through an AtomicWriter, so template state survives a process restart
// instead of forcing every exporter to redefine its templates.
type PersistentRegistry struct {
	*Registry
	writer AtomicWriter
}

// NewPersistentRegistry wraps reg with persistence through writer. A nil
// writer (empty path) degrades to a plain in-memory Registry.
func NewPersistentRegistry(reg *Registry, writer AtomicWriter) *PersistentRegistry {
	return &PersistentRegistry{Registry: reg, writer: writer}
}

// Load restores template state from the writer's backing file, if any
// exists yet. A missing file is not an error: it means a fresh start.
func (p *PersistentRegistry) Load() error {
	if p.writer == nil {
		return nil
	}
	payload, err := p.writer.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		return err
	}
	p.Registry.Restore(snapshot)
	return nil
}

// Save writes the current template state out through the writer.
func (p *PersistentRegistry) Save() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.WriteAtomic(EncodeSnapshot(p.Registry.Snapshot()))
}
