package netflow

import (
	"encoding/binary"
	"fmt"

	"github.com/flowbridge/flowdecode/decoders/utils"
)

// VarlenSentinel marks a field as IPFIX variable-length in a template.
const VarlenSentinel = 0xffff

// FieldSpec describes one field of a template: its information-element id,
// optional enterprise (PEN) number, and declared byte length.
type FieldSpec struct {
	Enterprise uint32
	ElementID  uint16
	Length     uint16
}

// IsEnterprise reports whether this field carries a vendor-specific PEN.
func (f FieldSpec) IsEnterprise() bool {
	return f.Enterprise != 0
}

// Name returns the canonical field name for known IEs, or the
// "_<id>"/"_<pen>_<id>" fallback for unknown or enterprise fields.
func (f FieldSpec) Name() string {
	if f.IsEnterprise() {
		return fmt.Sprintf("_%d_%d", f.Enterprise, f.ElementID)
	}
	if e, ok := Catalog[f.ElementID]; ok {
		return e.Name
	}
	return fmt.Sprintf("_%d", f.ElementID)
}

// Kind returns the decode kind for this field: catalog kind for known,
// non-enterprise IEs, KindBytes otherwise (CatalogGap).
func (f FieldSpec) Kind() FieldKind {
	if f.IsEnterprise() {
		return KindBytes
	}
	if e, ok := Catalog[f.ElementID]; ok {
		return e.Kind
	}
	return KindBytes
}

// CatalogGap reports whether this field falls back to the numeric
// "_<id>" name and KindBytes decode: a non-enterprise element id absent
// from Catalog. Enterprise fields are never a gap; their opaque decode
// is expected, not a missing catalog entry.
func (f FieldSpec) CatalogGap() bool {
	if f.IsEnterprise() {
		return false
	}
	_, ok := Catalog[f.ElementID]
	return !ok
}

// Template is a v9 or IPFIX template or option-template, keyed by
// (ExporterKey, ID) in the registry. Replaced wholesale on redefinition.
type Template struct {
	ID         uint16
	IsOption   bool
	ScopeCount int
	Fields     []FieldSpec
}

// FixedLength returns the byte stride of one data record described by this
// template, and whether that stride is fixed (false if any field carries
// the IPFIX variable-length sentinel).
func (t *Template) FixedLength() (int, bool) {
	total := 0
	for _, f := range t.Fields {
		if f.Length == VarlenSentinel {
			return 0, false
		}
		total += int(f.Length)
	}
	return total, true
}

// MinRecordLength returns the smallest a record of this template could
// possibly be: declared length for fixed fields, one byte (a zero-length
// value's length prefix) for each variable-length field. Used to tell a
// genuinely truncated record apart from trailing zero padding in a
// variable-length set.
func (t *Template) MinRecordLength() int {
	total := 0
	for _, f := range t.Fields {
		if f.Length == VarlenSentinel {
			total++
		} else {
			total += int(f.Length)
		}
	}
	return total
}

// Equal reports whether two templates describe the same field shape
// (used to detect exporter-restart-style template redefinition).
func (t *Template) Equal(other *Template) bool {
	if other == nil || t.IsOption != other.IsOption || t.ScopeCount != other.ScopeCount {
		return false
	}
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if f != other.Fields[i] {
			return false
		}
	}
	return true
}

// DecodeFieldValue interprets raw bytes per kind, copying them so the
// result never aliases the input datagram buffer.
func DecodeFieldValue(kind FieldKind, raw []byte) interface{} {
	owned := make([]byte, len(raw))
	copy(owned, raw)

	switch kind {
	case KindUint:
		return decodeUint(owned)
	case KindIPv4:
		if len(owned) == 4 {
			return utils.IPAddress(owned)
		}
		return owned
	case KindIPv6:
		if len(owned) == 16 {
			return utils.IPAddress(owned)
		}
		return owned
	case KindMAC:
		if len(owned) == 6 {
			return utils.MacAddress(owned)
		}
		return owned
	default:
		return owned
	}
}

// decodeUint left-zero-pads raw (1..8 bytes) into a big-endian uint64.
// Longer fields are truncated to their low 8 bytes, matching the
// reference collector's behaviour for oversized counters.
func decodeUint(raw []byte) uint64 {
	if len(raw) > 8 {
		raw = raw[len(raw)-8:]
	}
	var padded [8]byte
	copy(padded[8-len(raw):], raw)
	return binary.BigEndian.Uint64(padded[:])
}
