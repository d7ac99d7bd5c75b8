package netflow

import (
	"github.com/flowbridge/flowdecode/decoders/utils"
	"github.com/flowbridge/flowdecode/errs"
)

// Registry is the read/write handle into the per-exporter template cache
// that the dispatch layer threads through the v9 and IPFIX parsers. Get
// and Put must be linearizable per key if the embedder parallelizes across
// exporters; this package never holds the lock across a yield point.
type Registry interface {
	Get(templateID uint16) (*Template, bool)
	// Put installs or replaces a template, returning true if the stored
	// shape changed (new id, or a redefinition with a different shape).
	Put(templateID uint16, t *Template) bool
}

// HeaderV9 is the 20-byte NetFlow v9 header.
type HeaderV9 struct {
	Version   uint16
	Count     uint16 // diagnostic only; never bounds iteration
	SysUptime uint32
	UnixSecs  uint32
	Sequence  uint32
	SourceID  uint32
}

// HeaderIPFIX is the 16-byte IPFIX header.
type HeaderIPFIX struct {
	Version     uint16
	Length      uint16
	ExportTime  uint32
	Sequence    uint32
	ObsDomainID uint32
}

// DataRecord is one decoded data record: which template described it, and
// its field-named values.
type DataRecord struct {
	TemplateID uint16
	Fields     map[string]interface{}
}

// Diagnostics counts non-fatal problems encountered while decoding one
// datagram, mirroring the per-ExporterKey counters in the error taxonomy.
type Diagnostics struct {
	Malformed  int
	CatalogGap int
}

// V9Result is the outcome of decoding one v9 datagram.
type V9Result struct {
	Header       HeaderV9
	Records      []DataRecord
	NewTemplates []*Template
	// Redefined lists templates among NewTemplates that replaced an
	// already-installed template with a different shape under the same
	// id, the signal an exporter restart or renumbering surfaces as.
	Redefined   []*Template
	Unresolved  map[uint16]struct{}
	Diagnostics Diagnostics
}

// IPFIXResult is the outcome of decoding one IPFIX datagram.
type IPFIXResult struct {
	Header       HeaderIPFIX
	Records      []DataRecord
	NewTemplates []*Template
	Redefined    []*Template
	Unresolved   map[uint16]struct{}
	Diagnostics  Diagnostics
}

type pendingSet struct {
	templateID uint16
	body       []byte
}

// applyTemplate installs t into reg and reports it on newTemplates (and,
// if it replaced a differently-shaped template under the same id, on
// redefined too) exactly when the stored shape changed.
func applyTemplate(reg Registry, t *Template, newTemplates, redefined *[]*Template) {
	_, existed := reg.Get(t.ID)
	if !reg.Put(t.ID, t) {
		return
	}
	*newTemplates = append(*newTemplates, t)
	if existed {
		*redefined = append(*redefined, t)
	}
}

// DecodeV9 performs the two-pass decode of one v9 datagram: pass 1 installs
// every template/option-template flowset into reg regardless of its
// position in the datagram; pass 2 decodes every data flowset against the
// registry's now-current state. Data sets whose template is still unknown
// after pass 1 are reported via Unresolved and excluded from Records; the
// caller is expected to defer the whole datagram when Unresolved is
// non-empty, since pass 1's template installs are idempotent to repeat.
func DecodeV9(data []byte, reg Registry) (*V9Result, error) {
	c := utils.NewCursor(data)

	var hdr HeaderV9
	if err := utils.BinaryDecoder(c, &hdr.Version, &hdr.Count, &hdr.SysUptime, &hdr.UnixSecs, &hdr.Sequence, &hdr.SourceID); err != nil {
		return nil, errs.New(errs.Truncated, err)
	}

	result := &V9Result{Header: hdr, Unresolved: map[uint16]struct{}{}}
	var pending []pendingSet

	for c.Remaining() >= 4 {
		flowsetID, err := c.U16()
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		length, err := c.U16()
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		if length < 4 {
			return nil, errs.New(errs.Malformed, nil)
		}
		bodyLen := int(length) - 4
		body, err := c.Bytes(bodyLen)
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}

		switch {
		case flowsetID == 0:
			tmpls, err := decodeTemplateSet(body, false)
			if err != nil {
				result.Diagnostics.Malformed++
				continue
			}
			for _, t := range tmpls {
				applyTemplate(reg, t, &result.NewTemplates, &result.Redefined)
			}
		case flowsetID == 1:
			tmpls, err := decodeV9OptionsTemplateSet(body)
			if err != nil {
				result.Diagnostics.Malformed++
				continue
			}
			for _, t := range tmpls {
				applyTemplate(reg, t, &result.NewTemplates, &result.Redefined)
			}
		case flowsetID >= 256:
			pending = append(pending, pendingSet{templateID: flowsetID, body: body})
		default:
			// Reserved/unused flowset ids: ignore, they frame cleanly.
		}
	}

	for _, p := range pending {
		tmpl, ok := reg.Get(p.templateID)
		if !ok {
			result.Unresolved[p.templateID] = struct{}{}
			continue
		}
		recs, gaps, err := decodeDataBody(p.body, tmpl)
		if err != nil {
			result.Diagnostics.Malformed++
			continue
		}
		result.Diagnostics.CatalogGap += gaps
		for _, fields := range recs {
			result.Records = append(result.Records, DataRecord{TemplateID: p.templateID, Fields: fields})
		}
	}

	return result, nil
}

// DecodeIPFIX performs the two-pass decode of one IPFIX datagram. Unlike
// v9, the header's Length field bounds iteration exactly.
func DecodeIPFIX(data []byte, reg Registry) (*IPFIXResult, error) {
	c := utils.NewCursor(data)

	var hdr HeaderIPFIX
	if err := utils.BinaryDecoder(c, &hdr.Version, &hdr.Length, &hdr.ExportTime, &hdr.Sequence, &hdr.ObsDomainID); err != nil {
		return nil, errs.New(errs.Truncated, err)
	}
	if int(hdr.Length) > len(data) {
		return nil, errs.New(errs.Malformed, nil)
	}

	result := &IPFIXResult{Header: hdr, Unresolved: map[uint16]struct{}{}}
	var pending []pendingSet

	end := int(hdr.Length)
	for end-c.Position() >= 4 {
		setID, err := c.U16()
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		length, err := c.U16()
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		if length < 4 || c.Position()+int(length)-4 > end {
			return nil, errs.New(errs.Malformed, nil)
		}
		bodyLen := int(length) - 4
		body, err := c.Bytes(bodyLen)
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}

		switch {
		case setID == 2:
			tmpls, err := decodeTemplateSet(body, true)
			if err != nil {
				result.Diagnostics.Malformed++
				continue
			}
			for _, t := range tmpls {
				applyTemplate(reg, t, &result.NewTemplates, &result.Redefined)
			}
		case setID == 3:
			tmpls, err := decodeIPFIXOptionsTemplateSet(body)
			if err != nil {
				result.Diagnostics.Malformed++
				continue
			}
			for _, t := range tmpls {
				applyTemplate(reg, t, &result.NewTemplates, &result.Redefined)
			}
		case setID >= 256:
			pending = append(pending, pendingSet{templateID: setID, body: body})
		default:
		}
	}

	for _, p := range pending {
		tmpl, ok := reg.Get(p.templateID)
		if !ok {
			result.Unresolved[p.templateID] = struct{}{}
			continue
		}
		recs, gaps, err := decodeDataBody(p.body, tmpl)
		if err != nil {
			result.Diagnostics.Malformed++
			continue
		}
		result.Diagnostics.CatalogGap += gaps
		for _, fields := range recs {
			result.Records = append(result.Records, DataRecord{TemplateID: p.templateID, Fields: fields})
		}
	}

	return result, nil
}

// decodeTemplateSet reads every (non-option) template record packed into
// one template-set flowset body. enterprise enables the IPFIX high-bit PEN
// convention; v9 template fields never carry a PEN.
func decodeTemplateSet(body []byte, enterprise bool) ([]*Template, error) {
	c := utils.NewCursor(body)
	var out []*Template
	for c.Remaining() >= 4 {
		templateID, err := c.U16()
		if err != nil {
			return out, err
		}
		fieldCount, err := c.U16()
		if err != nil {
			return out, err
		}
		fields, err := decodeFieldSpecs(c, int(fieldCount), enterprise)
		if err != nil {
			return out, err
		}
		out = append(out, &Template{ID: templateID, Fields: fields})
	}
	return out, nil
}

// decodeV9OptionsTemplateSet reads v9 options-template records: scope and
// option field counts are given in bytes, divided by 4 to get field counts.
func decodeV9OptionsTemplateSet(body []byte) ([]*Template, error) {
	c := utils.NewCursor(body)
	var out []*Template
	for c.Remaining() >= 6 {
		templateID, err := c.U16()
		if err != nil {
			return out, err
		}
		scopeLength, err := c.U16()
		if err != nil {
			return out, err
		}
		optionLength, err := c.U16()
		if err != nil {
			return out, err
		}
		if scopeLength == 0 || scopeLength%4 != 0 || optionLength%4 != 0 {
			return out, errs.New(errs.Malformed, nil)
		}
		scopeCount := int(scopeLength) / 4
		optionCount := int(optionLength) / 4

		scopeFields, err := decodeFieldSpecs(c, scopeCount, false)
		if err != nil {
			return out, err
		}
		optionFields, err := decodeFieldSpecs(c, optionCount, false)
		if err != nil {
			return out, err
		}
		out = append(out, &Template{
			ID:         templateID,
			IsOption:   true,
			ScopeCount: scopeCount,
			Fields:     append(scopeFields, optionFields...),
		})
	}
	return out, nil
}

// decodeIPFIXOptionsTemplateSet reads IPFIX options-template records: the
// first scopeFieldCount fields (of fieldCount total) are scope fields.
func decodeIPFIXOptionsTemplateSet(body []byte) ([]*Template, error) {
	c := utils.NewCursor(body)
	var out []*Template
	for c.Remaining() >= 6 {
		templateID, err := c.U16()
		if err != nil {
			return out, err
		}
		fieldCount, err := c.U16()
		if err != nil {
			return out, err
		}
		scopeFieldCount, err := c.U16()
		if err != nil {
			return out, err
		}
		if scopeFieldCount == 0 || scopeFieldCount > fieldCount {
			return out, errs.New(errs.Malformed, nil)
		}
		fields, err := decodeFieldSpecs(c, int(fieldCount), true)
		if err != nil {
			return out, err
		}
		out = append(out, &Template{
			ID:         templateID,
			IsOption:   true,
			ScopeCount: int(scopeFieldCount),
			Fields:     fields,
		})
	}
	return out, nil
}

// decodeFieldSpecs reads n (id, length[, enterprise]) field descriptors.
func decodeFieldSpecs(c *utils.Cursor, n int, enterprise bool) ([]FieldSpec, error) {
	fields := make([]FieldSpec, 0, n)
	for i := 0; i < n; i++ {
		id, err := c.U16()
		if err != nil {
			return nil, err
		}
		length, err := c.U16()
		if err != nil {
			return nil, err
		}
		var pen uint32
		if enterprise && id&0x8000 != 0 {
			id &^= 0x8000
			pen, err = c.U32()
			if err != nil {
				return nil, err
			}
		}
		fields = append(fields, FieldSpec{Enterprise: pen, ElementID: id, Length: length})
	}
	return fields, nil
}

// decodeDataBody slices body into records per tmpl's stride (fixed-length
// templates, where a trailing remainder shorter than one stride is
// discarded by integer division) or per per-record length prefixes
// (variable-length IPFIX templates, where a trailing run of zero bytes
// shorter than the template's minimum record length is discarded as
// padding instead of attempted as a truncated record). A body shorter
// than a single record is Malformed. The returned int is the number of
// catalog-gap fields encountered across every record, for the caller to
// fold into Diagnostics.CatalogGap.
func decodeDataBody(body []byte, tmpl *Template) ([]map[string]interface{}, int, error) {
	stride, fixed := tmpl.FixedLength()
	gaps := 0
	if fixed {
		if stride == 0 || len(body) < stride {
			return nil, 0, errs.New(errs.Malformed, nil)
		}
		count := len(body) / stride
		out := make([]map[string]interface{}, 0, count)
		c := utils.NewCursor(body)
		for i := 0; i < count; i++ {
			fields, g, err := decodeOneRecord(c, tmpl.Fields)
			if err != nil {
				return nil, gaps, err
			}
			gaps += g
			out = append(out, fields)
		}
		return out, gaps, nil
	}

	var out []map[string]interface{}
	c := utils.NewCursor(body)
	minLen := tmpl.MinRecordLength()
	for c.Remaining() > 0 {
		if c.Remaining() < minLen {
			if remainingIsZeroPadding(c) {
				break
			}
			return nil, gaps, errs.New(errs.Malformed, nil)
		}
		fields, g, err := decodeOneRecord(c, tmpl.Fields)
		if err != nil {
			return nil, gaps, err
		}
		gaps += g
		out = append(out, fields)
	}
	if len(out) == 0 {
		return nil, gaps, errs.New(errs.Malformed, nil)
	}
	return out, gaps, nil
}

// remainingIsZeroPadding reports whether every unread byte in c is zero,
// without advancing the cursor.
func remainingIsZeroPadding(c *utils.Cursor) bool {
	rest, err := c.Peek(c.Remaining())
	if err != nil {
		return false
	}
	for _, b := range rest {
		if b != 0 {
			return false
		}
	}
	return true
}

func decodeOneRecord(c *utils.Cursor, fields []FieldSpec) (map[string]interface{}, int, error) {
	out := make(map[string]interface{}, len(fields))
	gaps := 0
	for _, f := range fields {
		var raw []byte
		var err error
		if f.Length == VarlenSentinel {
			raw, err = c.VarlenIPFIX()
		} else {
			raw, err = c.Bytes(int(f.Length))
		}
		if err != nil {
			return nil, gaps, errs.New(errs.Malformed, err)
		}
		if f.CatalogGap() {
			gaps++
		}
		out[f.Name()] = DecodeFieldValue(f.Kind(), raw)
	}
	return out, gaps, nil
}
