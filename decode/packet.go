package decode

import (
	"time"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/decoders/netflowlegacy"
	"github.com/flowbridge/flowdecode/exporter"
)

// ExporterKey is re-exported here under the name SPEC_FULL.md uses; the
// type itself lives in package exporter so the template registry doesn't
// need to import this package.
type ExporterKey = exporter.Key

// ExportPacket is the tagged-variant result of a successful decode: exactly
// one of the Header* fields is non-nil, selected by Version.
type ExportPacket struct {
	Version     uint16
	Exporter    ExporterKey
	ReceiptTime time.Time

	HeaderV1    *netflowlegacy.HeaderV1
	HeaderV5    *netflowlegacy.HeaderV5
	HeaderV9    *netflow.HeaderV9
	HeaderIPFIX *netflow.HeaderIPFIX

	Flows []map[string]interface{}

	// NewTemplates lists templates newly installed (or redefined) while
	// decoding this datagram; empty for v1/v5 and for v9/IPFIX datagrams
	// that carried only data.
	NewTemplates []*netflow.Template
}
