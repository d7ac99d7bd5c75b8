// Package producer shapes a decoded export packet into the wire record
// the output layer serializes, the same role the reference collector's
// raw producer plays between decode and format.
package producer

import (
	"fmt"
	"net"
	"strconv"

	"github.com/flowbridge/flowdecode/decode"
)

// Record is the JSON-lines record SPEC_FULL.md's external interface
// names: client transport info, the version-specific header, and the
// decoded flows.
type Record struct {
	Client [2]interface{}           `json:"client"`
	Header map[string]interface{}   `json:"header"`
	Flows  []map[string]interface{} `json:"flows"`
}

// FromPacket builds the output record for pkt, received from clientAddr
// (host:port, as net.Listener/net.PacketConn report it).
func FromPacket(pkt *decode.ExportPacket, clientAddr string) (*Record, error) {
	host, portStr, err := net.SplitHostPort(clientAddr)
	if err != nil {
		return nil, fmt.Errorf("split client address %q: %w", clientAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse client port %q: %w", portStr, err)
	}

	flows := pkt.Flows
	if flows == nil {
		flows = []map[string]interface{}{}
	}

	return &Record{
		Client: [2]interface{}{host, port},
		Header: headerFields(pkt),
		Flows:  flows,
	}, nil
}

func headerFields(pkt *decode.ExportPacket) map[string]interface{} {
	switch {
	case pkt.HeaderV1 != nil:
		return map[string]interface{}{
			"version":    pkt.HeaderV1.Version,
			"count":      pkt.HeaderV1.Count,
			"sys_uptime": pkt.HeaderV1.SysUptime,
			"unix_secs":  pkt.HeaderV1.UnixSecs,
		}
	case pkt.HeaderV5 != nil:
		h := pkt.HeaderV5
		return map[string]interface{}{
			"version":       h.Version,
			"count":         h.Count,
			"sys_uptime":    h.SysUptime,
			"unix_secs":     h.UnixSecs,
			"flow_sequence": h.FlowSequence,
			"engine_type":   h.EngineType,
			"engine_id":     h.EngineID,
			"sampling_mode": h.SamplingMode(),
			"sampling_rate": h.SamplingRate(),
		}
	case pkt.HeaderV9 != nil:
		h := pkt.HeaderV9
		return map[string]interface{}{
			"version":    h.Version,
			"count":      h.Count,
			"sys_uptime": h.SysUptime,
			"unix_secs":  h.UnixSecs,
			"sequence":   h.Sequence,
			"source_id":  h.SourceID,
		}
	case pkt.HeaderIPFIX != nil:
		h := pkt.HeaderIPFIX
		return map[string]interface{}{
			"version":       h.Version,
			"length":        h.Length,
			"export_time":   h.ExportTime,
			"sequence":      h.Sequence,
			"obs_domain_id": h.ObsDomainID,
		}
	default:
		return map[string]interface{}{"version": pkt.Version}
	}
}
