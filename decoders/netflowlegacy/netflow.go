package netflowlegacy

import (
	"github.com/flowbridge/flowdecode/decoders/utils"
	"github.com/flowbridge/flowdecode/errs"
)

// ipv4 copies a 4-byte address out of the record buffer so the result
// never aliases the datagram buffer the caller may reuse once Decode
// returns.
func ipv4(c *utils.Cursor) utils.IPAddress {
	addr, _ := c.IPv4()
	return append(utils.IPAddress(nil), addr...)
}

// DecodeV1 decodes a 16-byte-header NetFlow v1 datagram: Header.Count
// fixed-layout 48-byte records, no templates, all addresses IPv4.
func DecodeV1(data []byte) (*PacketV1, error) {
	c := utils.NewCursor(data)
	var hdr HeaderV1
	if err := utils.BinaryDecoder(c, &hdr.Version, &hdr.Count, &hdr.SysUptime, &hdr.UnixSecs, &hdr.UnixNSecs); err != nil {
		return nil, errs.New(errs.Truncated, err)
	}

	pkt := &PacketV1{Header: hdr}
	for i := 0; i < int(hdr.Count); i++ {
		raw, err := c.Bytes(v1RecordLength)
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		pkt.Records = append(pkt.Records, decodeV1Record(raw))
	}
	return pkt, nil
}

// decodeV1Record lays out the 48-byte v1 record per the reference
// collector: PROTO at byte 38, TOS at 39, TCP_FLAGS at 40 (v1 orders these
// differently from v5 — confirmed against the original Python source, not
// guessed).
func decodeV1Record(b []byte) Record {
	c := utils.NewCursor(b)
	r := Record{}
	r["IPV4_SRC_ADDR"] = ipv4(c)
	r["IPV4_DST_ADDR"] = ipv4(c)
	r["IPV4_NEXT_HOP"] = ipv4(c)
	input, _ := c.U16()
	output, _ := c.U16()
	r["INPUT_SNMP"] = uint64(input)
	r["OUTPUT_SNMP"] = uint64(output)
	pkts, _ := c.U32()
	octets, _ := c.U32()
	r["IN_PKTS"] = uint64(pkts)
	r["IN_BYTES"] = uint64(octets)
	first, _ := c.U32()
	last, _ := c.U32()
	r["FIRST_SWITCHED"] = uint64(first)
	r["LAST_SWITCHED"] = uint64(last)
	srcPort, _ := c.U16()
	dstPort, _ := c.U16()
	r["L4_SRC_PORT"] = uint64(srcPort)
	r["L4_DST_PORT"] = uint64(dstPort)
	_, _ = c.Bytes(2) // padding
	proto, _ := c.U8()
	tos, _ := c.U8()
	flags, _ := c.U8()
	r["PROTOCOL"] = uint64(proto)
	r["SRC_TOS"] = uint64(tos)
	r["TCP_FLAGS"] = uint64(flags)
	return r
}

// DecodeV5 decodes a 24-byte-header NetFlow v5 datagram.
func DecodeV5(data []byte) (*PacketV5, error) {
	c := utils.NewCursor(data)
	var hdr HeaderV5
	if err := utils.BinaryDecoder(c, &hdr.Version, &hdr.Count, &hdr.SysUptime, &hdr.UnixSecs, &hdr.UnixNSecs,
		&hdr.FlowSequence); err != nil {
		return nil, errs.New(errs.Truncated, err)
	}
	engineType, err := c.U8()
	if err != nil {
		return nil, errs.New(errs.Truncated, err)
	}
	engineID, err := c.U8()
	if err != nil {
		return nil, errs.New(errs.Truncated, err)
	}
	samplingInterval, err := c.U16()
	if err != nil {
		return nil, errs.New(errs.Truncated, err)
	}
	hdr.EngineType, hdr.EngineID, hdr.SamplingInterval = engineType, engineID, samplingInterval

	pkt := &PacketV5{Header: hdr}
	for i := 0; i < int(hdr.Count); i++ {
		raw, err := c.Bytes(v5RecordLength)
		if err != nil {
			return nil, errs.New(errs.Truncated, err)
		}
		pkt.Records = append(pkt.Records, decodeV5Record(raw))
	}
	return pkt, nil
}

// decodeV5Record lays out the 48-byte v5 record: TCP_FLAGS at byte 37,
// PROTOCOL at 38, TOS at 39 — byte 36 and the trailing word are padding.
func decodeV5Record(b []byte) Record {
	c := utils.NewCursor(b)
	r := Record{}
	r["IPV4_SRC_ADDR"] = ipv4(c)
	r["IPV4_DST_ADDR"] = ipv4(c)
	r["IPV4_NEXT_HOP"] = ipv4(c)
	input, _ := c.U16()
	output, _ := c.U16()
	r["INPUT_SNMP"] = uint64(input)
	r["OUTPUT_SNMP"] = uint64(output)
	pkts, _ := c.U32()
	octets, _ := c.U32()
	r["IN_PKTS"] = uint64(pkts)
	r["IN_BYTES"] = uint64(octets)
	first, _ := c.U32()
	last, _ := c.U32()
	r["FIRST_SWITCHED"] = uint64(first)
	r["LAST_SWITCHED"] = uint64(last)
	srcPort, _ := c.U16()
	dstPort, _ := c.U16()
	r["L4_SRC_PORT"] = uint64(srcPort)
	r["L4_DST_PORT"] = uint64(dstPort)
	_, _ = c.U8() // padding
	flags, _ := c.U8()
	proto, _ := c.U8()
	tos, _ := c.U8()
	r["TCP_FLAGS"] = uint64(flags)
	r["PROTOCOL"] = uint64(proto)
	r["SRC_TOS"] = uint64(tos)
	srcAS, _ := c.U16()
	dstAS, _ := c.U16()
	r["SRC_AS"] = uint64(srcAS)
	r["DST_AS"] = uint64(dstAS)
	srcMask, _ := c.U8()
	dstMask, _ := c.U8()
	r["SRC_MASK"] = uint64(srcMask)
	r["DST_MASK"] = uint64(dstMask)
	return r
}
