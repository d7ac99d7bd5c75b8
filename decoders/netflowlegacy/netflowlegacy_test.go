package netflowlegacy

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// v1Record builds one 48-byte v1 record with PROTO at 38, TOS at 39,
// TCP_FLAGS at 40.
func v1Record(src, dst, nextHop [4]byte, proto, tos, flags byte) []byte {
	r := append([]byte{}, src[:]...)
	r = append(r, dst[:]...)
	r = append(r, nextHop[:]...)
	r = append(r, be16(1)...)    // input
	r = append(r, be16(2)...)    // output
	r = append(r, be32(10)...)   // pkts
	r = append(r, be32(1500)...) // bytes
	r = append(r, be32(0)...)    // first
	r = append(r, be32(0)...)    // last
	r = append(r, be16(1234)...)
	r = append(r, be16(80)...)
	r = append(r, 0, 0) // padding
	r = append(r, proto, tos, flags)
	r = append(r, make([]byte, v1RecordLength-len(r))...) // trailing unused bytes
	return r
}

func TestDecodeV1(t *testing.T) {
	hdr := append(be16(1), be16(1)...)
	hdr = append(hdr, be32(0)...)
	hdr = append(hdr, be32(0)...)
	hdr = append(hdr, be32(0)...)

	rec := v1Record([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 254}, 6, 0, 0x18)
	datagram := append(hdr, rec...)

	pkt, err := DecodeV1(datagram)
	require.NoError(t, err)
	require.Len(t, pkt.Records, 1)
	r := pkt.Records[0]
	require.Equal(t, "192.168.1.1", r["IPV4_SRC_ADDR"].(interface{ String() string }).String())
	require.Equal(t, uint64(6), r["PROTOCOL"])
	require.Equal(t, uint64(0), r["SRC_TOS"])
	require.Equal(t, uint64(0x18), r["TCP_FLAGS"])
}

// v5Record is the spec's canonical 48-byte v5 record: TCP_FLAGS at byte
// 37, PROTOCOL at 38, TOS at 39.
func v5Record(src, dst, nextHop [4]byte, flags, proto, tos byte) []byte {
	r := append([]byte{}, src[:]...)
	r = append(r, dst[:]...)
	r = append(r, nextHop[:]...)
	r = append(r, be16(1)...)
	r = append(r, be16(2)...)
	r = append(r, be32(10)...)
	r = append(r, be32(1500)...)
	r = append(r, be32(0)...)
	r = append(r, be32(0)...)
	r = append(r, be16(1234)...)
	r = append(r, be16(80)...)
	r = append(r, 0) // padding
	r = append(r, flags, proto, tos)
	r = append(r, be16(100)...) // src as
	r = append(r, be16(200)...) // dst as
	r = append(r, 24, 24)       // src/dst mask
	r = append(r, make([]byte, v5RecordLength-len(r))...) // trailing pad2
	return r
}

func TestDecodeV5Canonical(t *testing.T) {
	hdr := append(be16(5), be16(1)...)
	hdr = append(hdr, be32(0)...) // uptime
	hdr = append(hdr, be32(0)...) // unix secs
	hdr = append(hdr, be32(0)...) // unix nsecs
	hdr = append(hdr, be32(1)...) // flow sequence
	hdr = append(hdr, 0, 0)       // engine type/id
	hdr = append(hdr, be16(0x4005)...) // sampling mode=1, rate=5

	rec := v5Record([4]byte{203, 0, 113, 1}, [4]byte{198, 51, 100, 1}, [4]byte{203, 0, 113, 254}, 0x18, 6, 0)
	datagram := append(hdr, rec...)

	pkt, err := DecodeV5(datagram)
	require.NoError(t, err)
	require.Equal(t, uint8(1), pkt.Header.SamplingMode())
	require.Equal(t, uint16(5), pkt.Header.SamplingRate())
	require.Len(t, pkt.Records, 1)

	r := pkt.Records[0]
	require.Equal(t, "203.0.113.1", r["IPV4_SRC_ADDR"].(interface{ String() string }).String())
	require.Equal(t, "198.51.100.1", r["IPV4_DST_ADDR"].(interface{ String() string }).String())
	require.Equal(t, uint64(0x18), r["TCP_FLAGS"])
	require.Equal(t, uint64(6), r["PROTOCOL"])
	require.Equal(t, uint64(0), r["SRC_TOS"])
	require.Equal(t, uint64(100), r["SRC_AS"])
	require.Equal(t, uint64(200), r["DST_AS"])
	require.Equal(t, uint64(24), r["SRC_MASK"])
}

func TestDecodeV1TruncatedHeader(t *testing.T) {
	_, err := DecodeV1([]byte{0, 1, 0, 0})
	require.Error(t, err)
}
