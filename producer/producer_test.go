package producer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowbridge/flowdecode/decode"
	"github.com/flowbridge/flowdecode/decoders/netflowlegacy"
)

func TestFromPacketV5(t *testing.T) {
	pkt := &decode.ExportPacket{
		Version: 5,
		HeaderV5: &netflowlegacy.HeaderV5{
			Version:          5,
			Count:            1,
			FlowSequence:     42,
			SamplingInterval: 0x4005,
		},
		Flows: []map[string]interface{}{
			{"IPV4_SRC_ADDR": "10.0.0.1"},
		},
	}

	rec, err := FromPacket(pkt, "203.0.113.9:2055")
	require.NoError(t, err)
	require.Equal(t, [2]interface{}{"203.0.113.9", 2055}, rec.Client)
	require.Equal(t, uint16(5), rec.Header["version"])
	require.Equal(t, uint8(1), rec.Header["sampling_mode"])
	require.Equal(t, uint16(5), rec.Header["sampling_rate"])
	require.Len(t, rec.Flows, 1)
}

func TestFromPacketEmptyFlows(t *testing.T) {
	pkt := &decode.ExportPacket{Version: 5, HeaderV5: &netflowlegacy.HeaderV5{}}

	rec, err := FromPacket(pkt, "10.0.0.1:2055")
	require.NoError(t, err)
	require.NotNil(t, rec.Flows)
	require.Empty(t, rec.Flows)
}

func TestFromPacketRejectsBadClientAddr(t *testing.T) {
	pkt := &decode.ExportPacket{Version: 5, HeaderV5: &netflowlegacy.HeaderV5{}}
	_, err := FromPacket(pkt, "not-a-host-port")
	require.Error(t, err)
}
