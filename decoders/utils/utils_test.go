package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorIntegers(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	u8, err := c.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), u8)

	u16, err := c.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), u16)

	u32, err := c.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04050607), u32)

	_, err = c.U32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestCursorU64(t *testing.T) {
	c := NewCursor([]byte{0, 0, 0, 0, 0, 0, 0, 1})
	v, err := c.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestCursorBytesZeroCopy(t *testing.T) {
	data := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	c := NewCursor(data)
	b, err := c.Bytes(4)
	require.NoError(t, err)
	assert.Equal(t, data, []byte(b))
	data[0] = 0x11
	assert.Equal(t, byte(0x11), b[0]) // the view aliases the buffer

	_, err = c.Bytes(1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestCursorIPv4(t *testing.T) {
	c := NewCursor([]byte{172, 17, 0, 2})
	ip, err := c.IPv4()
	require.NoError(t, err)
	assert.Equal(t, "172.17.0.2", ip.String())
}

func TestCursorVarlenIPFIXShort(t *testing.T) {
	c := NewCursor([]byte{5, 'h', 'e', 'l', 'l', 'o'})
	b, err := c.VarlenIPFIX()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestCursorVarlenIPFIXEscaped(t *testing.T) {
	payload := make([]byte, 300)
	data := append([]byte{0xff, 0x01, 0x2c}, payload...)
	c := NewCursor(data)
	b, err := c.VarlenIPFIX()
	require.NoError(t, err)
	assert.Len(t, b, 300)
}

func TestCursorSeekAndPosition(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4})
	require.NoError(t, c.Seek(2))
	assert.Equal(t, 2, c.Position())
	assert.Equal(t, 2, c.Remaining())
	assert.Error(t, c.Seek(10))
}

func TestBinaryDecoder(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0x14})
	var version, count uint16
	var sysUptime uint32
	require.NoError(t, BinaryDecoder(c, &version, &count, &sysUptime))
	assert.Equal(t, uint16(9), version)
	assert.Equal(t, uint16(0), count)
	assert.Equal(t, uint32(20), sysUptime)
}
