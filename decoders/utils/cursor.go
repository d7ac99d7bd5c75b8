package utils

import (
	"encoding/binary"
	"fmt"
)

// ErrTruncated is returned by any Cursor read that would run past the end
// of the buffer. It maps onto the decoder's Truncated error kind.
var ErrTruncated = fmt.Errorf("truncated")

// Cursor is a positional, bounds-checked reader over an immutable byte
// slice. It never mutates or copies the underlying buffer except where a
// caller explicitly asks for owned bytes.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps data in a Cursor starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{buf: data}
}

// Position returns the current read offset.
func (c *Cursor) Position() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Seek moves the cursor to an absolute offset. It fails if abs is out of
// bounds of the underlying buffer.
func (c *Cursor) Seek(abs int) error {
	if abs < 0 || abs > len(c.buf) {
		return ErrTruncated
	}
	c.pos = abs
	return nil
}

func (c *Cursor) need(n int) error {
	if c.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// Bytes returns a zero-copy view of the next n bytes and advances past them.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns a zero-copy view of the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	return c.buf[c.pos : c.pos+n], nil
}

// U8 reads one unsigned byte.
func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// U16 reads a big-endian 16-bit unsigned integer.
func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// U32 reads a big-endian 32-bit unsigned integer.
func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// U64 reads a big-endian 64-bit unsigned integer.
func (c *Cursor) U64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// IPv4 returns a 4-byte zero-copy view typed as an address.
func (c *Cursor) IPv4() (IPAddress, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return nil, err
	}
	return IPAddress(b), nil
}

// IPv6 returns a 16-byte zero-copy view typed as an address.
func (c *Cursor) IPv6() (IPAddress, error) {
	b, err := c.Bytes(16)
	if err != nil {
		return nil, err
	}
	return IPAddress(b), nil
}

// VarlenIPFIX reads an IPFIX variable-length field: one length byte, and if
// it equals 255, a following 16-bit length, then that many bytes.
func (c *Cursor) VarlenIPFIX() ([]byte, error) {
	n, err := c.U8()
	if err != nil {
		return nil, err
	}
	length := uint32(n)
	if n == 0xff {
		n16, err := c.U16()
		if err != nil {
			return nil, err
		}
		length = uint32(n16)
	}
	return c.Bytes(int(length))
}

// BinaryDecoder sequentially decodes big-endian fixed-width fields from c
// into the passed pointers, in order, short-circuiting on the first error.
// Supported pointer kinds: *uint8, *uint16, *uint32, *uint64.
func BinaryDecoder(c *Cursor, fields ...interface{}) error {
	for _, f := range fields {
		var err error
		switch p := f.(type) {
		case *uint8:
			*p, err = c.U8()
		case *uint16:
			*p, err = c.U16()
		case *uint32:
			*p, err = c.U32()
		case *uint64:
			*p, err = c.U64()
		default:
			return fmt.Errorf("unsupported binary decode target %T", f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
