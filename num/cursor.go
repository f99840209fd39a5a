package num

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Cursor is a forward-only read position over an in-memory byte slice.
// All reads fail with io.ErrUnexpectedEOF instead of reading past the end.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates a cursor positioned at the start of buf.
// The cursor does not copy buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int {
	return c.pos
}

// Bytes returns the complete underlying buffer, read or not.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Rest returns the unread part of the buffer without consuming it.
func (c *Cursor) Rest() []byte {
	return c.buf[c.pos:]
}

// ReadByte implements io.ByteReader.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	if c.pos >= len(c.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Uint16LE reads a little-endian 16-bit value.
func (c *Cursor) Uint16LE() (uint16, error) {
	if c.Len() < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// Uint32LE reads a little-endian 32-bit value.
func (c *Cursor) Uint32LE() (uint32, error) {
	if c.Len() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// Uint7 reads one uint7-encoded value.
func (c *Cursor) Uint7() (uint32, error) {
	return ReadUint7(c)
}

// Next consumes and returns the next n bytes. The result aliases the
// cursor's buffer.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || c.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.Next(n)
	return err
}

// CString consumes bytes up to and including the next NUL and returns them
// without the terminator. A missing terminator yields io.ErrUnexpectedEOF.
func (c *Cursor) CString() ([]byte, error) {
	i := bytes.IndexByte(c.buf[c.pos:], 0)
	if i < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	s := c.buf[c.pos : c.pos+i]
	c.pos += i + 1
	return s, nil
}
