/*
Package num reads the integer encodings used inside CRAM name blocks and
their entropy-coded payloads.

Two families are supported: fixed-width little-endian integers, and the
variable-length "uint7" encoding, which stores an unsigned integer as a
sequence of 7-bit groups, most significant group first, with the high bit of
each byte set on every byte but the last.

	0x7f        => 127
	0x81 0x00   => 128
	0x82 0x80 0x00 => 32768

Reads come in two flavours: over an io.ByteReader (for the outer block
envelope, which may be streamed), and over a Cursor (for decoded column
streams and back-end payloads, which are always in memory).
*/
package num

import (
	"encoding/binary"
	"errors"
	"io"
)

// maxUint7Bytes is the longest uint7 encoding of a 32-bit value.
const maxUint7Bytes = 5

// ErrOverflow is returned when a uint7 value does not fit into 32 bits.
var ErrOverflow = errors.New("uint7 value overflows 32 bits")

// ReadUint7 reads one uint7-encoded value from r.
// A source exhausted before the final group yields io.ErrUnexpectedEOF.
func ReadUint7(r io.ByteReader) (uint32, error) {
	var n uint64
	for i := 0; i < maxUint7Bytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		n = n<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			if n > 0xffffffff {
				return 0, ErrOverflow
			}
			return uint32(n), nil
		}
	}
	return 0, ErrOverflow
}

// ReadUint8 reads a single byte, mapping io.EOF to io.ErrUnexpectedEOF.
func ReadUint8(r io.ByteReader) (uint8, error) {
	b, err := r.ReadByte()
	if err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	return b, err
}

// ReadUint32LE reads a little-endian 32-bit value.
func ReadUint32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
