package nametok

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// BackEndKind selects the entropy coder used for every column of a block.
type BackEndKind uint8

const (
	RangeCoder      BackEndKind = iota // rANS Nx16
	ArithmeticCoder                    // adaptive arithmetic coder
)

func (k BackEndKind) String() string {
	if k == ArithmeticCoder {
		return "arith"
	}
	return "rans"
}

// headerSize is the size of the fixed block envelope in bytes.
const headerSize = 9

// Header is the fixed envelope of a name block.
type Header struct {
	UncompressedLen int // size of the decoded names buffer, a capacity hint only
	NameCount       int
	BackEnd         BackEndKind
}

// ReadHeader reads a block header: two little-endian 32-bit sizes and the
// back-end flag, where 1 selects the arithmetic coder and anything else the
// range coder.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, truncated(err, "block header")
	}
	ulen, err := toSize(binary.LittleEndian.Uint32(buf[0:4]), "uncompressed length")
	if err != nil {
		return Header{}, err
	}
	n, err := toSize(binary.LittleEndian.Uint32(buf[4:8]), "name count")
	if err != nil {
		return Header{}, err
	}
	h := Header{UncompressedLen: ulen, NameCount: n, BackEnd: RangeCoder}
	if buf[8] == 1 {
		h.BackEnd = ArithmeticCoder
	}
	return h, nil
}

func toSize(v uint32, what string) (int, error) {
	if uint64(v) > math.MaxInt {
		return 0, fmt.Errorf("%w: %s %d", ErrInvalidSize, what, v)
	}
	return int(v), nil
}
