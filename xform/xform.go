/*
Package xform implements the byte transforms shared by the CRAM 3.1 entropy
back-ends: bit-packing of small alphabets and N-way striping of
fixed-width records.

Both transforms wrap an entropy-coded payload; the back-end decodes the inner
stream first and then undoes the transform. Neither transform carries its own
framing; the back-end's format byte announces them.
*/
package xform

import (
	"errors"
	"fmt"

	"github.com/npillmayer/nametok/num"
)

// ErrCorrupt is returned for transform metadata which cannot be valid.
var ErrCorrupt = errors.New("corrupt transform metadata")

// Pack describes a bit-packing transform: up to 16 distinct symbols are
// replaced by 1, 2 or 4 bit indices into Symbols.
type Pack struct {
	Symbols []byte
	PerByte int // symbols per packed byte: 8, 4, 2, or 0 for a constant run
}

// ReadPack reads packing metadata: a symbol count (0 meaning 256) followed by
// that many symbols.
func ReadPack(c *num.Cursor) (Pack, error) {
	n, err := c.Uint8()
	if err != nil {
		return Pack{}, err
	}
	count := int(n)
	if count == 0 {
		count = 256
	}
	syms, err := c.Next(count)
	if err != nil {
		return Pack{}, err
	}
	p := Pack{Symbols: append([]byte(nil), syms...)}
	switch {
	case count <= 1:
		p.PerByte = 0
	case count <= 2:
		p.PerByte = 8
	case count <= 4:
		p.PerByte = 4
	case count <= 16:
		p.PerByte = 2
	default:
		return Pack{}, fmt.Errorf("%w: %d symbols cannot be bit-packed", ErrCorrupt, count)
	}
	return p, nil
}

// PackedLen returns the number of packed bytes holding n symbols.
func (p Pack) PackedLen(n int) int {
	if p.PerByte == 0 {
		return 0
	}
	return (n + p.PerByte - 1) / p.PerByte
}

// Unpack expands packed into exactly n symbols.
func (p Pack) Unpack(packed []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if p.PerByte == 0 {
		if len(p.Symbols) == 0 {
			return nil, fmt.Errorf("%w: empty symbol map", ErrCorrupt)
		}
		for i := range out {
			out[i] = p.Symbols[0]
		}
		return out, nil
	}
	if len(packed) < p.PackedLen(n) {
		return nil, fmt.Errorf("%w: packed data holds %d bytes, need %d",
			ErrCorrupt, len(packed), p.PackedLen(n))
	}
	bits := uint(8 / p.PerByte)
	mask := byte(1)<<bits - 1
	var sym [16]byte
	copy(sym[:], p.Symbols)
	j := 0
	for _, c := range packed {
		for k := 0; k < p.PerByte && j < n; k++ {
			out[j] = sym[c&mask]
			c >>= bits
			j++
		}
		if j == n {
			break
		}
	}
	return out, nil
}

// StripeLens splits ulen bytes across n stripes. Earlier stripes take the
// remainder, one byte each.
func StripeLens(ulen, n int) []int {
	lens := make([]int, n)
	for i := range lens {
		lens[i] = ulen / n
		if ulen%n > i {
			lens[i]++
		}
	}
	return lens
}

// Unstripe interleaves stripes: byte i of stripe j lands at i*N+j.
func Unstripe(stripes [][]byte, ulen int) ([]byte, error) {
	n := len(stripes)
	out := make([]byte, ulen)
	for j, s := range stripes {
		for i, b := range s {
			k := i*n + j
			if k >= ulen {
				return nil, fmt.Errorf("%w: stripe %d overruns output", ErrCorrupt, j)
			}
			out[k] = b
		}
	}
	return out, nil
}
