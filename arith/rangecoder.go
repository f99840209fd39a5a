package arith

import "fmt"

const rangeTop = 1 << 24

// rangeCoder is the decoding side of a carry-less 32-bit range coder.
type rangeCoder struct {
	src  []byte
	pos  int
	rng  uint32
	code uint32
}

// newRangeCoder primes the coder with the first five input bytes. The
// first byte only ever holds the carry position and is shifted out.
func newRangeCoder(src []byte) (*rangeCoder, error) {
	if len(src) < 5 {
		return nil, fmt.Errorf("%w: range coder needs 5 bytes, have %d", ErrTruncated, len(src))
	}
	rc := &rangeCoder{src: src, rng: 0xFFFFFFFF}
	for i := 0; i < 5; i++ {
		rc.code = rc.code<<8 | uint32(rc.next())
	}
	return rc, nil
}

// next returns the next input byte. Encoders flush fewer bytes than a
// decoder may look ahead, so input past the end reads as zero.
func (rc *rangeCoder) next() byte {
	if rc.pos >= len(rc.src) {
		rc.pos++
		return 0
	}
	b := rc.src[rc.pos]
	rc.pos++
	return b
}

// overrun reports how many bytes the decoder has consumed beyond its input.
func (rc *rangeCoder) overrun() int {
	if rc.pos <= len(rc.src) {
		return 0
	}
	return rc.pos - len(rc.src)
}

// target scales the range to total and returns the cumulative frequency
// the current code points at.
func (rc *rangeCoder) target(total uint32) uint32 {
	rc.rng /= total
	return rc.code / rc.rng
}

// consume removes the interval [cum, cum+freq) from the code and
// renormalizes.
func (rc *rangeCoder) consume(cum, freq uint32) {
	rc.code -= cum * rc.rng
	rc.rng *= freq
	for rc.rng < rangeTop {
		rc.code = rc.code<<8 | uint32(rc.next())
		rc.rng <<= 8
	}
}
