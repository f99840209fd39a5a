package rans

import (
	"fmt"

	"github.com/npillmayer/nametok/num"
)

// runLengths holds the RLE side channel: which symbols carry a run length,
// and the uint7 run lengths themselves, in literal order.
type runLengths struct {
	runSym [256]bool
	runs   *num.Cursor
}

// readRunLengths reads RLE metadata and returns it together with the
// number of literal bytes the entropy coder has to produce.
//
// The metadata length is stored doubled; an odd value means the metadata is
// stored raw, an even value that it is order-0 compressed.
func readRunLengths(c *num.Cursor, expanded int) (*runLengths, int, error) {
	metaLen, err := c.Uint7()
	if err != nil {
		return nil, 0, truncated(err, "RLE metadata size")
	}
	litLen, err := c.Uint7()
	if err != nil {
		return nil, 0, truncated(err, "RLE literal size")
	}
	if int(litLen) > expanded {
		return nil, 0, fmt.Errorf("%w: %d RLE literals for %d bytes", ErrCorrupt, litLen, expanded)
	}
	var meta []byte
	if metaLen&1 != 0 {
		raw, err := c.Next(int(metaLen >> 1))
		if err != nil {
			return nil, 0, truncated(err, "RLE metadata")
		}
		meta = raw
	} else {
		clen, err := c.Uint7()
		if err != nil {
			return nil, 0, truncated(err, "RLE metadata compressed size")
		}
		raw, err := c.Next(int(clen))
		if err != nil {
			return nil, 0, truncated(err, "RLE metadata")
		}
		if meta, err = decodeOrder0(num.NewCursor(raw), int(metaLen>>1), 4); err != nil {
			return nil, 0, err
		}
	}
	mc := num.NewCursor(meta)
	n, err := mc.Uint8()
	if err != nil {
		return nil, 0, truncated(err, "RLE symbol count")
	}
	count := int(n)
	if count == 0 {
		count = 256
	}
	syms, err := mc.Next(count)
	if err != nil {
		return nil, 0, truncated(err, "RLE symbols")
	}
	rl := &runLengths{runs: mc}
	for _, s := range syms {
		rl.runSym[s] = true
	}
	return rl, int(litLen), nil
}

// expand re-inserts runs into the literal stream, producing exactly n bytes.
func (rl *runLengths) expand(lit []byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for _, b := range lit {
		if len(out) >= n {
			return nil, fmt.Errorf("%w: RLE expansion exceeds %d bytes", ErrCorrupt, n)
		}
		if !rl.runSym[b] {
			out = append(out, b)
			continue
		}
		run, err := rl.runs.Uint7()
		if err != nil {
			return nil, truncated(err, "RLE run lengths")
		}
		if len(out)+int(run)+1 > n {
			return nil, fmt.Errorf("%w: RLE run of %d exceeds %d bytes", ErrCorrupt, run+1, n)
		}
		for i := uint32(0); i <= run; i++ {
			out = append(out, b)
		}
	}
	if len(out) != n {
		return nil, fmt.Errorf("%w: RLE expanded to %d bytes, want %d", ErrCorrupt, len(out), n)
	}
	return out, nil
}
