package rans

import (
	"fmt"

	"github.com/npillmayer/nametok/num"
)

func readStates(c *num.Cursor, n int) ([]uint32, error) {
	states := make([]uint32, n)
	for i := range states {
		r, err := c.Uint32LE()
		if err != nil {
			return nil, truncated(err, "initial states")
		}
		if r < ransLowerBound {
			return nil, fmt.Errorf("%w: initial state %#x below lower bound", ErrCorrupt, r)
		}
		states[i] = r
	}
	return states, nil
}

func renormalize(c *num.Cursor, r uint32) (uint32, error) {
	if r >= ransLowerBound {
		return r, nil
	}
	v, err := c.Uint16LE()
	if err != nil {
		return 0, truncated(err, "renormalization")
	}
	return r<<16 | uint32(v), nil
}

// decodeOrder0 decodes n symbols from an order-0 stream. Symbol i is taken
// from state i mod nstates.
func decodeOrder0(c *num.Cursor, n, nstates int) ([]byte, error) {
	f, total, err := readFreqs0(c)
	if err != nil {
		return nil, err
	}
	normalize(&f, total, totFreqShift)
	table, err := newSymbolTable(&f, totFreqShift)
	if err != nil {
		return nil, err
	}
	states, err := readStates(c, nstates)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		z := i % nstates
		s, r := table.step(states[z])
		out[i] = s
		if states[z], err = renormalize(c, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeOrder1 decodes n symbols from an order-1 stream. The output is
// split into nstates contiguous segments, one per state, each starting in
// context 0; the last state also decodes the remainder.
func decodeOrder1(c *num.Cursor, n, nstates int) ([]byte, error) {
	tables, err := readOrder1Tables(c)
	if err != nil {
		return nil, err
	}
	states, err := readStates(c, nstates)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	seg := n / nstates
	last := make([]byte, nstates)
	decodeAt := func(z, i int) error {
		t := tables[last[z]]
		if t == nil {
			return fmt.Errorf("%w: no frequencies for context %#02x", ErrCorrupt, last[z])
		}
		s, r := t.step(states[z])
		out[i] = s
		last[z] = s
		states[z], err = renormalize(c, r)
		return err
	}
	for i := 0; i < seg; i++ {
		for z := 0; z < nstates; z++ {
			if err := decodeAt(z, z*seg+i); err != nil {
				return nil, err
			}
		}
	}
	for i := nstates * seg; i < n; i++ {
		if err := decodeAt(nstates-1, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readOrder1Tables reads the per-context frequency tables. The first byte
// holds the table scale in its high nibble; bit 0 signals that the tables
// themselves are order-0 compressed.
func readOrder1Tables(c *num.Cursor) ([]*symbolTable, error) {
	hdr, err := c.Uint8()
	if err != nil {
		return nil, truncated(err, "order-1 header")
	}
	bits := uint(hdr >> 4)
	if bits == 0 || bits > totFreqShift {
		return nil, fmt.Errorf("%w: order-1 frequency scale %d", ErrCorrupt, bits)
	}
	tc := c
	if hdr&1 != 0 {
		ulen, err := c.Uint7()
		if err != nil {
			return nil, truncated(err, "order-1 table size")
		}
		clen, err := c.Uint7()
		if err != nil {
			return nil, truncated(err, "order-1 table size")
		}
		raw, err := c.Next(int(clen))
		if err != nil {
			return nil, truncated(err, "order-1 tables")
		}
		table, err := decodeOrder0(num.NewCursor(raw), int(ulen), 4)
		if err != nil {
			return nil, err
		}
		tc = num.NewCursor(table)
	}
	a, err := readAlphabet(tc)
	if err != nil {
		return nil, err
	}
	tables := make([]*symbolTable, 256)
	for ctx, present := range a {
		if !present {
			continue
		}
		f, total, err := readFreqs1(tc, &a)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			continue
		}
		normalize(&f, total, bits)
		if tables[ctx], err = newSymbolTable(&f, bits); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
