package rans

import (
	"fmt"

	"github.com/npillmayer/nametok/num"
)

type alphabet [256]bool

// readAlphabet reads a symbol set. Symbols are listed in ascending order and
// terminated by 0; a symbol immediately followed by its successor starts a
// run, whose length byte counts the symbols after the successor.
func readAlphabet(c *num.Cursor) (alphabet, error) {
	var a alphabet
	b, err := c.Uint8()
	if err != nil {
		return a, truncated(err, "alphabet")
	}
	sym, run := int(b), 0
	for {
		a[sym] = true
		if run > 0 {
			run--
			sym++
			if sym > 255 {
				return a, fmt.Errorf("%w: alphabet run exceeds 255", ErrCorrupt)
			}
			continue
		}
		if b, err = c.Uint8(); err != nil {
			return a, truncated(err, "alphabet")
		}
		if int(b) == sym+1 {
			sym = int(b)
			if b, err = c.Uint8(); err != nil {
				return a, truncated(err, "alphabet run")
			}
			run = int(b)
			continue
		}
		sym = int(b)
		if sym == 0 {
			return a, nil
		}
	}
}

// readFreqs0 reads an alphabet followed by one uint7 frequency per symbol.
func readFreqs0(c *num.Cursor) ([256]uint32, uint32, error) {
	var f [256]uint32
	a, err := readAlphabet(c)
	if err != nil {
		return f, 0, err
	}
	var total uint32
	for sym, present := range a {
		if !present {
			continue
		}
		if f[sym], err = c.Uint7(); err != nil {
			return f, 0, truncated(err, "frequencies")
		}
		total += f[sym]
	}
	return f, total, nil
}

// readFreqs1 reads one order-1 context row: a frequency per alphabet symbol,
// where a zero is followed by a count of further zeros.
func readFreqs1(c *num.Cursor, a *alphabet) ([256]uint32, uint32, error) {
	var f [256]uint32
	var total uint32
	zeros := 0
	for sym, present := range a {
		if !present {
			continue
		}
		if zeros > 0 {
			zeros--
			continue
		}
		v, err := c.Uint7()
		if err != nil {
			return f, 0, truncated(err, "order-1 frequencies")
		}
		if v == 0 {
			z, err := c.Uint8()
			if err != nil {
				return f, 0, truncated(err, "order-1 zero run")
			}
			zeros = int(z)
		}
		f[sym] = v
		total += v
	}
	return f, total, nil
}

// normalize scales frequencies up by a power of two until they sum to
// 1<<bits. Tables which already exceed the target are left untouched and
// rejected by the symbol table builder.
func normalize(f *[256]uint32, total uint32, bits uint) {
	target := uint32(1) << bits
	if total == 0 || total >= target {
		return
	}
	shift := uint(0)
	for total < target {
		total <<= 1
		shift++
	}
	for i := range f {
		f[i] <<= shift
	}
}

// symbolTable maps a state's low bits back to a symbol.
type symbolTable struct {
	bits uint
	sym  []byte
	freq [256]uint32
	cum  [256]uint32
}

func newSymbolTable(f *[256]uint32, bits uint) (*symbolTable, error) {
	size := uint32(1) << bits
	t := &symbolTable{bits: bits, sym: make([]byte, size), freq: *f}
	var x uint32
	for s, v := range f {
		if v == 0 {
			continue
		}
		if v > size-x {
			return nil, fmt.Errorf("%w: frequencies exceed %d", ErrCorrupt, size)
		}
		t.cum[s] = x
		for i := x; i < x+v; i++ {
			t.sym[i] = byte(s)
		}
		x += v
	}
	if x != size {
		return nil, fmt.Errorf("%w: frequencies sum to %d, want %d", ErrCorrupt, x, size)
	}
	return t, nil
}

// step decodes one symbol from state r and advances the state.
func (t *symbolTable) step(r uint32) (byte, uint32) {
	m := r & (uint32(1)<<t.bits - 1)
	s := t.sym[m]
	return s, t.freq[s]*(r>>t.bits) + m - t.cum[s]
}
