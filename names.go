package nametok

import (
	"fmt"
)

// nameTable is the append-only arena of decoded names. Later names refer to
// earlier ones by backward distance, so both the rendered names and their
// token lists are kept for the whole block. Token lists are never modified
// once a name is complete, which lets duplicates share them.
type nameTable struct {
	names  [][]byte
	tokens [][]Token // tokens[n][t-1] is the token of name n at column t
}

// reconstructor rebuilds names from a populated column store.
type reconstructor struct {
	cols  *columnStore
	table nameTable
}

func newReconstructor(cols *columnStore, nNames int) *reconstructor {
	capacity := min(nNames, 1<<16)
	return &reconstructor{
		cols: cols,
		table: nameTable{
			names:  make([][]byte, 0, capacity),
			tokens: make([][]Token, 0, capacity),
		},
	}
}

// reference resolves a backward distance from name n.
func (r *reconstructor) reference(n int, dist uint32) (int, error) {
	if dist == 0 || uint64(dist) > uint64(n) {
		return 0, fmt.Errorf("%w: name %d refers back %d names", ErrInvalidReference, n, dist)
	}
	return n - int(dist), nil
}

// next decodes name number n, which must be the next one in order.
func (r *reconstructor) next(n int) ([]byte, error) {
	assert(n == len(r.table.names), "names decoded out of order")
	if r.cols.Len() == 0 {
		return nil, fmt.Errorf("%w: block has no columns", ErrTruncatedInput)
	}
	c0 := r.cols.Column(0)
	kind, err := c0.readType()
	if err != nil {
		return nil, err
	}
	if kind != KindDup && kind != KindDiff {
		return nil, fmt.Errorf("%w: name %d starts with %s", ErrInvalidTokenKind, n, kind)
	}
	dist, err := c0.readUint32(kind)
	if err != nil {
		return nil, err
	}
	tracer().Debugf("name %d: %s distance %d", n, kind, dist)
	if kind == KindDup {
		m, err := r.reference(n, dist)
		if err != nil {
			return nil, err
		}
		r.table.names = append(r.table.names, r.table.names[m])
		r.table.tokens = append(r.table.tokens, r.table.tokens[m])
		return r.table.names[n], nil
	}
	// a diff distance of 0 diffs against nothing
	var ref []Token
	if dist > 0 {
		m, err := r.reference(n, dist)
		if err != nil {
			return nil, err
		}
		ref = r.table.tokens[m]
	}
	var name []byte
	var toks []Token
	for t := 1; ; t++ {
		if t >= r.cols.Len() {
			return nil, fmt.Errorf("%w: name %d runs past column %d", ErrUnterminated, n, t-1)
		}
		var prev Token
		if t-1 < len(ref) {
			prev = ref[t-1]
		}
		tok, err := readToken(r.cols.Column(t), prev)
		if err != nil {
			return nil, fmt.Errorf("name %d: %w", n, err)
		}
		if !tok.Present() {
			break
		}
		name = tok.AppendTo(name)
		toks = append(toks, tok)
	}
	r.table.names = append(r.table.names, name)
	r.table.tokens = append(r.table.tokens, toks)
	return name, nil
}

// readToken reads the next token of column c. ref is the token at the same
// position of the reference name. A zero Token ends the name.
func readToken(c *column, ref Token) (Token, error) {
	kind, err := c.readType()
	if err != nil {
		return Token{}, err
	}
	switch kind {
	case KindChar:
		b, err := c.readUint8(KindChar)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: KindChar, Char: rune(b)}, nil
	case KindString:
		s, err := c.readString(KindString)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: KindString, Text: s}, nil
	case KindDigits:
		v, err := c.readUint32(KindDigits)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: KindDigits, Value: v}, nil
	case KindDigits0:
		v, err := c.readUint32(KindDigits0)
		if err != nil {
			return Token{}, err
		}
		w, err := c.readUint8(KindDZLen)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: KindDigits0, Value: v, Width: w}, nil
	case KindDelta:
		d, err := c.readUint8(KindDelta)
		if err != nil {
			return Token{}, err
		}
		if ref.Kind != KindDigits {
			return Token{}, fmt.Errorf("%w: column %d: DELTA against %s", ErrInvalidReference, c.index, ref)
		}
		return Token{Kind: KindDigits, Value: ref.Value + uint32(d)}, nil
	case KindDelta0:
		d, err := c.readUint8(KindDelta0)
		if err != nil {
			return Token{}, err
		}
		if ref.Kind != KindDigits0 {
			return Token{}, fmt.Errorf("%w: column %d: DELTA0 against %s", ErrInvalidReference, c.index, ref)
		}
		return Token{Kind: KindDigits0, Value: ref.Value + uint32(d), Width: ref.Width}, nil
	case KindMatch:
		return ref, nil
	case KindEnd:
		return Token{}, nil
	}
	return Token{Kind: KindNop}, nil
}
