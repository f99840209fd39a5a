package nametok

import (
	"fmt"
	"io"

	"github.com/npillmayer/nametok/num"
)

// Sub-block header bits. The remaining six bits hold the token kind.
const (
	flagNewColumn = 0x80
	flagDup       = 0x40
	tagMask       = 0x3F
)

// byteSource is what the demultiplexer reads a block from.
type byteSource interface {
	io.Reader
	io.ByteReader
}

// subBlock is one header-plus-payload unit of a name block. It either
// carries an entropy-coded payload or refers to a stream of an earlier
// column.
type subBlock struct {
	newColumn bool
	dup       bool
	kind      TokenKind
	srcColumn int       // dup only
	srcKind   TokenKind // dup only
	payload   []byte
}

// subBlockReader yields the sub-blocks following a block header.
// Next returns io.EOF when the source is exhausted at a sub-block boundary.
type subBlockReader struct {
	src   byteSource
	count int
}

func (sr *subBlockReader) Next() (subBlock, error) {
	h, err := sr.src.ReadByte()
	if err == io.EOF {
		return subBlock{}, io.EOF
	} else if err != nil {
		return subBlock{}, err
	}
	sr.count++
	sb := subBlock{
		newColumn: h&flagNewColumn != 0,
		dup:       h&flagDup != 0,
	}
	if sb.kind, err = ParseTokenKind(h & tagMask); err != nil {
		return subBlock{}, fmt.Errorf("sub-block %d: %w", sr.count, err)
	}
	if !sb.kind.hasStream() {
		return subBlock{}, fmt.Errorf("%w: sub-block %d tagged %s", ErrInvalidTokenKind, sr.count, sb.kind)
	}
	if sb.dup {
		var ref [2]byte
		if _, err := io.ReadFull(sr.src, ref[:]); err != nil {
			return subBlock{}, truncated(err, "sub-block %d duplicate reference", sr.count)
		}
		sb.srcColumn = int(ref[0])
		if sb.srcKind, err = ParseTokenKind(ref[1]); err != nil {
			return subBlock{}, fmt.Errorf("sub-block %d duplicate reference: %w", sr.count, err)
		}
		return sb, nil
	}
	clen, err := num.ReadUint7(sr.src)
	if err != nil {
		return subBlock{}, truncated(err, "sub-block %d payload size", sr.count)
	}
	// a corrupt size must not turn into a huge allocation
	sb.payload, err = io.ReadAll(io.LimitReader(sr.src, int64(clen)))
	if err != nil {
		return subBlock{}, fmt.Errorf("sub-block %d payload: %w", sr.count, err)
	}
	if int64(len(sb.payload)) < int64(clen) {
		return subBlock{}, fmt.Errorf("%w: sub-block %d payload holds %d of %d bytes",
			ErrTruncatedInput, sr.count, len(sb.payload), clen)
	}
	return sb, nil
}

// demultiplex reads all sub-blocks of a block and distributes their streams
// over columns. Payloads are decoded with be.
func demultiplex(src byteSource, nNames int, be BackEnd) (*columnStore, error) {
	store := newColumnStore(nNames)
	sr := &subBlockReader{src: src}
	for {
		sb, err := sr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if sb.newColumn {
			if _, err = store.Open(sb.kind); err != nil {
				return nil, err
			}
		}
		col, err := store.Current()
		if err != nil {
			return nil, err
		}
		var buf []byte
		if sb.dup {
			if buf, err = store.Clone(sb.srcColumn, sb.srcKind); err != nil {
				return nil, fmt.Errorf("sub-block %d: %w", sr.count, err)
			}
			tracer().Debugf("column %d %s: duplicate of column %d %s, %d bytes",
				col.index, sb.kind, sb.srcColumn, sb.srcKind, len(buf))
		} else {
			if buf, err = be.Decode(sb.payload, 0); err != nil {
				return nil, fmt.Errorf("%w: column %d %s: %w", ErrBackEnd, col.index, sb.kind, err)
			}
			tracer().Debugf("column %d %s: new=%v %d bytes -> %d bytes",
				col.index, sb.kind, sb.newColumn, len(sb.payload), len(buf))
		}
		col.set(sb.kind, buf)
	}
	return store, nil
}
