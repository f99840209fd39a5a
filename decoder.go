package nametok

import (
	"bufio"
	"bytes"
	"io"
)

// maxPrealloc caps the output buffer reserved up front from the header's
// uncompressed length.
const maxPrealloc = 1 << 20

// Block is the result of decoding one name block.
type Block struct {
	Header  Header
	Columns int    // number of columns in the block
	Names   []byte // NUL-terminated names, concatenated
}

// Decoder decodes name blocks. The zero Decoder is not usable; create one
// with NewDecoder. A Decoder holds no per-block state and may be used from
// several goroutines at once.
type Decoder struct {
	rangeCoder BackEnd
	arithCoder BackEnd
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithRangeCoder replaces the back-end used for blocks flagged as rANS.
func WithRangeCoder(be BackEnd) Option {
	return func(d *Decoder) {
		d.rangeCoder = be
	}
}

// WithArithmeticCoder replaces the back-end used for blocks flagged as
// arithmetic coded.
func WithArithmeticCoder(be BackEnd) Option {
	return func(d *Decoder) {
		d.arithCoder = be
	}
}

// NewDecoder creates a decoder using the rANS and arithmetic coders of this
// module unless options say otherwise.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{rangeCoder: RansBackEnd, arithCoder: ArithBackEnd}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// DecodeBlock decodes one name block from r. The block extends up to the end
// of r.
func (d *Decoder) DecodeBlock(r io.Reader) (Block, error) {
	src, ok := r.(byteSource)
	if !ok {
		src = bufio.NewReader(r)
	}
	hdr, err := ReadHeader(src)
	if err != nil {
		tracer().Errorf("name block header: %v", err)
		return Block{}, err
	}
	be := d.rangeCoder
	if hdr.BackEnd == ArithmeticCoder {
		be = d.arithCoder
	}
	cols, err := demultiplex(src, hdr.NameCount, be)
	if err != nil {
		tracer().Errorf("name block aborted while reading columns: %v", err)
		return Block{}, err
	}
	rec := newReconstructor(cols, hdr.NameCount)
	out := make([]byte, 0, min(hdr.UncompressedLen, maxPrealloc))
	for n := 0; n < hdr.NameCount; n++ {
		name, err := rec.next(n)
		if err != nil {
			tracer().Errorf("name block aborted at name %d: %v", n, err)
			return Block{}, err
		}
		out = append(out, name...)
		out = append(out, 0)
	}
	tracer().Infof("decoded name block: %d names, %d columns, %s, %d bytes",
		hdr.NameCount, cols.Len(), hdr.BackEnd, len(out))
	return Block{Header: hdr, Columns: cols.Len(), Names: out}, nil
}

// Decode decodes one name block from r and returns its names, each followed
// by a NUL byte.
func (d *Decoder) Decode(r io.Reader) ([]byte, error) {
	b, err := d.DecodeBlock(r)
	if err != nil {
		return nil, err
	}
	return b.Names, nil
}

// DecodeBytes decodes a name block held in memory.
func (d *Decoder) DecodeBytes(block []byte) ([]byte, error) {
	return d.Decode(bytes.NewReader(block))
}

// DecodeNames decodes a name block held in memory into separate names.
func (d *Decoder) DecodeNames(block []byte) ([]string, error) {
	buf, err := d.DecodeBytes(block)
	if err != nil {
		return nil, err
	}
	return SplitNames(buf), nil
}

// Decode decodes one name block from r with the default back-ends.
func Decode(r io.Reader) ([]byte, error) {
	return defaultDecoder.Decode(r)
}

// DecodeBytes decodes a name block held in memory with the default back-ends.
func DecodeBytes(block []byte) ([]byte, error) {
	return defaultDecoder.DecodeBytes(block)
}

// DecodeNames decodes a name block held in memory into separate names.
func DecodeNames(block []byte) ([]string, error) {
	return defaultDecoder.DecodeNames(block)
}

// SplitNames splits a buffer of NUL-terminated names. Bytes after the last
// NUL are returned as a final name.
func SplitNames(buf []byte) []string {
	names := make([]string, 0, bytes.Count(buf, []byte{0}))
	for len(buf) > 0 {
		i := bytes.IndexByte(buf, 0)
		if i < 0 {
			names = append(names, string(buf))
			break
		}
		names = append(names, string(buf[:i]))
		buf = buf[i+1:]
	}
	return names
}
