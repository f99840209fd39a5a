/*
Package arith decodes the CRAM 3.1 adaptive arithmetic coder.

The coder pairs a 32-bit range coder with adaptive frequency models which
are updated after every symbol, so streams carry no frequency tables. The
format byte shares its transform bits with the rANS Nx16 coder:

	0x03  model order (0 or 1)
	0x04  external (bzip2) compression, not supported
	0x08  stripe
	0x10  no size
	0x20  cat: data is stored uncompressed
	0x40  run-length encoding, modelled inline
	0x80  bit-packing

Model streams start with the alphabet size, where 0 stands for 256.
*/
package arith

import (
	"errors"
	"fmt"
	"io"

	"github.com/npillmayer/nametok/num"
	"github.com/npillmayer/nametok/xform"
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'nametok.arith'
func tracer() tracing.Trace {
	return tracing.Select("nametok.arith")
}

const (
	flagOrder  = 0x03
	flagExt    = 0x04
	flagStripe = 0x08
	flagNoSize = 0x10
	flagCat    = 0x20
	flagRLE    = 0x40
	flagPack   = 0x80
)

const maxDecodedLen = 1 << 30

var (
	// ErrCorrupt flags a payload whose structure is invalid.
	ErrCorrupt = errors.New("arith: corrupt payload")
	// ErrTruncated flags a payload which ends prematurely.
	ErrTruncated = errors.New("arith: truncated payload")
	// ErrUnsupported flags streams using an external codec.
	ErrUnsupported = errors.New("arith: unsupported format")
)

// Decode decompresses one arithmetic coded stream. outLen is only consulted
// for streams flagged as "no size".
func Decode(src []byte, outLen int) ([]byte, error) {
	return decode(num.NewCursor(src), outLen)
}

func decode(c *num.Cursor, outLen int) ([]byte, error) {
	format, err := c.Uint8()
	if err != nil {
		return nil, truncated(err, "format byte")
	}
	if format&flagNoSize == 0 {
		n, err := c.Uint7()
		if err != nil {
			return nil, truncated(err, "uncompressed size")
		}
		outLen = int(n)
	}
	if outLen < 0 || outLen > maxDecodedLen {
		return nil, fmt.Errorf("%w: uncompressed size %d out of range", ErrCorrupt, outLen)
	}
	if format&flagStripe != 0 {
		return decodeStripe(c, outLen)
	}
	tracer().Debugf("arith format=%#02x order=%d len=%d", format, format&flagOrder, outLen)
	if outLen == 0 {
		return []byte{}, nil
	}

	dataLen := outLen
	var pack xform.Pack
	if format&flagPack != 0 {
		if pack, err = xform.ReadPack(c); err != nil {
			return nil, wrapTransform(err, "pack metadata")
		}
		n, err := c.Uint7()
		if err != nil {
			return nil, truncated(err, "packed size")
		}
		if int(n) > outLen {
			return nil, fmt.Errorf("%w: packed size %d exceeds output size %d", ErrCorrupt, n, outLen)
		}
		dataLen = int(n)
	}

	var data []byte
	switch {
	case format&flagCat != 0:
		raw, err := c.Next(dataLen)
		if err != nil {
			return nil, truncated(err, "uncompressed data")
		}
		data = append([]byte(nil), raw...)
	case format&flagExt != 0:
		return nil, fmt.Errorf("%w: external compression", ErrUnsupported)
	default:
		order := format & flagOrder
		if order > 1 {
			return nil, fmt.Errorf("%w: model order %d", ErrCorrupt, order)
		}
		if data, err = decodeModel(c, dataLen, order == 1, format&flagRLE != 0); err != nil {
			return nil, err
		}
	}

	if format&flagPack != 0 {
		if data, err = pack.Unpack(data, outLen); err != nil {
			return nil, wrapTransform(err, "unpack")
		}
	}
	return data, nil
}

// decodeStripe reads the stripe count and per-stripe compressed sizes, then
// decodes every stripe as a stream of its own.
func decodeStripe(c *num.Cursor, ulen int) ([]byte, error) {
	n, err := c.Uint8()
	if err != nil {
		return nil, truncated(err, "stripe count")
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: zero stripes", ErrCorrupt)
	}
	clens := make([]uint32, n)
	for i := range clens {
		if clens[i], err = c.Uint7(); err != nil {
			return nil, truncated(err, "stripe lengths")
		}
	}
	ulens := xform.StripeLens(ulen, int(n))
	stripes := make([][]byte, n)
	for i, clen := range clens {
		sub, err := c.Next(int(clen))
		if err != nil {
			return nil, truncated(err, "stripe data")
		}
		part, err := decode(num.NewCursor(sub), ulens[i])
		if err != nil {
			return nil, err
		}
		if len(part) != ulens[i] {
			return nil, fmt.Errorf("%w: stripe %d decoded to %d bytes, want %d",
				ErrCorrupt, i, len(part), ulens[i])
		}
		stripes[i] = part
	}
	out, err := xform.Unstripe(stripes, ulen)
	if err != nil {
		return nil, wrapTransform(err, "unstripe")
	}
	return out, nil
}

// decodeModel decodes n bytes with adaptive order-0 or order-1 models,
// optionally followed by inline run lengths after every literal.
func decodeModel(c *num.Cursor, n int, order1, rle bool) ([]byte, error) {
	m, err := c.Uint8()
	if err != nil {
		return nil, truncated(err, "alphabet size")
	}
	maxSym := int(m)
	if maxSym == 0 {
		maxSym = 256
	}
	rc, err := newRangeCoder(c.Rest())
	if err != nil {
		return nil, err
	}
	contexts := 1
	if order1 {
		contexts = 256
	}
	models := make([]*model, contexts)
	var runs *runModels
	if rle {
		runs = newRunModels()
	}
	out := make([]byte, 0, n)
	var last byte
	for len(out) < n {
		ctx := 0
		if order1 {
			ctx = int(last)
		}
		if models[ctx] == nil {
			models[ctx] = newModel(256, maxSym)
		}
		s, err := models[ctx].decode(rc)
		if err != nil {
			return nil, err
		}
		b := byte(s)
		out = append(out, b)
		last = b
		if runs == nil {
			continue
		}
		run, err := runs.decode(rc, b, n-len(out))
		if err != nil {
			return nil, err
		}
		for i := 0; i < run; i++ {
			out = append(out, b)
		}
	}
	if rc.overrun() > 4 {
		return nil, fmt.Errorf("%w: range coder read %d bytes past its input", ErrTruncated, rc.overrun())
	}
	return out, nil
}

// runModels decodes run lengths in base-4 digits. The first digit of a run
// uses a model selected by the literal, later ones share two models.
type runModels [258]*model

func newRunModels() *runModels {
	var r runModels
	return &r
}

func (r *runModels) decode(rc *rangeCoder, lit byte, remaining int) (int, error) {
	ctx := int(lit)
	run := 0
	for {
		if r[ctx] == nil {
			r[ctx] = newModel(4, 4)
		}
		d, err := r[ctx].decode(rc)
		if err != nil {
			return 0, err
		}
		if ctx == int(lit) {
			ctx = 256
		} else if ctx < 257 {
			ctx++
		}
		run += int(d)
		if d != 3 || run > remaining {
			break
		}
	}
	if run > remaining {
		return 0, fmt.Errorf("%w: run of %d exceeds %d remaining bytes", ErrCorrupt, run, remaining)
	}
	return run, nil
}

func truncated(err error, what string) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
}

func wrapTransform(err error, what string) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
}
