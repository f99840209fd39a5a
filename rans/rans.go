/*
Package rans decodes the CRAM 3.1 rANS Nx16 entropy coder.

A stream starts with a format byte whose bits select the model and the
transforms wrapped around it:

	0x01  order-1 model (else order-0)
	0x04  32 interleaved states (else 4)
	0x08  stripe: N independently coded sub-streams, interleaved byte-wise
	0x10  no size: the uncompressed length is supplied by the caller
	0x20  cat: data is stored uncompressed
	0x40  run-length encoding of selected symbols
	0x80  bit-packing of alphabets with at most 16 symbols

States are 32 bits wide and renormalize 16 bits at a time. Order-0
frequencies are scaled to 4096; order-1 tables carry their own scale.

Package rans only decodes.
*/
package rans

import (
	"errors"
	"fmt"
	"io"

	"github.com/npillmayer/nametok/num"
	"github.com/npillmayer/nametok/xform"
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'nametok.rans'
func tracer() tracing.Trace {
	return tracing.Select("nametok.rans")
}

const (
	flagOrder1 = 0x01
	flagX32    = 0x04
	flagStripe = 0x08
	flagNoSize = 0x10
	flagCat    = 0x20
	flagRLE    = 0x40
	flagPack   = 0x80
)

const (
	ransLowerBound = 1 << 15
	totFreqShift   = 12
	maxDecodedLen  = 1 << 30
)

var (
	// ErrCorrupt flags a payload whose structure is invalid.
	ErrCorrupt = errors.New("rans: corrupt payload")
	// ErrTruncated flags a payload which ends prematurely.
	ErrTruncated = errors.New("rans: truncated payload")
)

// Decode decompresses one rANS Nx16 stream.
//
// outLen is only consulted for streams flagged as "no size"; it is the
// caller-supplied uncompressed length. Self-describing streams ignore it.
func Decode(src []byte, outLen int) ([]byte, error) {
	return decode(num.NewCursor(src), outLen)
}

func decode(c *num.Cursor, outLen int) ([]byte, error) {
	format, err := c.Uint8()
	if err != nil {
		return nil, truncated(err, "format byte")
	}
	nstates := 4
	if format&flagX32 != 0 {
		nstates = 32
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
	tracer().Debugf("rans format=%#02x order=%d states=%d len=%d", format, format&flagOrder1, nstates, outLen)
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

	var rle *runLengths
	rleLen := dataLen
	if format&flagRLE != 0 {
		if rle, dataLen, err = readRunLengths(c, rleLen); err != nil {
			return nil, err
		}
	}

	var data []byte
	switch {
	case format&flagCat != 0:
		raw, err := c.Next(dataLen)
		if err != nil {
			return nil, truncated(err, "uncompressed data")
		}
		data = append([]byte(nil), raw...)
	case format&flagOrder1 != 0:
		data, err = decodeOrder1(c, dataLen, nstates)
	default:
		data, err = decodeOrder0(c, dataLen, nstates)
	}
	if err != nil {
		return nil, err
	}

	if rle != nil {
		if data, err = rle.expand(data, rleLen); err != nil {
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
