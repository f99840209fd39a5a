package batch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/npillmayer/nametok/hexblock"
	"github.com/npillmayer/nametok/num"
)

// MaxBlockSize limits the size of a single frame.
const MaxBlockSize = 1 << 26

// Errors reading a framed block stream.
var (
	ErrTruncatedFrame = errors.New("batch: truncated frame")
	ErrFrameTooLarge  = errors.New("batch: frame too large")
)

// Source delivers encoded name blocks one at a time. Next returns io.EOF
// after the last block.
type Source interface {
	Next() ([]byte, error)
}

// Reader reads length-prefixed name blocks.
type Reader struct {
	br    *bufio.Reader
	count int
	close func()
}

// NewReader creates a Reader for an uncompressed block stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// NewZstdReader creates a Reader for a zstd compressed block stream. Call
// Close to release the decompressor.
func NewZstdReader(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("batch: creating zstd decoder: %w", err)
	}
	return &Reader{br: bufio.NewReader(zr), close: zr.Close}, nil
}

// Next returns the next block. It returns io.EOF at a clean end of stream.
func (r *Reader) Next() ([]byte, error) {
	if _, err := r.br.Peek(1); err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, err
	}
	n, err := num.ReadUint32LE(r.br)
	if err != nil {
		return nil, r.frameError(err, "length")
	}
	if n > MaxBlockSize {
		return nil, fmt.Errorf("%w: block %d has %d bytes", ErrFrameTooLarge, r.count, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, r.frameError(err, "data")
	}
	r.count++
	return buf, nil
}

func (r *Reader) frameError(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: block %d %s", ErrTruncatedFrame, r.count, what)
	}
	return fmt.Errorf("batch: block %d %s: %w", r.count, what, err)
}

// Close releases resources held by a zstd Reader. It is a no-op otherwise.
func (r *Reader) Close() error {
	if r.close != nil {
		r.close()
		r.close = nil
	}
	return nil
}

// WriteBlock writes block as one frame of a block stream.
func WriteBlock(w io.Writer, block []byte) error {
	if len(block) > MaxBlockSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(block))
	}
	hdr := binary.LittleEndian.AppendUint32(nil, uint32(len(block)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

// hexSource adapts a hexblock.Reader to Source.
type hexSource struct {
	r *hexblock.Reader
}

// NewHexSource creates a Source reading the blocks of a hex dump, in the
// order they appear.
func NewHexSource(r io.Reader) Source {
	return hexSource{r: hexblock.NewReader(r)}
}

func (s hexSource) Next() ([]byte, error) {
	b, err := s.r.Next()
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// SliceSource serves blocks held in memory.
type SliceSource [][]byte

// Next returns the first remaining block.
func (s *SliceSource) Next() ([]byte, error) {
	if len(*s) == 0 {
		return nil, io.EOF
	}
	b := (*s)[0]
	*s = (*s)[1:]
	return b, nil
}
