package nametok

import (
	"fmt"
	"unicode/utf8"

	"github.com/npillmayer/nametok/num"
)

// maxColumns is the number of columns a dup sub-block can address.
const maxColumns = 256

// column keeps the decoded streams of one token position, one byte cursor
// per token kind. Streams are set during demultiplexing and only read
// afterwards.
//
// A new column whose header tag is not KindType starts with an implied type
// stream: the tag for name 0 and KindMatch for every later name. The
// implied stream is not materialized unless it is cloned.
type column struct {
	index   int
	nNames  int
	streams [numStreams]*num.Cursor
	implied TokenKind // tag of an implied type stream, KindType if none
	typePos int       // read position within an implied type stream
}

func newColumn(index, nNames int) *column {
	return &column{index: index, nNames: nNames}
}

// set installs buf as the stream for kind, replacing any earlier stream.
func (c *column) set(kind TokenKind, buf []byte) {
	assert(kind.hasStream(), "column stream for a kind without stream")
	if kind == KindType {
		c.implied = KindType
	}
	c.streams[kind] = num.NewCursor(buf)
}

// imply installs an implied type stream starting with tag.
func (c *column) imply(tag TokenKind) {
	c.streams[KindType] = nil
	c.implied = tag
	c.typePos = 0
}

// contents returns a copy of the complete stream for kind.
func (c *column) contents(kind TokenKind) []byte {
	if kind == KindType && c.implied != KindType {
		buf := make([]byte, c.nNames)
		for i := range buf {
			buf[i] = byte(KindMatch)
		}
		if len(buf) > 0 {
			buf[0] = byte(c.implied)
		}
		return buf
	}
	cur := c.streams[kind]
	if cur == nil {
		return []byte{}
	}
	return append([]byte{}, cur.Bytes()...)
}

func (c *column) cursor(kind TokenKind) (*num.Cursor, error) {
	cur := c.streams[kind]
	if cur == nil {
		return nil, fmt.Errorf("%w: column %d has no %s stream", ErrTruncatedInput, c.index, kind)
	}
	return cur, nil
}

// readType reads the next entry of the type stream.
func (c *column) readType() (TokenKind, error) {
	if c.implied != KindType {
		if c.typePos >= c.nNames {
			return 0, fmt.Errorf("%w: column %d TYPE stream", ErrTruncatedInput, c.index)
		}
		c.typePos++
		if c.typePos == 1 {
			return c.implied, nil
		}
		return KindMatch, nil
	}
	cur, err := c.cursor(KindType)
	if err != nil {
		return 0, err
	}
	b, err := cur.Uint8()
	if err != nil {
		return 0, truncated(err, "column %d TYPE stream", c.index)
	}
	k, err := ParseTokenKind(b)
	if err != nil {
		return 0, fmt.Errorf("column %d: %w", c.index, err)
	}
	return k, nil
}

func (c *column) readUint8(kind TokenKind) (uint8, error) {
	cur, err := c.cursor(kind)
	if err != nil {
		return 0, err
	}
	v, err := cur.Uint8()
	if err != nil {
		return 0, truncated(err, "column %d %s stream", c.index, kind)
	}
	return v, nil
}

func (c *column) readUint32(kind TokenKind) (uint32, error) {
	cur, err := c.cursor(kind)
	if err != nil {
		return 0, err
	}
	v, err := cur.Uint32LE()
	if err != nil {
		return 0, truncated(err, "column %d %s stream", c.index, kind)
	}
	return v, nil
}

func (c *column) readString(kind TokenKind) (string, error) {
	cur, err := c.cursor(kind)
	if err != nil {
		return "", err
	}
	s, err := cur.CString()
	if err != nil {
		return "", truncated(err, "column %d %s stream", c.index, kind)
	}
	if !utf8.Valid(s) {
		return "", fmt.Errorf("%w: column %d: %q", ErrEncoding, c.index, s)
	}
	return string(s), nil
}

// columnStore holds the columns of one block in the order their "new
// column" headers appear.
type columnStore struct {
	nNames int
	cols   []*column
}

func newColumnStore(nNames int) *columnStore {
	return &columnStore{nNames: nNames, cols: make([]*column, 0, 16)}
}

// Len returns the number of columns opened so far.
func (s *columnStore) Len() int {
	return len(s.cols)
}

// Column returns column i, which must exist.
func (s *columnStore) Column(i int) *column {
	return s.cols[i]
}

// Open starts a new column. A tag other than KindType gives it an implied
// type stream.
func (s *columnStore) Open(tag TokenKind) (*column, error) {
	if len(s.cols) >= maxColumns {
		return nil, fmt.Errorf("%w: more than %d columns", ErrInvalidSize, maxColumns)
	}
	c := newColumn(len(s.cols), s.nNames)
	if tag != KindType {
		c.imply(tag)
	}
	s.cols = append(s.cols, c)
	return c, nil
}

// Current returns the most recently opened column.
func (s *columnStore) Current() (*column, error) {
	if len(s.cols) == 0 {
		return nil, fmt.Errorf("%w: sub-block before the first column", ErrInvalidReference)
	}
	return s.cols[len(s.cols)-1], nil
}

// Clone copies stream kind of column src. The copy is independent of the
// source stream.
func (s *columnStore) Clone(src int, kind TokenKind) ([]byte, error) {
	if src >= len(s.cols) {
		return nil, fmt.Errorf("%w: duplicate of column %d, only %d columns decoded",
			ErrInvalidReference, src, len(s.cols))
	}
	if !kind.hasStream() {
		return nil, fmt.Errorf("%w: duplicate of %s stream", ErrInvalidTokenKind, kind)
	}
	return s.cols[src].contents(kind), nil
}
