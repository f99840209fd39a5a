/*
Package hexblock reads name blocks from hex dumps.

Hex dumps are plain text, which makes them convenient for fixtures and for
feeding blocks copied from debugging output. A file holds any number of
named blocks:

	# comments run from '#' to the end of the line
	block rans {
		58 00 00 00  03 00 00 00  00
		80 15 00 03 06 00 04 00 80 00 00 00 80 00 00 00
	}

Inside a block, bytes are written as pairs of hex digits. Pairs may be run
together or separated by blanks or commas, and may carry a 0x prefix.
*/
package hexblock

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Block is one named hex block.
type Block struct {
	Name string
	Data []byte
}

// Reader streams blocks from hex dump text.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next block. It returns io.EOF when exhausted.
func (r *Reader) Next() (Block, error) {
	var b Block
	open := false
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !open {
			name, ok := parseBlockStart(line)
			if !ok {
				return Block{}, fmt.Errorf("hexblock: line %d: expected 'block <name> {', have %q", r.line, line)
			}
			b = Block{Name: name, Data: []byte{}}
			open = true
			continue
		}
		if line == "}" {
			return b, nil
		}
		data, err := decodeHexLine(line)
		if err != nil {
			return Block{}, fmt.Errorf("hexblock: line %d: %w", r.line, err)
		}
		b.Data = append(b.Data, data...)
	}
	if err := r.scanner.Err(); err != nil {
		return Block{}, err
	}
	if open {
		return Block{}, fmt.Errorf("hexblock: block %q not closed: %w", b.Name, io.ErrUnexpectedEOF)
	}
	return Block{}, io.EOF
}

// ReadAll reads all blocks from r.
func ReadAll(r io.Reader) ([]Block, error) {
	hr := NewReader(r)
	var blocks []Block
	for {
		b, err := hr.Next()
		if err == io.EOF {
			return blocks, nil
		} else if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
}

// Find returns the block called name.
func Find(blocks []Block, name string) (Block, bool) {
	for _, b := range blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

func parseBlockStart(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "block" || fields[2] != "{" {
		return "", false
	}
	return fields[1], true
}

func decodeHexLine(line string) ([]byte, error) {
	var sb strings.Builder
	for _, f := range strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	}) {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		sb.WriteString(f)
	}
	return hex.DecodeString(sb.String())
}
