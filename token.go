package nametok

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// TokenKind is the wire value of a token type. Kinds appear both as sub-block
// tags, selecting one of a column's streams, and as entries of a column's
// type stream, selecting how the next token of a name is formed.
type TokenKind uint8

// Token kinds as defined by the CRAM 3.1 name tokenizer.
const (
	KindType    TokenKind = iota // per-name token types of a column
	KindString                   // NUL-terminated string
	KindChar                     // single character
	KindDigits0                  // zero-padded number, width in DZLen stream
	KindDZLen                    // width of zero-padded numbers
	KindDup                      // column 0: duplicate an earlier name
	KindDiff                     // column 0: diff against an earlier name
	KindDigits                   // number without padding
	KindDelta                    // small increment of a reference number
	KindDelta0                   // small increment of a zero-padded reference number
	KindMatch                    // repeat the reference token
	KindNop                      // contributes nothing
	KindEnd                      // end of name
	numKinds
)

// numStreams counts the kinds which carry a byte stream in a column.
const numStreams = int(KindDelta0) + 1

var kindNames = [numKinds]string{
	"TYPE", "STRING", "CHAR", "DIGITS0", "DZLEN", "DUP", "DIFF",
	"DIGITS", "DELTA", "DELTA0", "MATCH", "NOP", "END",
}

func (k TokenKind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// hasStream is true for kinds which own a byte stream within a column.
func (k TokenKind) hasStream() bool {
	return int(k) < numStreams
}

// ParseTokenKind maps a wire byte to a token kind.
func ParseTokenKind(b byte) (TokenKind, error) {
	if TokenKind(b) >= numKinds {
		return 0, fmt.Errorf("%w: %#02x", ErrInvalidTokenKind, b)
	}
	return TokenKind(b), nil
}

// Token is one reconstructed unit of a name. Kind is one of KindChar,
// KindString, KindDigits, KindDigits0 or KindNop; the zero Token stands for
// "no token at this position".
type Token struct {
	Kind  TokenKind
	Char  rune   // KindChar
	Text  string // KindString
	Value uint32 // KindDigits, KindDigits0
	Width uint8  // KindDigits0: field width in decimal digits
}

// Present is false for the zero Token.
func (t Token) Present() bool {
	return t.Kind != KindType
}

// AppendTo appends the token's rendering to b.
func (t Token) AppendTo(b []byte) []byte {
	switch t.Kind {
	case KindChar:
		return utf8.AppendRune(b, t.Char)
	case KindString:
		return append(b, t.Text...)
	case KindDigits:
		return strconv.AppendUint(b, uint64(t.Value), 10)
	case KindDigits0:
		return fmt.Appendf(b, "%0*d", int(t.Width), t.Value)
	}
	return b
}

func (t Token) String() string {
	switch t.Kind {
	case KindType:
		return "<none>"
	case KindNop:
		return "NOP"
	case KindDigits0:
		return fmt.Sprintf("DIGITS0(%d/%d)", t.Value, t.Width)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.AppendTo(nil))
}
