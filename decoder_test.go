package nametok

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/npillmayer/nametok/rans"
)

// blockBuilder assembles name blocks by hand. Payloads are stored raw and
// decoded with the identity back-end.
type blockBuilder struct {
	buf []byte
}

func newBlock(nNames int) *blockBuilder {
	b := &blockBuilder{buf: make([]byte, headerSize)}
	binary.LittleEndian.PutUint32(b.buf[4:], uint32(nNames))
	return b
}

func (b *blockBuilder) stream(hdr byte, data ...byte) *blockBuilder {
	if len(data) > 127 {
		panic("test payload too long")
	}
	b.buf = append(b.buf, hdr, byte(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

func (b *blockBuilder) dup(hdr, column, kind byte) *blockBuilder {
	b.buf = append(b.buf, hdr|flagDup, column, kind)
	return b
}

func (b *blockBuilder) bytes() []byte {
	return b.buf
}

func u32s(values ...uint32) []byte {
	var out []byte
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

var identity = BackEndFunc(func(src []byte, _ int) ([]byte, error) {
	return src, nil
})

func rawDecoder() *Decoder {
	return NewDecoder(WithRangeCoder(identity), WithArithmeticCoder(identity))
}

const (
	newCol = flagNewColumn
	tType  = byte(KindType)
	tStr   = byte(KindString)
	tChar  = byte(KindChar)
	tD0    = byte(KindDigits0)
	tDZ    = byte(KindDZLen)
	tDup   = byte(KindDup)
	tDiff  = byte(KindDiff)
	tDig   = byte(KindDigits)
	tDelta = byte(KindDelta)
	tMatch = byte(KindMatch)
	tEnd   = byte(KindEnd)
)

func TestHandBuiltBlock(t *testing.T) {
	block := newBlock(3).
		stream(newCol|tType, tDiff, tDiff, tDup).
		stream(tDiff, u32s(0, 1)...).
		stream(tDup, u32s(2)...).
		stream(newCol|tChar, 'r'). // implied types CHAR, MATCH, MATCH
		stream(newCol|tType, tDig, tDelta).
		stream(tDig, u32s(41)...).
		stream(tDelta, 1).
		stream(newCol|tType, tEnd, tEnd).
		bytes()
	got, err := rawDecoder().DecodeBytes(block)
	if err != nil {
		t.Fatal(err)
	}
	if want := "r41\x00r42\x00r41\x00"; string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMatchWithoutReference(t *testing.T) {
	block := newBlock(1).
		stream(newCol|tType, tDiff).
		stream(tDiff, u32s(0)...).
		stream(newCol|tType, tMatch).
		bytes()
	got, err := rawDecoder().DecodeBytes(block)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x00" {
		t.Fatalf("got %q, want a single empty name", got)
	}
}

func TestDuplicatedTypeStream(t *testing.T) {
	block := newBlock(2).
		stream(newCol|tType, tDiff, tDiff).
		stream(tDiff, u32s(0, 1)...).
		stream(newCol|tStr, 'a', 'b', 0). // implied types STRING, MATCH
		dup(newCol|tType, 1, tType).      // column 2 types cloned from column 1
		stream(tStr, 'x', 0, 'y', 0).     // name 1 matches and skips "y\x00"
		stream(newCol|tType, tEnd, tEnd).
		bytes()
	got, err := rawDecoder().DecodeBytes(block)
	if err != nil {
		t.Fatal(err)
	}
	if want := "abx\x00abx\x00"; string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecodeFailures(t *testing.T) {
	backEndFailure := errors.New("payload rejected")
	failing := NewDecoder(WithRangeCoder(BackEndFunc(func([]byte, int) ([]byte, error) {
		return nil, backEndFailure
	})))
	tests := []struct {
		name  string
		dec   *Decoder
		block []byte
		want  error
	}{
		{
			name:  "truncated header",
			block: []byte{0x58, 0, 0, 0, 3},
			want:  ErrTruncatedInput,
		},
		{
			name:  "truncated payload",
			block: append(newBlock(1).bytes(), newCol|tType, 5, tDiff),
			want:  ErrTruncatedInput,
		},
		{
			name:  "truncated duplicate reference",
			block: append(newBlock(1).bytes(), newCol|flagDup|tType, 0),
			want:  ErrTruncatedInput,
		},
		{
			name: "duplicate of undecoded column",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				dup(tDiff, 3, tDiff).
				bytes(),
			want: ErrInvalidReference,
		},
		{
			name: "delta against padded digits",
			block: newBlock(2).
				stream(newCol|tType, tDiff, tDiff).
				stream(tDiff, u32s(0, 1)...).
				stream(newCol|tType, tD0, tDelta).
				stream(tD0, u32s(5)...).
				stream(tDZ, 2).
				stream(tDelta, 1).
				stream(newCol|tType, tEnd, tEnd).
				bytes(),
			want: ErrInvalidReference,
		},
		{
			name: "delta without reference",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				stream(tDiff, u32s(0)...).
				stream(newCol|tType, tDelta).
				stream(tDelta, 1).
				bytes(),
			want: ErrInvalidReference,
		},
		{
			name: "duplicate distance zero",
			block: newBlock(1).
				stream(newCol|tType, tDup).
				stream(tDup, u32s(0)...).
				bytes(),
			want: ErrInvalidReference,
		},
		{
			name: "diff beyond first name",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				stream(tDiff, u32s(1)...).
				bytes(),
			want: ErrInvalidReference,
		},
		{
			name:  "sub-block tag out of range",
			block: newBlock(1).stream(newCol|13, 0).bytes(),
			want:  ErrInvalidTokenKind,
		},
		{
			name:  "sub-block tag without stream",
			block: newBlock(1).stream(newCol|tMatch, 0).bytes(),
			want:  ErrInvalidTokenKind,
		},
		{
			name: "name starting with a string",
			block: newBlock(1).
				stream(newCol|tType, tStr).
				bytes(),
			want: ErrInvalidTokenKind,
		},
		{
			name: "type stream value out of range",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				stream(tDiff, u32s(0)...).
				stream(newCol|tType, 0x30).
				bytes(),
			want: ErrInvalidTokenKind,
		},
		{
			name: "name without end",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				stream(tDiff, u32s(0)...).
				stream(newCol|tChar, 'a').
				bytes(),
			want: ErrUnterminated,
		},
		{
			name: "string not UTF-8",
			block: newBlock(1).
				stream(newCol|tType, tDiff).
				stream(tDiff, u32s(0)...).
				stream(newCol|tStr, 0xff, 0xfe, 0).
				stream(newCol|tType, tEnd).
				bytes(),
			want: ErrEncoding,
		},
		{
			name: "exhausted distance stream",
			block: newBlock(2).
				stream(newCol|tType, tDiff, tDiff).
				stream(tDiff, u32s(0)...).
				stream(newCol|tType, tEnd, tEnd).
				bytes(),
			want: ErrTruncatedInput,
		},
		{
			name:  "back-end failure",
			dec:   failing,
			block: newBlock(1).stream(newCol|tType, tDiff).bytes(),
			want:  backEndFailure,
		},
	}
	for _, tt := range tests {
		dec := tt.dec
		if dec == nil {
			dec = rawDecoder()
		}
		_, err := dec.DecodeBytes(tt.block)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestBackEndErrorsAreWrapped(t *testing.T) {
	// rANS payload cut after its format byte
	block := newBlock(1).stream(newCol|tType, 0x00).bytes()
	_, err := DecodeBytes(block)
	if !errors.Is(err, ErrBackEnd) {
		t.Fatalf("got %v, want ErrBackEnd", err)
	}
	if !errors.Is(err, rans.ErrTruncated) {
		t.Fatalf("got %v, want rans.ErrTruncated", err)
	}
}

func TestEmptyBlock(t *testing.T) {
	got, err := DecodeBytes(newBlock(0).bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %q, want no names", got)
	}
}
