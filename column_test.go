package nametok

import (
	"errors"
	"reflect"
	"testing"
)

func TestColumnImpliedTypes(t *testing.T) {
	s := newColumnStore(3)
	c, err := s.Open(KindChar)
	if err != nil {
		t.Fatal(err)
	}
	want := []TokenKind{KindChar, KindMatch, KindMatch}
	for i, w := range want {
		k, err := c.readType()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if k != w {
			t.Fatalf("entry %d: got %s, want %s", i, k, w)
		}
	}
	if _, err := c.readType(); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("past end of implied stream: got %v, want ErrTruncatedInput", err)
	}
}

func TestColumnExplicitTypesReplaceImplied(t *testing.T) {
	s := newColumnStore(2)
	c, err := s.Open(KindString)
	if err != nil {
		t.Fatal(err)
	}
	c.set(KindType, []byte{byte(KindDigits), byte(KindEnd)})
	for _, w := range []TokenKind{KindDigits, KindEnd} {
		if k, err := c.readType(); err != nil || k != w {
			t.Fatalf("got %s (%v), want %s", k, err, w)
		}
	}
}

func TestColumnCloneImpliedTypes(t *testing.T) {
	s := newColumnStore(4)
	if _, err := s.Open(KindDigits0); err != nil {
		t.Fatal(err)
	}
	got, err := s.Clone(0, KindType)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{byte(KindDigits0), byte(KindMatch), byte(KindMatch), byte(KindMatch)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("clone mismatch: got %v, want %v", got, want)
	}
	empty := newColumnStore(0)
	if _, err := empty.Open(KindChar); err != nil {
		t.Fatal(err)
	}
	if got, _ := empty.Clone(0, KindType); len(got) != 0 {
		t.Fatalf("implied stream of empty block: got %v", got)
	}
}

func TestColumnCloneIsIndependent(t *testing.T) {
	s := newColumnStore(1)
	c, err := s.Open(KindType)
	if err != nil {
		t.Fatal(err)
	}
	c.set(KindString, []byte("ab\x00"))
	dup, err := s.Clone(0, KindString)
	if err != nil {
		t.Fatal(err)
	}
	dup[0] = 'x'
	str, err := c.readString(KindString)
	if err != nil {
		t.Fatal(err)
	}
	if str != "ab" {
		t.Fatalf("source stream changed by clone: got %q", str)
	}
	// cloning reads from the start, regardless of the source read position
	again, err := s.Clone(0, KindString)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != "ab\x00" {
		t.Fatalf("second clone: got %q", again)
	}
	if missing, _ := s.Clone(0, KindDelta); len(missing) != 0 {
		t.Fatalf("clone of absent stream: got %v", missing)
	}
}

func TestColumnStoreErrors(t *testing.T) {
	s := newColumnStore(1)
	if _, err := s.Current(); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("current of empty store: got %v, want ErrInvalidReference", err)
	}
	if _, err := s.Clone(0, KindType); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("clone of missing column: got %v, want ErrInvalidReference", err)
	}
	if _, err := s.Open(KindType); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Clone(0, KindMatch); !errors.Is(err, ErrInvalidTokenKind) {
		t.Fatalf("clone of MATCH stream: got %v, want ErrInvalidTokenKind", err)
	}
	c, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.readUint32(KindDiff); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("read of absent stream: got %v, want ErrTruncatedInput", err)
	}
	c.set(KindString, []byte{0xc3, 0x28, 0})
	if _, err := c.readString(KindString); !errors.Is(err, ErrEncoding) {
		t.Fatalf("invalid UTF-8: got %v, want ErrEncoding", err)
	}
}

func TestColumnStoreLimit(t *testing.T) {
	s := newColumnStore(1)
	for i := 0; i < maxColumns; i++ {
		if _, err := s.Open(KindType); err != nil {
			t.Fatalf("column %d: %v", i, err)
		}
	}
	if _, err := s.Open(KindType); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("column %d: got %v, want ErrInvalidSize", maxColumns, err)
	}
	if s.Len() != maxColumns {
		t.Fatalf("got %d columns, want %d", s.Len(), maxColumns)
	}
}
