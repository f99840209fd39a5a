package nametok

import (
	"github.com/npillmayer/nametok/arith"
	"github.com/npillmayer/nametok/rans"
)

// BackEnd decompresses the payload of one sub-block.
//
// outLen is the caller-supplied uncompressed size for payloads which do not
// carry their own. Name blocks always pass 0, leaving sizing to the payload.
type BackEnd interface {
	Decode(src []byte, outLen int) ([]byte, error)
}

// BackEndFunc adapts a function to the BackEnd interface.
type BackEndFunc func(src []byte, outLen int) ([]byte, error)

// Decode calls f.
func (f BackEndFunc) Decode(src []byte, outLen int) ([]byte, error) {
	return f(src, outLen)
}

// Default back-ends.
var (
	RansBackEnd  BackEnd = BackEndFunc(rans.Decode)
	ArithBackEnd BackEnd = BackEndFunc(arith.Decode)
)
