package nametok

import (
	"errors"
	"fmt"
	"io"
)

// Decoding a name block fails as a whole with one of the following errors,
// wrapped with context. Test with errors.Is.
var (
	ErrTruncatedInput   = errors.New("nametok: truncated input")
	ErrInvalidTokenKind = errors.New("nametok: invalid token kind")
	ErrInvalidReference = errors.New("nametok: invalid reference")
	ErrBackEnd          = errors.New("nametok: entropy back-end failure")
	ErrEncoding         = errors.New("nametok: string is not valid UTF-8")
	ErrInvalidSize      = errors.New("nametok: invalid size")
	ErrUnterminated     = errors.New("nametok: name without end token")
)

// truncated turns exhaustion of a field into ErrTruncatedInput and passes
// other read errors through.
func truncated(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %s", ErrTruncatedInput, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
