// Package sml decodes the SML (Smart Message Language) message layer that
// rides inside transport frames produced by internal/transport.
package sml

import (
	"errors"
	"fmt"
)

// Sentinel errors for the SML message-level parser. Callers classify
// failures with errors.Is; context-carrying variants additionally wrap one
// of these via fmt.Errorf("%w: ...", ...).
var (
	ErrTlfMismatch       = errors.New("sml: type-length field mismatch")
	ErrNumTlfMismatch    = errors.New("sml: numeric type-length field mismatch")
	ErrUnexpectedVariant = errors.New("sml: unexpected variant tag")
	ErrMsgEndMismatch    = errors.New("sml: end-of-message marker mismatch")
	ErrCrcMismatch       = errors.New("sml: message crc mismatch")
	ErrNotSupported      = errors.New("sml: construct not supported")
	ErrUnexpectedEOF     = errors.New("sml: unexpected end of input")
)

// tlfMismatch wraps ErrTlfMismatch with the name of the type that rejected
// the type-length field, mirroring the reference parser's
// ParseError::TlfMismatch(&'static str).
func tlfMismatch(what string) error {
	return fmt.Errorf("%w: %s", ErrTlfMismatch, what)
}
