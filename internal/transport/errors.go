package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is-based classification. Every concrete error
// type below wraps exactly one of these.
var (
	ErrDiscardedBytes = errors.New("transport: bytes discarded while looking for a frame")
	ErrOutOfMemory    = errors.New("transport: buffer full")
	ErrInvalidEsc     = errors.New("transport: invalid escape sequence")
	ErrInvalidMessage = errors.New("transport: invalid message")
)

// DiscardedBytesError reports bytes skipped while resynchronizing on a frame
// start. It is informational: decoding continues after it is returned.
type DiscardedBytesError struct {
	N int
}

func (e *DiscardedBytesError) Error() string {
	return fmt.Sprintf("transport: discarded %d byte(s) looking for frame start", e.N)
}

func (e *DiscardedBytesError) Unwrap() error { return ErrDiscardedBytes }

// InvalidEscError reports a four-byte escape payload that matched none of
// the recognized forms (literal escape, retransmission start, end marker, or
// a misaligned end marker recoverable by realignment).
type InvalidEscError struct {
	Payload [4]byte
}

func (e *InvalidEscError) Error() string {
	return fmt.Sprintf("transport: invalid escape sequence %x", e.Payload)
}

func (e *InvalidEscError) Unwrap() error { return ErrInvalidEsc }

// InvalidMessageError reports a frame whose end marker was reached but which
// failed CRC, alignment, or padding validation.
type InvalidMessageError struct {
	// ChecksumMismatch holds [read, calculated]. Equal values mean the CRC
	// matched and some other check failed instead.
	ChecksumMismatch    [2]uint16
	EndEscMisaligned    bool
	NumPaddingBytes     uint8
	InvalidPaddingBytes bool
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf(
		"transport: invalid message (crc read=%#04x calculated=%#04x, misaligned=%v, padding=%d, invalid_padding=%v)",
		e.ChecksumMismatch[0], e.ChecksumMismatch[1], e.EndEscMisaligned, e.NumPaddingBytes, e.InvalidPaddingBytes,
	)
}

func (e *InvalidMessageError) Unwrap() error { return ErrInvalidMessage }
