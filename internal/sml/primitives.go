package sml

import (
	"github.com/kstaniek/go-sml-decoder/internal/tlf"
)

// optionalSkip is the single byte SML uses to signal an absent optional
// element: an OctetString TLF of length zero.
const optionalSkip = 0x01

func take(input []byte, n int) ([]byte, []byte, error) {
	if len(input) < n {
		return nil, nil, ErrUnexpectedEOF
	}
	return input[:n], input[n:], nil
}

// ParseOctetString parses a borrowed byte-string value. The returned slice
// aliases input and is valid only as long as the underlying buffer is.
func ParseOctetString(input []byte) ([]byte, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return nil, nil, err
	}
	if t.Type != tlf.OctetString {
		return nil, nil, tlfMismatch("OctetString")
	}
	return take(rest, t.Len)
}

// ParseBool parses an SML Boolean value.
func ParseBool(input []byte) (bool, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return false, nil, err
	}
	if t.Type != tlf.Boolean || t.Len != 1 {
		return false, nil, ErrNumTlfMismatch
	}
	b, rest, err := take(rest, 1)
	if err != nil {
		return false, nil, err
	}
	return b[0] > 0, rest, nil
}

func parseUint(input []byte, size int) (uint64, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return 0, nil, err
	}
	if t.Type != tlf.Unsigned || t.Len > size || t.Len == 0 {
		return 0, nil, ErrNumTlfMismatch
	}
	bytes, rest, err := take(rest, t.Len)
	if err != nil {
		return 0, nil, err
	}
	var v uint64
	for _, b := range bytes {
		v = v<<8 | uint64(b)
	}
	return v, rest, nil
}

func parseInt(input []byte, size int) (int64, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return 0, nil, err
	}
	if t.Type != tlf.Integer || t.Len > size || t.Len == 0 {
		return 0, nil, ErrNumTlfMismatch
	}
	bytes, rest, err := take(rest, t.Len)
	if err != nil {
		return 0, nil, err
	}
	// sign-extend from the number of bytes actually present
	var v int64
	if bytes[0] > 0x7F {
		v = -1
	}
	for _, b := range bytes {
		v = v<<8 | int64(b)
	}
	return v, rest, nil
}

func ParseUint8(input []byte) (uint8, []byte, error) {
	v, rest, err := parseUint(input, 1)
	return uint8(v), rest, err
}

func ParseUint16(input []byte) (uint16, []byte, error) {
	v, rest, err := parseUint(input, 2)
	return uint16(v), rest, err
}

func ParseUint32(input []byte) (uint32, []byte, error) {
	v, rest, err := parseUint(input, 4)
	return uint32(v), rest, err
}

func ParseUint64(input []byte) (uint64, []byte, error) {
	return parseUint(input, 8)
}

func ParseInt8(input []byte) (int8, []byte, error) {
	v, rest, err := parseInt(input, 1)
	return int8(v), rest, err
}

func ParseInt16(input []byte) (int16, []byte, error) {
	v, rest, err := parseInt(input, 2)
	return int16(v), rest, err
}

func ParseInt32(input []byte) (int32, []byte, error) {
	v, rest, err := parseInt(input, 4)
	return int32(v), rest, err
}

func ParseInt64(input []byte) (int64, []byte, error) {
	return parseInt(input, 8)
}

// ParseOptional parses a Go generic stand-in for the reference's
// `Option<T>`: a leading single byte 0x01 means absent (returns a nil
// pointer), otherwise parse falls through to the element parser.
func ParseOptional[T any](input []byte, parse func([]byte) (T, []byte, error)) (*T, []byte, error) {
	if len(input) > 0 && input[0] == optionalSkip {
		return nil, input[1:], nil
	}
	v, rest, err := parse(input)
	if err != nil {
		return nil, nil, err
	}
	return &v, rest, nil
}
