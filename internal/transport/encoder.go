package transport

import "github.com/kstaniek/go-sml-decoder/internal/smlbuf"

var startSequence = [8]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0x01, 0x01, 0x01}

// Encode writes the framed, escaped, padded, checksummed transport
// representation of payload into buf: start sequence, escaped payload,
// zero padding to a 4-byte boundary, end marker, and little-endian CRC.
func Encode(payload []byte, buf smlbuf.Buffer) error {
	if err := buf.ExtendFromSlice(startSequence[:]); err != nil {
		return ErrOutOfMemory
	}

	num1b := 0
	for _, b := range payload {
		if b == 0x1b {
			num1b++
		} else {
			num1b = 0
		}
		if err := buf.Push(b); err != nil {
			return ErrOutOfMemory
		}
		if num1b == 4 {
			if err := buf.ExtendFromSlice([]byte{0x1b, 0x1b, 0x1b, 0x1b}); err != nil {
				return ErrOutOfMemory
			}
			num1b = 0
		}
	}

	numPadding := (4 - (buf.Len() % 4)) % 4
	if numPadding > 0 {
		if err := buf.ExtendFromSlice(make([]byte, numPadding)); err != nil {
			return ErrOutOfMemory
		}
	}

	if err := buf.ExtendFromSlice([]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x1a, byte(numPadding)}); err != nil {
		return ErrOutOfMemory
	}

	crc := checksumX25(buf.Bytes())
	if err := buf.ExtendFromSlice([]byte{byte(crc), byte(crc >> 8)}); err != nil {
		return ErrOutOfMemory
	}
	return nil
}
