package transport

import "io"

type encoderState int

const (
	encStateInit encoderState = iota
	encStateLookingForEscape
	encStateHandlingEscape
	encStateEnd
)

// StreamEncoder is an io.Reader that lazily produces the transport encoding
// of the bytes read from an underlying io.Reader, without buffering the
// whole payload — the idiomatic Go substitute for a pull-style byte
// iterator.
type StreamEncoder struct {
	src io.Reader

	state   encoderState
	initN   uint8
	lfeN    uint8
	heN     uint8
	endN    int8
	padding uint8 // wrapping counter; only the low 2 bits are meaningful
	crc     crcState

	eof      bool
	crcBytes [2]byte
}

// NewStreamEncoder creates a StreamEncoder reading payload bytes from src.
func NewStreamEncoder(src io.Reader) *StreamEncoder {
	c := newCRCState()
	c.update(startSequence[:])
	return &StreamEncoder{src: src, crc: c}
}

func (e *StreamEncoder) bumpPadding() { e.padding-- }

func (e *StreamEncoder) paddingLen() uint8 { return e.padding & 0x3 }

// Read implements io.Reader, emitting one byte of framed output per logical
// step of the reference encoder's state machine (buffered one byte at a
// time internally to satisfy the io.Reader contract).
func (e *StreamEncoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, ok := e.next()
		if !ok {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (e *StreamEncoder) readFromSrc() (byte, bool) {
	if e.eof {
		return 0, false
	}
	var buf [1]byte
	for {
		n, err := e.src.Read(buf[:])
		if n > 0 {
			e.bumpPadding()
			return buf[0], true
		}
		if err != nil {
			e.eof = true
			return 0, false
		}
	}
}

func (e *StreamEncoder) next() (byte, bool) {
	switch e.state {
	case encStateInit:
		if e.initN < 4 {
			e.initN++
			return 0x1b, true
		}
		if e.initN < 8 {
			e.initN++
			return 0x01, true
		}
		e.state = encStateLookingForEscape
		e.lfeN = 0
		return e.next()

	case encStateLookingForEscape:
		if e.lfeN < 4 {
			b, ok := e.readFromSrc()
			if ok {
				e.crc.update([]byte{b})
				if b == 0x1b {
					e.lfeN++
				} else {
					e.lfeN = 0
				}
				return b, true
			}
			padding := e.paddingLen()
			for i := uint8(0); i < padding; i++ {
				e.crc.update([]byte{0})
			}
			e.crc.update([]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x1a, padding})
			e.state = encStateEnd
			e.endN = -int8(padding)
			return e.next()
		}
		e.crc.update([]byte{0x1b, 0x1b, 0x1b, 0x1b})
		e.state = encStateHandlingEscape
		e.heN = 0
		return e.next()

	case encStateHandlingEscape:
		if e.heN < 4 {
			e.heN++
			return 0x1b, true
		}
		e.state = encStateLookingForEscape
		e.lfeN = 0
		return e.next()

	case encStateEnd:
		n := e.endN
		var out byte
		switch {
		case n < 0:
			out = 0x00
		case n < 4:
			out = 0x1b
		case n == 4:
			out = 0x1a
		case n == 5:
			out = e.paddingLen()
		case n < 8:
			if n == 6 {
				crc := e.crc.clone().current()
				e.crcBytes = [2]byte{byte(crc), byte(crc >> 8)}
			}
			out = e.crcBytes[n-6]
		default:
			return 0, false
		}
		e.endN++
		return out, true

	default:
		return 0, false
	}
}
