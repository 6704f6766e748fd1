// Package transport implements the SML transport v1 framing: escape-sequence
// delimited frames with a CRC-16/X.25 trailer. It is a byte-at-a-time state
// machine so it can run against any source of bytes, blocking or not.
package transport

import "github.com/kstaniek/go-sml-decoder/internal/smlbuf"

const (
	startByteEsc  = 0x1b
	startByteInit = 0x01
	endMarker     = 0x1a
)

type stateKind int

const (
	stateLookingForStart stateKind = iota
	stateParsingNormal
	stateParsingEscChars
	stateParsingEscPayload
	stateDone
)

// Decoder consumes bytes one at a time and assembles them into frame
// payloads, discarding and resynchronizing past anything that isn't a valid
// frame. A single Decoder is not safe for concurrent use.
type Decoder struct {
	buf smlbuf.Buffer

	state     stateKind
	rawMsgLen int
	zeroCache uint8
	crc       crcState

	// stateLookingForStart
	numDiscardedBytes uint16
	numInitSeqBytes   uint8

	// stateParsingEscChars
	escRun uint8

	// stateParsingEscPayload
	escStep    uint8
	escPayload [4]byte
}

// NewDecoder creates a Decoder that accumulates frame payloads into buf.
func NewDecoder(buf smlbuf.Buffer) *Decoder {
	return &Decoder{buf: buf, state: stateLookingForStart}
}

// PushByte feeds one byte into the decoder. It returns (frame, nil) once a
// complete, valid frame has been assembled (frame aliases the Decoder's
// internal buffer and is only valid until the next call), (nil, nil) when
// more bytes are needed, or (nil, err) when the byte completed an error
// condition. DiscardedBytesError is informational: decoding continues
// after it. Any other error resets the decoder.
func (d *Decoder) PushByte(b byte) ([]byte, error) {
	done, err := d.pushByte(b)
	if err != nil {
		return nil, err
	}
	if done {
		frame := d.buf.Bytes()
		if frame == nil {
			// an empty payload in a never-filled Growable is still a frame
			frame = []byte{}
		}
		return frame, nil
	}
	return nil, nil
}

// Reset discards any in-progress frame and returns the number of bytes that
// were part of it.
func (d *Decoder) Reset() int {
	numDiscarded := d.rawMsgLen
	if d.state == stateDone {
		numDiscarded = 0
	}
	d.state = stateLookingForStart
	d.numDiscardedBytes = 0
	d.numInitSeqBytes = 0
	d.buf.Clear()
	d.rawMsgLen = 0
	d.zeroCache = 0
	return numDiscarded
}

// Finalize reports whether a partial frame was in flight and resets the
// decoder. It should be called when the byte source is exhausted.
func (d *Decoder) Finalize() error {
	var err error
	lookingClean := d.state == stateLookingForStart && d.numDiscardedBytes == 0 && d.numInitSeqBytes == 0
	if !lookingClean && d.state != stateDone {
		err = &DiscardedBytesError{N: d.rawMsgLen}
	}
	d.Reset()
	return err
}

func (d *Decoder) pushByte(b byte) (bool, error) {
	d.rawMsgLen++
	switch d.state {
	case stateLookingForStart:
		return d.pushLookingForStart(b)
	case stateParsingNormal:
		return d.pushParsingNormal(b)
	case stateParsingEscChars:
		return d.pushParsingEscChars(b)
	case stateParsingEscPayload:
		return d.pushParsingEscPayload(b)
	case stateDone:
		d.Reset()
		return d.pushByte(b)
	default:
		panic("transport: unreachable decoder state")
	}
}

// pushLookingForStart mirrors the reference's LookingForMessageStart arm
// exactly: the discarded-byte counter accumulates silently across calls and
// is only ever surfaced as an error at the moment the 8-byte start sequence
// completes.
func (d *Decoder) pushLookingForStart(b byte) (bool, error) {
	if (b == startByteEsc && d.numInitSeqBytes < 4) || (b == startByteInit && d.numInitSeqBytes >= 4) {
		d.numInitSeqBytes++
	} else {
		d.numDiscardedBytes += 1 + uint16(d.numInitSeqBytes)
		d.numInitSeqBytes = 0
	}
	if d.numInitSeqBytes == 8 {
		ndb := d.numDiscardedBytes
		d.state = stateParsingNormal
		d.rawMsgLen = 8
		d.crc = newCRCState()
		d.crc.update([]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0x01, 0x01, 0x01})
		if ndb > 0 {
			return false, &DiscardedBytesError{N: int(ndb)}
		}
	}
	return false, nil
}

func (d *Decoder) pushParsingNormal(b byte) (bool, error) {
	d.crc.update([]byte{b})
	if b == startByteEsc {
		d.state = stateParsingEscChars
		d.escRun = 1
		return false, nil
	}
	return false, d.push(b)
}

func (d *Decoder) pushParsingEscChars(b byte) (bool, error) {
	d.crc.update([]byte{b})
	switch {
	case b != startByteEsc:
		for i := uint8(0); i < d.escRun; i++ {
			if err := d.push(startByteEsc); err != nil {
				return false, err
			}
		}
		if err := d.push(b); err != nil {
			return false, err
		}
		d.state = stateParsingNormal
		return false, nil
	case d.escRun == 3:
		d.state = stateParsingEscPayload
		d.escStep = 0
		d.escPayload = [4]byte{}
		return false, nil
	default:
		d.escRun++
		return false, nil
	}
}

func (d *Decoder) pushParsingEscPayload(b byte) (bool, error) {
	d.escPayload[d.escStep] = b
	if d.escStep < 3 {
		d.escStep++
		return false, nil
	}
	payload := d.escPayload
	switch {
	case payload == [4]byte{0x1b, 0x1b, 0x1b, 0x1b}:
		d.crc.update(payload[:])
		for _, x := range payload {
			if err := d.push(x); err != nil {
				return false, err
			}
		}
		d.state = stateParsingNormal
		return false, nil

	case payload == [4]byte{0x01, 0x01, 0x01, 0x01}:
		ignored := d.rawMsgLen - 8
		d.rawMsgLen = 8
		d.zeroCache = 0
		d.buf.Clear()
		d.crc = newCRCState()
		d.crc.update([]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0x01, 0x01, 0x01})
		d.state = stateParsingNormal
		return false, &DiscardedBytesError{N: ignored}

	case payload[0] == endMarker:
		return d.handleEndMarker(payload)

	default:
		return d.handleMisalignedEsc(payload)
	}
}

func (d *Decoder) handleEndMarker(payload [4]byte) (bool, error) {
	numPaddingBytes := payload[1]
	readCRC := uint16(payload[2]) | uint16(payload[3])<<8
	d.crc.update(payload[0:2])
	calculatedCRC := d.crc.clone().current()

	misaligned := d.rawMsgLen%4 != 0
	paddingTooLarge := numPaddingBytes > 3
	paddingLargerThanMsg := d.rawMsgLen < int(numPaddingBytes)+16
	invalidPaddingBytes := numPaddingBytes > d.zeroCache

	if readCRC != calculatedCRC || misaligned || paddingTooLarge || paddingLargerThanMsg || invalidPaddingBytes {
		d.Reset()
		return false, &InvalidMessageError{
			ChecksumMismatch:    [2]uint16{readCRC, calculatedCRC},
			EndEscMisaligned:    misaligned,
			NumPaddingBytes:     numPaddingBytes,
			InvalidPaddingBytes: invalidPaddingBytes,
		}
	}

	d.zeroCache -= numPaddingBytes
	if err := d.flush(); err != nil {
		return false, err
	}
	d.state = stateDone
	return true, nil
}

func (d *Decoder) handleMisalignedEsc(payload [4]byte) (bool, error) {
	bytesUntilAlignment := (4 - (d.rawMsgLen % 4)) % 4
	if bytesUntilAlignment > 0 && allEsc(payload[:bytesUntilAlignment]) && payload[bytesUntilAlignment] == endMarker {
		d.crc.update(payload[:bytesUntilAlignment])
		for i := 0; i < bytesUntilAlignment; i++ {
			if err := d.push(startByteEsc); err != nil {
				return false, err
			}
		}
		var next [4]byte
		copy(next[:4-bytesUntilAlignment], payload[bytesUntilAlignment:])
		d.escPayload = next
		d.escStep = uint8(4 - bytesUntilAlignment)
		d.state = stateParsingEscPayload
		return false, nil
	}
	d.Reset()
	return false, &InvalidEscError{Payload: payload}
}

func allEsc(b []byte) bool {
	for _, x := range b {
		if x != startByteEsc {
			return false
		}
	}
	return true
}

// push appends a data byte, folding runs of up to four zero bytes into the
// zero cache so padding can later be distinguished from real zero-valued
// payload data.
func (d *Decoder) push(b byte) error {
	if b == 0 {
		if d.zeroCache <= 3 {
			d.zeroCache++
			return nil
		}
		return d.pushInner(0)
	}
	if err := d.flush(); err != nil {
		return err
	}
	return d.pushInner(b)
}

func (d *Decoder) flush() error {
	for d.zeroCache > 0 {
		if err := d.pushInner(0); err != nil {
			return err
		}
		d.zeroCache--
	}
	return nil
}

func (d *Decoder) pushInner(b byte) error {
	if err := d.buf.Push(b); err != nil {
		d.Reset()
		return ErrOutOfMemory
	}
	return nil
}
