package transport

import (
	"errors"
	"io"
)

// ErrWouldBlock is returned by a ByteSource when no byte is available yet
// but the source is not at EOF (e.g. a non-blocking serial port read).
var ErrWouldBlock = errors.New("transport: would block")

// ByteSource supplies one byte at a time to a Reader. Implementations
// report io.EOF when exhausted and ErrWouldBlock when a non-blocking read
// has no data available yet; any other error is treated as terminal.
type ByteSource interface {
	ReadByte() (byte, error)
}

// ReadError wraps an error encountered while reading from a ByteSource,
// together with the number of bytes that were discarded from the
// in-progress frame as a result.
type ReadError struct {
	Err       error
	Discarded int
}

func (e *ReadError) Error() string { return e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }

// Reader decodes transport frames pulled from a ByteSource, one frame per
// call to Next.
type Reader struct {
	decoder *Decoder
	src     ByteSource
}

// NewReader creates a Reader that feeds bytes from src into decoder, which
// owns the buffer frames are assembled in.
func NewReader(src ByteSource, decoder *Decoder) *Reader {
	return &Reader{decoder: decoder, src: src}
}

// Read reads and decodes one transmission. On success it returns the frame
// payload (valid only until the next call). On I/O error it returns a
// *ReadError; on decode error it returns the decoder's error directly
// (see PushByte).
func (r *Reader) Read() ([]byte, error) {
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			var discarded int
			if errors.Is(err, ErrWouldBlock) {
				discarded = 0
			} else {
				discarded = r.decoder.Reset()
			}
			return nil, &ReadError{Err: err, Discarded: discarded}
		}
		frame, err := r.decoder.PushByte(b)
		if err != nil {
			// DiscardedBytesError is returned immediately too, matching the
			// per-byte decoder: it does not abandon an in-progress frame.
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
}

// Next is like Read, but returns (nil, nil) once the source reports a clean
// io.EOF with no bytes discarded, signaling a finite source is exhausted.
func (r *Reader) Next() ([]byte, error) {
	frame, err := r.Read()
	var re *ReadError
	if errors.As(err, &re) && re.Discarded == 0 && errors.Is(re.Err, io.EOF) {
		return nil, nil
	}
	return frame, err
}

// NextNB is Next's non-blocking three-way variant for a ByteSource that may
// report ErrWouldBlock: it returns (nil, true, nil) when the underlying read
// would block rather than forcing every caller to errors.As+errors.Is against
// ErrWouldBlock itself. A clean, fully-consumed io.EOF still collapses to
// (nil, false, nil); any other error is returned as-is with blocked=false.
func (r *Reader) NextNB() ([]byte, bool, error) {
	frame, err := r.Read()
	if err == nil {
		return frame, false, nil
	}
	var re *ReadError
	if errors.As(err, &re) {
		if errors.Is(re.Err, ErrWouldBlock) {
			return nil, true, nil
		}
		if re.Discarded == 0 && errors.Is(re.Err, io.EOF) {
			return nil, false, nil
		}
	}
	return nil, false, err
}
