package transport

import (
	"errors"
	"io"

	"github.com/kstaniek/go-sml-decoder/internal/sml"
	"github.com/kstaniek/go-sml-decoder/internal/smlbuf"
)

// ParseFailureError reports that a transport frame decoded cleanly but the
// SML message layer rejected its payload. It is distinguished from every
// transport-layer error type so a caller can always tell which side failed.
type ParseFailureError struct {
	Err error
}

func (e *ParseFailureError) Error() string {
	return "transport: frame decoded but failed to parse: " + e.Err.Error()
}

func (e *ParseFailureError) Unwrap() error { return e.Err }

// decodeFrame owns one Decoder/Reader pair over src for the lifetime of a
// single call, clearing buf up front so a buffer reused across calls never
// leaks a prior frame's bytes into the next one. It skips past
// DiscardedBytesError (informational in the decoder's per-byte contract) and
// InvalidMessageError (after which the decoder has already reset and looks
// for the next frame start), so a caller sees only the frame that eventually
// decodes or the error that ends the search.
func decodeFrame(src ByteSource, buf smlbuf.Buffer) ([]byte, error) {
	decoder := NewDecoder(buf)
	decoder.Reset()
	reader := NewReader(src, decoder)

	discarded := 0
	for {
		frame, err := reader.Next()
		if err != nil {
			var de *DiscardedBytesError
			if errors.As(err, &de) {
				discarded += de.N
				continue
			}
			var ie *InvalidMessageError
			if errors.As(err, &ie) {
				continue
			}
			var re *ReadError
			if errors.As(err, &re) {
				re.Discarded += discarded
			}
			return nil, err
		}
		if frame == nil {
			if discarded > 0 {
				return nil, &ReadError{Err: io.EOF, Discarded: discarded}
			}
			return nil, io.EOF
		}
		return frame, nil
	}
}

// DecodeRawPayload reads src until one transport frame decodes successfully
// and returns its raw, un-parsed payload. This is the RawPayload variant of
// the convenience reader API, for callers that only need the frame bytes
// (e.g. to hand them to the streaming parser instead of the materialized
// one).
func DecodeRawPayload(src ByteSource, buf smlbuf.Buffer) ([]byte, error) {
	return decodeFrame(src, buf)
}

// DecodeFile reads src until one transport frame decodes successfully and
// parses it as a materialized File. The returned error is either a
// transport-layer error (unwrapped, so callers can errors.As/errors.Is
// against *ReadError, *InvalidEscError or ErrOutOfMemory; DiscardedBytesError
// and InvalidMessageError are skipped and never returned), io.EOF when the
// source ends cleanly, or a *ParseFailureError wrapping the SML-layer
// failure. A *ReadError's Discarded count includes every byte reported by
// the skipped DiscardedBytesErrors.
func DecodeFile(src ByteSource, buf smlbuf.Buffer) (*sml.File, error) {
	frame, err := decodeFrame(src, buf)
	if err != nil {
		return nil, err
	}
	file, perr := sml.ParseFile(frame)
	if perr != nil {
		return nil, &ParseFailureError{Err: perr}
	}
	return &file, nil
}
