package sml

import (
	"github.com/kstaniek/go-sml-decoder/internal/tlf"
)

// MessageBodyKind discriminates the MessageBody union.
type MessageBodyKind int

const (
	BodyOpenResponse MessageBodyKind = iota
	BodyCloseResponse
	BodyGetListResponse
	BodyAttentionResponse
)

const (
	tagOpenResponse      = 0x00000101
	tagCloseResponse     = 0x00000201
	tagGetListResponse   = 0x00000701
	tagAttentionResponse = 0x0000FF01
)

// MessageBody is an SML message's payload. Only the message types that show
// up in real-world power meters are implemented, plus AttentionResponse
// (tag 0xFF01), which the reference parser's dispatch table omits even
// though it defines the AttentionResponse type itself.
type MessageBody struct {
	Kind              MessageBodyKind
	OpenResponse      OpenResponse
	CloseResponse     CloseResponse
	GetListResponse   GetListResponse
	AttentionResponse AttentionResponse
}

func parseMessageBody(input []byte) (MessageBody, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return MessageBody{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 2 {
		return MessageBody{}, nil, tlfMismatch("MessageBody")
	}
	tag, rest, err := ParseUint32(rest)
	if err != nil {
		return MessageBody{}, nil, err
	}
	switch tag {
	case tagOpenResponse:
		v, rest, err := parseOpenResponse(rest)
		return MessageBody{Kind: BodyOpenResponse, OpenResponse: v}, rest, err
	case tagCloseResponse:
		v, rest, err := parseCloseResponse(rest)
		return MessageBody{Kind: BodyCloseResponse, CloseResponse: v}, rest, err
	case tagGetListResponse:
		v, rest, err := parseGetListResponse(rest)
		return MessageBody{Kind: BodyGetListResponse, GetListResponse: v}, rest, err
	case tagAttentionResponse:
		v, rest, err := parseAttentionResponse(rest)
		return MessageBody{Kind: BodyAttentionResponse, AttentionResponse: v}, rest, err
	default:
		return MessageBody{}, nil, ErrUnexpectedVariant
	}
}

// endOfMessage consumes the single zero byte that terminates every SML
// message.
func endOfMessage(input []byte) ([]byte, error) {
	b, rest, err := take(input, 1)
	if err != nil {
		return nil, err
	}
	if b[0] != 0x00 {
		return nil, ErrMsgEndMismatch
	}
	return rest, nil
}

// Message is one `SML_Message`: an envelope (transaction id, group, abort
// policy) around a MessageBody, protected by its own CRC distinct from the
// transport frame's CRC.
type Message struct {
	TransactionID []byte
	GroupNo       uint8
	AbortOnError  uint8
	MessageBody   MessageBody
}

func parseMessage(input []byte) (Message, []byte, error) {
	origLen := len(input)
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return Message{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 6 {
		return Message{}, nil, tlfMismatch("Message")
	}
	transactionID, rest, err := ParseOctetString(rest)
	if err != nil {
		return Message{}, nil, err
	}
	groupNo, rest, err := ParseUint8(rest)
	if err != nil {
		return Message{}, nil, err
	}
	abortOnError, rest, err := ParseUint8(rest)
	if err != nil {
		return Message{}, nil, err
	}
	body, rest, err := parseMessageBody(rest)
	if err != nil {
		return Message{}, nil, err
	}

	numBytesRead := origLen - len(rest)

	wantCRC, rest, err := ParseUint16(rest)
	if err != nil {
		return Message{}, nil, err
	}
	rest, err = endOfMessage(rest)
	if err != nil {
		return Message{}, nil, err
	}

	got := swapBytes16(messageChecksum(input[0:numBytesRead]))
	if got != wantCRC {
		return Message{}, nil, ErrCrcMismatch
	}

	return Message{
		TransactionID: transactionID,
		GroupNo:       groupNo,
		AbortOnError:  abortOnError,
		MessageBody:   body,
	}, rest, nil
}

// File is the top-level SML construct: a sequence of Messages filling an
// entire transport frame.
type File struct {
	Messages []Message
}

// ParseFile parses every Message in input, requiring the whole slice to be
// consumed. input is typically one transport frame payload as returned by
// transport.Decoder/transport.Reader.
func ParseFile(input []byte) (File, error) {
	var messages []Message
	for len(input) > 0 {
		msg, rest, err := parseMessage(input)
		if err != nil {
			return File{}, err
		}
		messages = append(messages, msg)
		input = rest
	}
	return File{Messages: messages}, nil
}
