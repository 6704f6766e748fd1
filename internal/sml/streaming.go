package sml

import (
	"io"

	"github.com/kstaniek/go-sml-decoder/internal/tlf"
)

// MessageStart is the prefix of a Message the streaming parser has decoded
// so far. For fixed-size bodies (OpenResponse, CloseResponse,
// AttentionResponse) it already holds the whole message; for
// GetListResponse it only holds the fields preceding the value list, whose
// entries are delivered as separate ListEntry events followed by a
// GetListResponseEnd event.
type MessageStart struct {
	TransactionID []byte
	GroupNo       uint8
	AbortOnError  uint8
	MessageBody   StreamingMessageBody
}

// StreamingMessageBodyKind discriminates StreamingMessageBody.
type StreamingMessageBodyKind int

const (
	StreamBodyOpenResponse StreamingMessageBodyKind = iota
	StreamBodyCloseResponse
	StreamBodyGetListResponse
	StreamBodyAttentionResponse
)

// StreamingMessageBody is like MessageBody, but GetListResponse only carries
// the fields known before the value list (see GetListResponseStart).
type StreamingMessageBody struct {
	Kind              StreamingMessageBodyKind
	OpenResponse      OpenResponse
	CloseResponse     CloseResponse
	GetListResponse   GetListResponseStart
	AttentionResponse AttentionResponse
}

// GetListResponseStart carries a GetListResponse's fields up to (and
// including the element count of) its value list.
type GetListResponseStart struct {
	ClientID      []byte
	ServerID      []byte
	ListName      []byte
	ActSensorTime *Time
	NumVals       int
}

func parseGetListResponseStart(input []byte) (GetListResponseStart, []byte, error) {
	clientID, rest, err := ParseOptional(input, ParseOctetString)
	if err != nil {
		return GetListResponseStart{}, nil, err
	}
	serverID, rest, err := ParseOctetString(rest)
	if err != nil {
		return GetListResponseStart{}, nil, err
	}
	listName, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return GetListResponseStart{}, nil, err
	}
	actSensorTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return GetListResponseStart{}, nil, err
	}
	t, rest, err := tlf.Decode(rest)
	if err != nil {
		return GetListResponseStart{}, nil, err
	}
	if t.Type != tlf.ListOf {
		return GetListResponseStart{}, nil, tlfMismatch("GetListResponseStart")
	}
	var cid, ln []byte
	if clientID != nil {
		cid = *clientID
	}
	if listName != nil {
		ln = *listName
	}
	return GetListResponseStart{
		ClientID:      cid,
		ServerID:      serverID,
		ListName:      ln,
		ActSensorTime: actSensorTime,
		NumVals:       t.Len,
	}, rest, nil
}

// GetListResponseEnd carries a GetListResponse's fields following its value
// list, delivered once all of that list's ListEntry events have been
// produced.
type GetListResponseEnd struct {
	ListSignature  Signature
	ActGatewayTime *Time
}

func parseGetListResponseEnd(input []byte) (GetListResponseEnd, []byte, error) {
	sig, rest, err := ParseOptional(input, ParseOctetString)
	if err != nil {
		return GetListResponseEnd{}, nil, err
	}
	actGatewayTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return GetListResponseEnd{}, nil, err
	}
	var s Signature
	if sig != nil {
		s = *sig
	}
	return GetListResponseEnd{ListSignature: s, ActGatewayTime: actGatewayTime}, rest, nil
}

func parseMessageStart(input []byte) (MessageStart, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return MessageStart{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 6 {
		return MessageStart{}, nil, tlfMismatch("Message")
	}
	transactionID, rest, err := ParseOctetString(rest)
	if err != nil {
		return MessageStart{}, nil, err
	}
	groupNo, rest, err := ParseUint8(rest)
	if err != nil {
		return MessageStart{}, nil, err
	}
	abortOnError, rest, err := ParseUint8(rest)
	if err != nil {
		return MessageStart{}, nil, err
	}

	bodyTLF, bodyRest, err := tlf.Decode(rest)
	if err != nil {
		return MessageStart{}, nil, err
	}
	if bodyTLF.Type != tlf.ListOf || bodyTLF.Len != 2 {
		return MessageStart{}, nil, tlfMismatch("MessageBody")
	}
	tag, rest, err := ParseUint32(bodyRest)
	if err != nil {
		return MessageStart{}, nil, err
	}

	var body StreamingMessageBody
	switch tag {
	case tagOpenResponse:
		v, r, err := parseOpenResponse(rest)
		if err != nil {
			return MessageStart{}, nil, err
		}
		body, rest = StreamingMessageBody{Kind: StreamBodyOpenResponse, OpenResponse: v}, r
	case tagCloseResponse:
		v, r, err := parseCloseResponse(rest)
		if err != nil {
			return MessageStart{}, nil, err
		}
		body, rest = StreamingMessageBody{Kind: StreamBodyCloseResponse, CloseResponse: v}, r
	case tagGetListResponse:
		v, r, err := parseGetListResponseStart(rest)
		if err != nil {
			return MessageStart{}, nil, err
		}
		body, rest = StreamingMessageBody{Kind: StreamBodyGetListResponse, GetListResponse: v}, r
	case tagAttentionResponse:
		v, r, err := parseAttentionResponse(rest)
		if err != nil {
			return MessageStart{}, nil, err
		}
		body, rest = StreamingMessageBody{Kind: StreamBodyAttentionResponse, AttentionResponse: v}, r
	default:
		return MessageStart{}, nil, ErrUnexpectedVariant
	}

	return MessageStart{
		TransactionID: transactionID,
		GroupNo:       groupNo,
		AbortOnError:  abortOnError,
		MessageBody:   body,
	}, rest, nil
}

// ParseEventKind discriminates the events a Parser yields.
type ParseEventKind int

const (
	EventMessageStart ParseEventKind = iota
	EventGetListResponseEnd
	EventListEntry
)

// ParseEvent is one unit of streaming parser output.
type ParseEvent struct {
	Kind               ParseEventKind
	MessageStart       MessageStart
	GetListResponseEnd GetListResponseEnd
	ListEntry          ListEntry
}

// Parser incrementally decodes a byte slice of one or more SML messages
// without building the fully materialized File/Message tree, avoiding heap
// allocation for the (potentially large) GetListResponse value list.
type Parser struct {
	input              []byte
	msgInput           []byte
	pendingListEntries uint32
	done               bool
}

// NewParser creates a Parser over input, which must contain one or more
// complete SML messages (typically one transport frame payload).
func NewParser(input []byte) *Parser {
	return &Parser{input: input}
}

// Next returns the next ParseEvent, or (ParseEvent{}, io.EOF) once input is
// exhausted. Once Next returns a non-EOF error, the Parser is terminal: all
// further calls return that same io.EOF-shaped exhaustion immediately.
func (p *Parser) Next() (ParseEvent, error) {
	if p.done {
		return ParseEvent{}, io.EOF
	}
	ev, err := p.next()
	if err != nil {
		p.done = true
		p.input = nil
		if err == io.EOF {
			return ParseEvent{}, io.EOF
		}
		return ParseEvent{}, err
	}
	return ev, nil
}

func (p *Parser) next() (ParseEvent, error) {
	if len(p.input) == 0 && p.pendingListEntries == 0 {
		return ParseEvent{}, io.EOF
	}

	switch p.pendingListEntries {
	case 0:
		p.msgInput = p.input
		msg, rest, err := parseMessageStart(p.input)
		if err != nil {
			return ParseEvent{}, err
		}
		p.input = rest
		if msg.MessageBody.Kind == StreamBodyGetListResponse {
			p.pendingListEntries = uint32(msg.MessageBody.GetListResponse.NumVals) + 2
		} else {
			p.pendingListEntries = 1
		}
		return ParseEvent{Kind: EventMessageStart, MessageStart: msg}, nil
	case 1:
		numBytesRead := len(p.msgInput) - len(p.input)
		wantCRC, rest, err := ParseUint16(p.input)
		if err != nil {
			return ParseEvent{}, err
		}
		rest, err = endOfMessage(rest)
		if err != nil {
			return ParseEvent{}, err
		}
		p.input = rest

		got := swapBytes16(messageChecksum(p.msgInput[0:numBytesRead]))
		if got != wantCRC {
			return ParseEvent{}, ErrCrcMismatch
		}
		p.pendingListEntries = 0
		return p.next()
	case 2:
		glre, rest, err := parseGetListResponseEnd(p.input)
		if err != nil {
			return ParseEvent{}, err
		}
		p.input = rest
		p.pendingListEntries = 1
		return ParseEvent{Kind: EventGetListResponseEnd, GetListResponseEnd: glre}, nil
	default:
		le, rest, err := parseListEntry(p.input)
		if err != nil {
			return ParseEvent{}, err
		}
		p.input = rest
		p.pendingListEntries--
		return ParseEvent{Kind: EventListEntry, ListEntry: le}, nil
	}
}
