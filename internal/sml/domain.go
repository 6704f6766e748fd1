package sml

import (
	"bytes"
	"fmt"

	"github.com/kstaniek/go-sml-decoder/internal/tlf"
)

// Time holds a reference/sensor timestamp. SML only defines the SecIndex
// variant in practice (usually seconds since the meter was installed).
type Time struct {
	SecIndex uint32
}

func (t Time) String() string { return fmt.Sprintf("SecIndex(%d)", t.SecIndex) }

// parseTime parses a Time value, including the Holley DTZ541 workaround:
// that meter sends a bare Unsigned(4) instead of the spec's ListOf(2)
// {tag, SecIndex} pair.
func parseTime(input []byte) (Time, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return Time{}, nil, err
	}
	if t.Type == tlf.Unsigned && t.Len == 4 {
		bs, rest, err := take(rest, 4)
		if err != nil {
			return Time{}, nil, err
		}
		v := uint32(bs[0])<<24 | uint32(bs[1])<<16 | uint32(bs[2])<<8 | uint32(bs[3])
		return Time{SecIndex: v}, rest, nil
	}
	if t.Type != tlf.ListOf || t.Len != 2 {
		return Time{}, nil, tlfMismatch("Time")
	}
	tag, rest, err := ParseUint8(rest)
	if err != nil {
		return Time{}, nil, err
	}
	if tag != 1 {
		return Time{}, nil, ErrUnexpectedVariant
	}
	secs, rest, err := ParseUint32(rest)
	if err != nil {
		return Time{}, nil, err
	}
	return Time{SecIndex: secs}, rest, nil
}

// StatusWidth records which integer width a Status value was encoded with.
// SML leaves the meaning of status values unspecified; only the width is
// preserved.
type StatusWidth int

const (
	Status8 StatusWidth = iota
	Status16
	Status32
	Status64
)

type Status struct {
	Width StatusWidth
	Value uint64
}

func parseStatus(input []byte) (Status, []byte, error) {
	t, _, err := tlf.Decode(input)
	if err != nil {
		return Status{}, nil, err
	}
	switch t.Type {
	case tlf.Unsigned, tlf.Integer:
		switch t.Len {
		case 1:
			v, rest, err := ParseUint8(input)
			return Status{Status8, uint64(v)}, rest, err
		case 2:
			v, rest, err := ParseUint16(input)
			return Status{Status16, uint64(v)}, rest, err
		case 3, 4:
			v, rest, err := ParseUint32(input)
			return Status{Status32, uint64(v)}, rest, err
		default:
			v, rest, err := ParseUint64(input)
			return Status{Status64, v}, rest, err
		}
	default:
		return Status{}, nil, tlfMismatch("Status")
	}
}

// Unit is a DLMS unit code, see IEC 62056-62.
type Unit = uint8

// ListType is the tagged payload of a "list" value; SecIndex-only Time is
// the sole variant SML uses in practice.
type ListType struct {
	Time Time
}

func parseListType(input []byte) (ListType, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return ListType{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 2 {
		return ListType{}, nil, tlfMismatch("ListType")
	}
	tag, rest, err := ParseUint8(rest)
	if err != nil {
		return ListType{}, nil, err
	}
	if tag != 1 {
		return ListType{}, nil, ErrUnexpectedVariant
	}
	tm, rest, err := parseTime(rest)
	if err != nil {
		return ListType{}, nil, err
	}
	return ListType{Time: tm}, rest, nil
}

// ValueKind discriminates the Value union.
type ValueKind int

const (
	ValueBool ValueKind = iota
	ValueBytes
	ValueI8
	ValueI16
	ValueI32
	ValueI64
	ValueU8
	ValueU16
	ValueU32
	ValueU64
	ValueListKind
)

// Value is SML's untyped measurement value: exactly one of the fields below
// is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Bytes []byte
	I8    int8
	I16   int16
	I32   int32
	I64   int64
	U8    uint8
	U16   uint16
	U32   uint32
	U64   uint64
	List  ListType
}

func parseValue(input []byte) (Value, []byte, error) {
	t, _, err := tlf.Decode(input)
	if err != nil {
		return Value{}, nil, err
	}
	switch t.Type {
	case tlf.Boolean:
		v, rest, err := ParseBool(input)
		return Value{Kind: ValueBool, Bool: v}, rest, err
	case tlf.OctetString:
		v, rest, err := ParseOctetString(input)
		return Value{Kind: ValueBytes, Bytes: v}, rest, err
	case tlf.Integer:
		switch {
		case t.Len <= 1:
			v, rest, err := ParseInt8(input)
			return Value{Kind: ValueI8, I8: v}, rest, err
		case t.Len <= 2:
			v, rest, err := ParseInt16(input)
			return Value{Kind: ValueI16, I16: v}, rest, err
		case t.Len <= 4:
			v, rest, err := ParseInt32(input)
			return Value{Kind: ValueI32, I32: v}, rest, err
		default:
			v, rest, err := ParseInt64(input)
			return Value{Kind: ValueI64, I64: v}, rest, err
		}
	case tlf.Unsigned:
		switch {
		case t.Len <= 1:
			v, rest, err := ParseUint8(input)
			return Value{Kind: ValueU8, U8: v}, rest, err
		case t.Len <= 2:
			v, rest, err := ParseUint16(input)
			return Value{Kind: ValueU16, U16: v}, rest, err
		case t.Len <= 4:
			v, rest, err := ParseUint32(input)
			return Value{Kind: ValueU32, U32: v}, rest, err
		default:
			v, rest, err := ParseUint64(input)
			return Value{Kind: ValueU64, U64: v}, rest, err
		}
	case tlf.ListOf:
		if t.Len != 2 {
			return Value{}, nil, tlfMismatch("Value")
		}
		v, rest, err := parseListType(input)
		return Value{Kind: ValueListKind, List: v}, rest, err
	default:
		return Value{}, nil, tlfMismatch("Value")
	}
}

// Signature is an opaque signature byte string.
type Signature = []byte

// ListEntry is a single `SML_ListEntry`, one measurement inside a
// GetListResponse's value list.
type ListEntry struct {
	ObjName        []byte
	Status         *Status
	ValTime        *Time
	Unit           *Unit
	Scaler         *int8
	Value          Value
	ValueSignature Signature
}

func parseListEntry(input []byte) (ListEntry, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return ListEntry{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 7 {
		return ListEntry{}, nil, tlfMismatch("ListEntry")
	}
	objName, rest, err := ParseOctetString(rest)
	if err != nil {
		return ListEntry{}, nil, err
	}
	status, rest, err := ParseOptional(rest, parseStatus)
	if err != nil {
		return ListEntry{}, nil, err
	}
	valTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return ListEntry{}, nil, err
	}
	unit, rest, err := ParseOptional(rest, func(in []byte) (Unit, []byte, error) { return ParseUint8(in) })
	if err != nil {
		return ListEntry{}, nil, err
	}
	scaler, rest, err := ParseOptional(rest, ParseInt8)
	if err != nil {
		return ListEntry{}, nil, err
	}
	value, rest, err := parseValue(rest)
	if err != nil {
		return ListEntry{}, nil, err
	}
	valueSig, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return ListEntry{}, nil, err
	}
	var sig Signature
	if valueSig != nil {
		sig = *valueSig
	}
	return ListEntry{
		ObjName:        objName,
		Status:         status,
		ValTime:        valTime,
		Unit:           unit,
		Scaler:         scaler,
		Value:          value,
		ValueSignature: sig,
	}, rest, nil
}

// parseListOf parses exactly n elements of a ListOf-typed sequence with elem,
// the Go stand-in for the reference's derive-macro-generated per-type list
// parsers.
func parseListOf[T any](input []byte, n int, elem func([]byte) (T, []byte, error)) ([]T, []byte, error) {
	out := make([]T, 0, n)
	rest := input
	for i := 0; i < n; i++ {
		var v T
		var err error
		v, rest, err = elem(rest)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, v)
	}
	return out, rest, nil
}

// OpenResponse is the `SML_PublicOpen.Res` message.
type OpenResponse struct {
	Codepage    []byte
	ClientID    []byte
	ReqFileID   []byte
	ServerID    []byte
	RefTime     *Time
	SmlVersion  *uint8
}

func parseOpenResponse(input []byte) (OpenResponse, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 6 {
		return OpenResponse{}, nil, tlfMismatch("OpenResponse")
	}
	codepage, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	clientID, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	reqFileID, rest, err := ParseOctetString(rest)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	serverID, rest, err := ParseOctetString(rest)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	refTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	smlVersion, rest, err := ParseOptional(rest, ParseUint8)
	if err != nil {
		return OpenResponse{}, nil, err
	}
	var cp, cid []byte
	if codepage != nil {
		cp = *codepage
	}
	if clientID != nil {
		cid = *clientID
	}
	return OpenResponse{
		Codepage:   cp,
		ClientID:   cid,
		ReqFileID:  reqFileID,
		ServerID:   serverID,
		RefTime:    refTime,
		SmlVersion: smlVersion,
	}, rest, nil
}

// CloseResponse is the `SML_PublicClose.Res` message.
type CloseResponse struct {
	GlobalSignature Signature
}

func parseCloseResponse(input []byte) (CloseResponse, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return CloseResponse{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 1 {
		return CloseResponse{}, nil, tlfMismatch("CloseResponse")
	}
	sig, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return CloseResponse{}, nil, err
	}
	var s Signature
	if sig != nil {
		s = *sig
	}
	return CloseResponse{GlobalSignature: s}, rest, nil
}

// GetListResponse is the fully-materialized `SML_GetList.Res` message.
type GetListResponse struct {
	ClientID       []byte
	ServerID       []byte
	ListName       []byte
	ActSensorTime  *Time
	ValList        []ListEntry
	ListSignature  Signature
	ActGatewayTime *Time
}

func parseGetListResponse(input []byte) (GetListResponse, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 7 {
		return GetListResponse{}, nil, tlfMismatch("GetListResponse")
	}
	clientID, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	serverID, rest, err := ParseOctetString(rest)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	listName, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	actSensorTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	listTLF, listRest, err := tlf.Decode(rest)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	if listTLF.Type != tlf.ListOf {
		return GetListResponse{}, nil, tlfMismatch("GetListResponse.valList")
	}
	valList, rest, err := parseListOf(listRest, listTLF.Len, parseListEntry)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	listSig, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	actGatewayTime, rest, err := ParseOptional(rest, parseTime)
	if err != nil {
		return GetListResponse{}, nil, err
	}
	var cid, ln []byte
	if clientID != nil {
		cid = *clientID
	}
	if listName != nil {
		ln = *listName
	}
	var sig Signature
	if listSig != nil {
		sig = *listSig
	}
	return GetListResponse{
		ClientID:       cid,
		ServerID:       serverID,
		ListName:       ln,
		ActSensorTime:  actSensorTime,
		ValList:        valList,
		ListSignature:  sig,
		ActGatewayTime: actGatewayTime,
	}, rest, nil
}

// ProcParValue is a procedure-parameter value. Real-world devices rarely use
// it, and the reference implementation leaves it unimplemented; this port
// preserves that: any attempt to parse one fails with ErrNotSupported.
type ProcParValue struct{}

func parseProcParValue([]byte) (ProcParValue, []byte, error) {
	return ProcParValue{}, nil, ErrNotSupported
}

// UnsupportedTree stands in for a Tree's child_list, which this
// implementation never materializes (see Tree).
type UnsupportedTree struct{}

func parseUnsupportedTree([]byte) (UnsupportedTree, []byte, error) {
	return UnsupportedTree{}, nil, ErrNotSupported
}

// Tree is an `SML_Tree`: a named parameter that may carry a value and/or a
// list of child trees. Only the name is ever populated; Value and Children
// parse successfully solely when absent (Optional(None)) and otherwise fail
// with ErrNotSupported, matching the reference implementation's choice to
// not support nested procedure-parameter trees.
type Tree struct {
	ParameterName  []byte
	ParameterValue *ProcParValue
	ChildList      *UnsupportedTree
}

func parseTree(input []byte) (Tree, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return Tree{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 3 {
		return Tree{}, nil, tlfMismatch("Tree")
	}
	name, rest, err := ParseOctetString(rest)
	if err != nil {
		return Tree{}, nil, err
	}
	value, rest, err := ParseOptional(rest, parseProcParValue)
	if err != nil {
		return Tree{}, nil, err
	}
	children, rest, err := ParseOptional(rest, parseUnsupportedTree)
	if err != nil {
		return Tree{}, nil, err
	}
	return Tree{ParameterName: name, ParameterValue: value, ChildList: children}, rest, nil
}

// ApplicationSpecific is an application-defined attention number whose
// meaning is not standardized by SML.
type ApplicationSpecific []byte

// HintNumber classifies the "positive acknowledgement" range of attention
// numbers (0x81 81 C7 C7 FD xx).
type HintNumber struct {
	Kind     HintNumberKind
	Reserved []byte
}

type HintNumberKind int

const (
	HintPositive HintNumberKind = iota
	HintExecuteLater
	HintReserved
)

func hintNumberFrom(b []byte) HintNumber {
	switch {
	case bytes.Equal(b, []byte{0x81, 0x81, 0xC7, 0xC7, 0xFD, 0x00}):
		return HintNumber{Kind: HintPositive}
	case bytes.Equal(b, []byte{0x81, 0x81, 0xC7, 0xC7, 0xFD, 0x01}):
		return HintNumber{Kind: HintExecuteLater}
	default:
		return HintNumber{Kind: HintReserved, Reserved: b}
	}
}

// AttentionErrorCode enumerates the 22 standardized error attention numbers
// (0x81 81 C7 C7 FE 00 through 0x81 81 C7 C7 FE 15), plus a catch-all
// Reserved case for anything outside that table.
type AttentionErrorCode int

const (
	UnknownError AttentionErrorCode = iota
	UnknownSml
	InsufficientAuth
	DestAddressNotAvailable
	RequestNotAvailable
	DestinationAttributesNotDescribed
	TargetAttributesNotDescribed
	CommunicationWithMeasuringDisturbed
	RawDataCannotInterpreted
	DeliveredValueOutsideValueRange
	OrderNotExecuted
	ChecksumIncorrect
	BroadcastNotSupported
	UnexpectedSmlMessage
	UnknownObjectInProfile
	UnsupportedDataType
	OptionalElementNotSupported
	RequestedProfileNoSingleEntry
	EndLimitBeforeStartLimit
	NoEntriesInRequestedArea
	SmlFileWasEnded
	ProfileCannotBeOutputTemporarily
	AttentionErrorReserved
)

var attentionErrorCodes = map[byte]AttentionErrorCode{
	0x00: UnknownError,
	0x01: UnknownSml,
	0x02: InsufficientAuth,
	0x03: DestAddressNotAvailable,
	0x04: RequestNotAvailable,
	0x05: DestinationAttributesNotDescribed,
	0x06: TargetAttributesNotDescribed,
	0x07: CommunicationWithMeasuringDisturbed,
	0x08: RawDataCannotInterpreted,
	0x09: DeliveredValueOutsideValueRange,
	0x0A: OrderNotExecuted,
	0x0B: ChecksumIncorrect,
	0x0C: BroadcastNotSupported,
	0x0D: UnexpectedSmlMessage,
	0x0E: UnknownObjectInProfile,
	0x0F: UnsupportedDataType,
	0x10: OptionalElementNotSupported,
	0x11: RequestedProfileNoSingleEntry,
	0x12: EndLimitBeforeStartLimit,
	0x13: NoEntriesInRequestedArea,
	0x14: SmlFileWasEnded,
	0x15: ProfileCannotBeOutputTemporarily,
}

// AttentionError pairs a classified error code with the raw bytes it was
// decoded from, so Reserved codes remain round-trippable.
type AttentionError struct {
	Code AttentionErrorCode
	Raw  []byte
}

func attentionErrorCodeFrom(b []byte) AttentionError {
	if len(b) == 6 && b[0] == 0x81 && b[1] == 0x81 && b[2] == 0xC7 && b[3] == 0xC7 && b[4] == 0xFE {
		if code, ok := attentionErrorCodes[b[5]]; ok {
			return AttentionError{Code: code, Raw: b}
		}
	}
	return AttentionError{Code: AttentionErrorReserved, Raw: b}
}

// AttentionNumberKind discriminates the AttentionNumber union.
type AttentionNumberKind int

const (
	AttentionApplicationSpecific AttentionNumberKind = iota
	AttentionHint
	AttentionError_
)

// AttentionNumber is the classified form of an attention response's 6-byte
// number field: an application-specific code, a standardized hint, or a
// standardized error, chosen by closed-interval bytewise comparison against
// the three reserved 6-byte ranges.
type AttentionNumber struct {
	Kind                AttentionNumberKind
	ApplicationSpecific ApplicationSpecific
	Hint                HintNumber
	Error               AttentionError
}

var (
	lowerApplicationSpecific = []byte{0x81, 0x81, 0xC7, 0xC7, 0xE0, 0x00}
	upperApplicationSpecific = []byte{0x81, 0x81, 0xC7, 0xC7, 0xFC, 0xFF}
	lowerHintNumber          = []byte{0x81, 0x81, 0xC7, 0xC7, 0xFD, 0x00}
	upperHintNumber          = []byte{0x81, 0x81, 0xC7, 0xC7, 0xFD, 0xFF}
)

func attentionNumberFrom(b []byte) AttentionNumber {
	switch {
	case bytes.Compare(b, lowerApplicationSpecific) >= 0 && bytes.Compare(b, upperApplicationSpecific) <= 0:
		return AttentionNumber{Kind: AttentionApplicationSpecific, ApplicationSpecific: ApplicationSpecific(b)}
	case bytes.Compare(b, lowerHintNumber) >= 0 && bytes.Compare(b, upperHintNumber) <= 0:
		return AttentionNumber{Kind: AttentionHint, Hint: hintNumberFrom(b)}
	default:
		return AttentionNumber{Kind: AttentionError_, Error: attentionErrorCodeFrom(b)}
	}
}

// AttentionResponse is the `SML_Attention.Res` message, sent by a meter to
// report an out-of-band condition rather than answer a specific request.
// Not dispatched by the reference implementation's MessageBody (see
// parseMessageBody); this port adds the 0xFF01 tag.
type AttentionResponse struct {
	ServerID []byte
	Number   AttentionNumber
	Msg      []byte
	Details  *Tree
}

func parseAttentionResponse(input []byte) (AttentionResponse, []byte, error) {
	t, rest, err := tlf.Decode(input)
	if err != nil {
		return AttentionResponse{}, nil, err
	}
	if t.Type != tlf.ListOf || t.Len != 4 {
		return AttentionResponse{}, nil, tlfMismatch("AttentionResponse")
	}
	serverID, rest, err := ParseOctetString(rest)
	if err != nil {
		return AttentionResponse{}, nil, err
	}
	number, rest, err := ParseOctetString(rest)
	if err != nil {
		return AttentionResponse{}, nil, err
	}
	msg, rest, err := ParseOptional(rest, ParseOctetString)
	if err != nil {
		return AttentionResponse{}, nil, err
	}
	details, rest, err := ParseOptional(rest, parseTree)
	if err != nil {
		return AttentionResponse{}, nil, err
	}
	var m []byte
	if msg != nil {
		m = *msg
	}
	return AttentionResponse{
		ServerID: serverID,
		Number:   attentionNumberFrom(number),
		Msg:      m,
		Details:  details,
	}, rest, nil
}
