package sml

import (
	"bytes"
	"testing"

	"github.com/kstaniek/go-sml-decoder/internal/smlbuf"
	"github.com/kstaniek/go-sml-decoder/internal/transport"
)

func TestParseUintPrimitives(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"u8", []byte{0x62, 0x05}, 5},
		{"u16", []byte{0x63, 0x01, 0x01}, 257},
		{"u32", []byte{0x65, 0x0, 0x0, 0x0, 0x1}, 1},
		{"u64", []byte{0x69, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x1}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, rest, err := parseUint(c.in, 8)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != c.want || len(rest) != 0 {
				t.Fatalf("got (%d, %d remaining), want %d", v, len(rest), c.want)
			}
		})
	}
}

func TestParseIntPrimitives(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want int64
	}{
		{"i8", []byte{0x52, 0xFF}, -1},
		{"i16", []byte{0x53, 0xEC, 0x78}, -5000},
		{"i32", []byte{0x55, 0xFF, 0xFF, 0xEC, 0x78}, -5000},
		{"i64", []byte{0x59, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, rest, err := parseInt(c.in, 8)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != c.want || len(rest) != 0 {
				t.Fatalf("got (%d, %d remaining), want %d", v, len(rest), c.want)
			}
		})
	}
}

func TestParseFewerBytesThanSize(t *testing.T) {
	v32, _, err := ParseUint32([]byte{0x64, 0x01, 0x00, 0x01})
	if err != nil || v32 != 65537 {
		t.Fatalf("got (%d, %v), want 65537", v32, err)
	}
	v8, _, err := ParseInt16([]byte{0x52, 0x01})
	if err != nil || v8 != 1 {
		t.Fatalf("got (%d, %v), want 1", v8, err)
	}
}

func TestParseOptionalSkip(t *testing.T) {
	v, rest, err := ParseOptional([]byte{0x01}, ParseUint8)
	if err != nil || v != nil || len(rest) != 0 {
		t.Fatalf("got (%v, %d remaining, %v), want (nil, 0, nil)", v, len(rest), err)
	}

	v2, rest, err := ParseOptional([]byte{0x62, 0x0F}, ParseUint8)
	if err != nil || v2 == nil || *v2 != 15 {
		t.Fatalf("got (%v, %v), want Some(15)", v2, err)
	}
	_ = rest
}

func TestParseBoolean(t *testing.T) {
	v, _, err := ParseBool([]byte{0x42, 0x00})
	if err != nil || v != false {
		t.Fatalf("got (%v, %v), want false", v, err)
	}
	for i := 1; i <= 0xFF; i++ {
		v, _, err := ParseBool([]byte{0x42, byte(i)})
		if err != nil || v != true {
			t.Fatalf("byte %#x: got (%v, %v), want true", i, v, err)
		}
	}
}

func TestParseOctetStr(t *testing.T) {
	v, _, err := ParseOctetString([]byte{0x06, 0x48, 0x65, 0x6C, 0x6C, 0x6F})
	if err != nil || !bytes.Equal(v, []byte("Hello")) {
		t.Fatalf("got (%q, %v), want Hello", v, err)
	}

	long := append([]byte{0x81, 0x0C}, []byte("qwertzuiopasdfghjklyxcvbnm")...)
	v2, _, err := ParseOctetString(long)
	if err != nil || !bytes.Equal(v2, []byte("qwertzuiopasdfghjklyxcvbnm")) {
		t.Fatalf("got (%q, %v)", v2, err)
	}

	v3, rest, err := ParseOptional([]byte{0x01}, ParseOctetString)
	if err != nil || v3 != nil || len(rest) != 0 {
		t.Fatalf("got (%v, %v), want None", v3, err)
	}
}

func TestAttentionNumberClassification(t *testing.T) {
	order := attentionNumberFrom([]byte{0x81, 0x81, 0xC7, 0xC7, 0xFE, 0x0A})
	if order.Kind != AttentionError_ || order.Error.Code != OrderNotExecuted {
		t.Fatalf("got %#v, want OrderNotExecuted", order)
	}

	positive := attentionNumberFrom([]byte{0x81, 0x81, 0xC7, 0xC7, 0xFD, 0x00})
	if positive.Kind != AttentionHint || positive.Hint.Kind != HintPositive {
		t.Fatalf("got %#v, want HintPositive", positive)
	}

	appSpec := attentionNumberFrom([]byte{0x81, 0x81, 0xC7, 0xC7, 0xE5, 0x00})
	if appSpec.Kind != AttentionApplicationSpecific {
		t.Fatalf("got %#v, want ApplicationSpecific", appSpec)
	}

	reserved := attentionNumberFrom([]byte{0x81, 0x81, 0xC7, 0xC7, 0xFE, 0xFF})
	if reserved.Kind != AttentionError_ || reserved.Error.Code != AttentionErrorReserved {
		t.Fatalf("got %#v, want Reserved error code", reserved)
	}
}

func TestTreeAndProcParValueNotSupported(t *testing.T) {
	// parameter_value and child_list present (not optional-skip) must fail
	// with ErrNotSupported.
	_, _, err := ParseOptional([]byte{0x02}, parseProcParValue)
	if err != ErrNotSupported {
		t.Fatalf("present ProcParValue: got %v, want ErrNotSupported", err)
	}
	_, _, err = ParseOptional([]byte{0x02}, parseUnsupportedTree)
	if err != ErrNotSupported {
		t.Fatalf("present child_list: got %v, want ErrNotSupported", err)
	}
}

func decodeFrame(t *testing.T, wireHex []byte) [][]byte {
	t.Helper()
	d := transport.NewDecoder(smlbuf.NewArray(4096))
	var frames [][]byte
	for _, b := range wireHex {
		frame, err := d.PushByte(b)
		if err != nil {
			t.Fatalf("transport decode error: %v", err)
		}
		if frame != nil {
			cp := append([]byte(nil), frame...)
			frames = append(frames, cp)
		}
	}
	return frames
}

// TestAttentionResponseOrderNotExecuted reuses a real SML transmission: an
// OpenResponse, an AttentionResponse reporting OrderNotExecuted, and a
// CloseResponse.
func TestAttentionResponseOrderNotExecuted(t *testing.T) {
	wire := []byte{
		0x1B, 0x1B, 0x1B, 0x1B, 0x01, 0x01, 0x01, 0x01, 0x76, 0x02, 0x01, 0x62, 0x00, 0x62,
		0x00, 0x72, 0x63, 0x01, 0x01, 0x76, 0x01, 0x07, 0x43, 0x4C, 0x4E, 0x49, 0x44, 0x31,
		0x0A, 0x51, 0x00, 0x00, 0x00, 0x00, 0x66, 0x9F, 0x41, 0xA7, 0x0B, 0x0A, 0x01, 0x4C,
		0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6, 0x26, 0x72, 0x62, 0x01, 0x65, 0x00, 0x08, 0x5A,
		0xE0, 0x01, 0x63, 0x31, 0x66, 0x00, 0x76, 0x02, 0x02, 0x62, 0x00, 0x62, 0x00, 0x72,
		0x63, 0xFF, 0x01, 0x74, 0x0B, 0x0A, 0x01, 0x4C, 0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6,
		0x26, 0x07, 0x81, 0x81, 0xC7, 0xC7, 0xFE, 0x0A, 0x01, 0x73, 0x0A, 0x01, 0x00, 0x5E,
		0x31, 0x00, 0x07, 0x00, 0x01, 0x00, 0x01, 0x01, 0x63, 0x5C, 0xF4, 0x00, 0x76, 0x02,
		0x03, 0x62, 0x00, 0x62, 0x00, 0x72, 0x63, 0x02, 0x01, 0x71, 0x01, 0x63, 0xD5, 0x35,
		0x00, 0x00, 0x1B, 0x1B, 0x1B, 0x1B, 0x1A, 0x01, 0xC4, 0x75,
	}
	frames := decodeFrame(t, wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	p := NewParser(frames[0])

	ev, err := p.Next()
	if err != nil || ev.Kind != EventMessageStart {
		t.Fatalf("msg 1: got (%#v, %v)", ev, err)
	}
	open := ev.MessageStart.MessageBody.OpenResponse
	if !bytes.Equal(open.ClientID, []byte("CLNID1")) {
		t.Fatalf("client id = %q", open.ClientID)
	}
	if open.RefTime == nil || open.RefTime.SecIndex != 547552 {
		t.Fatalf("ref_time = %#v, want SecIndex(547552)", open.RefTime)
	}

	ev, err = p.Next()
	if err != nil || ev.Kind != EventMessageStart || ev.MessageStart.MessageBody.Kind != StreamBodyAttentionResponse {
		t.Fatalf("msg 2: got (%#v, %v)", ev, err)
	}
	att := ev.MessageStart.MessageBody.AttentionResponse
	wantServerID := []byte{10, 1, 76, 71, 90, 0, 3, 169, 198, 38}
	if !bytes.Equal(att.ServerID, wantServerID) {
		t.Fatalf("server_id = %v, want %v", att.ServerID, wantServerID)
	}
	if att.Number.Kind != AttentionError_ || att.Number.Error.Code != OrderNotExecuted {
		t.Fatalf("number = %#v, want OrderNotExecuted", att.Number)
	}
	if att.Msg != nil {
		t.Fatalf("msg = %v, want nil", att.Msg)
	}
	wantParamName := []byte{0x01, 0x00, 0x5E, 0x31, 0x00, 0x07, 0x00, 0x01, 0x00}
	if att.Details == nil || !bytes.Equal(att.Details.ParameterName, wantParamName) {
		t.Fatalf("details = %#v, want parameter_name %v", att.Details, wantParamName)
	}

	ev, err = p.Next()
	if err != nil || ev.Kind != EventMessageStart || ev.MessageStart.MessageBody.Kind != StreamBodyCloseResponse {
		t.Fatalf("msg 3: got (%#v, %v)", ev, err)
	}
	if ev.MessageStart.MessageBody.CloseResponse.GlobalSignature != nil {
		t.Fatalf("global_signature present, want nil")
	}
}

// TestAttentionResponsePositive mirrors the sibling "positive acknowledgement"
// hint number vector.
func TestAttentionResponsePositive(t *testing.T) {
	wire := []byte{
		0x1B, 0x1B, 0x1B, 0x1B, 0x01, 0x01, 0x01, 0x01, 0x76, 0x02, 0x01, 0x62, 0x00, 0x62,
		0x00, 0x72, 0x63, 0x01, 0x01, 0x76, 0x01, 0x07, 0x43, 0x4C, 0x4E, 0x49, 0x44, 0x31,
		0x0A, 0x51, 0x00, 0x00, 0x00, 0x00, 0x66, 0x9F, 0x64, 0x3C, 0x0B, 0x0A, 0x01, 0x4C,
		0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6, 0x26, 0x72, 0x62, 0x01, 0x65, 0x00, 0x08, 0x7D,
		0x56, 0x01, 0x63, 0xC2, 0xF2, 0x00, 0x76, 0x02, 0x02, 0x62, 0x00, 0x62, 0x00, 0x72,
		0x63, 0xFF, 0x01, 0x74, 0x0B, 0x0A, 0x01, 0x4C, 0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6,
		0x26, 0x07, 0x81, 0x81, 0xC7, 0xC7, 0xFD, 0x00, 0x01, 0x73, 0x0A, 0x01, 0x00, 0x5E,
		0x31, 0x00, 0x07, 0x00, 0x01, 0x00, 0x01, 0x01, 0x63, 0x5B, 0xAF, 0x00, 0x76, 0x02,
		0x03, 0x62, 0x00, 0x62, 0x00, 0x72, 0x63, 0x02, 0x01, 0x71, 0x01, 0x63, 0xD5, 0x35,
		0x00, 0x00, 0x1B, 0x1B, 0x1B, 0x1B, 0x1A, 0x01, 0xAC, 0x0C,
	}
	frames := decodeFrame(t, wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	p := NewParser(frames[0])
	_, err := p.Next() // OpenResponse
	if err != nil {
		t.Fatalf("msg 1: %v", err)
	}
	ev, err := p.Next()
	if err != nil {
		t.Fatalf("msg 2: %v", err)
	}
	att := ev.MessageStart.MessageBody.AttentionResponse
	if att.Number.Kind != AttentionHint || att.Number.Hint.Kind != HintPositive {
		t.Fatalf("number = %#v, want HintPositive", att.Number)
	}

	_, err = p.Next() // CloseResponse
	if err != nil {
		t.Fatalf("msg 3: %v", err)
	}
	if _, err := p.Next(); err == nil {
		t.Fatalf("expected io.EOF after all messages consumed")
	}
}

// TestParseFileMatchesStreaming checks that the materialized parser agrees
// with the streaming parser on the same frame.
func TestParseFileMatchesStreaming(t *testing.T) {
	wire := []byte{
		0x1B, 0x1B, 0x1B, 0x1B, 0x01, 0x01, 0x01, 0x01, 0x76, 0x02, 0x01, 0x62, 0x00, 0x62,
		0x00, 0x72, 0x63, 0x01, 0x01, 0x76, 0x01, 0x07, 0x43, 0x4C, 0x4E, 0x49, 0x44, 0x31,
		0x0A, 0x51, 0x00, 0x00, 0x00, 0x00, 0x66, 0x9F, 0x41, 0xA7, 0x0B, 0x0A, 0x01, 0x4C,
		0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6, 0x26, 0x72, 0x62, 0x01, 0x65, 0x00, 0x08, 0x5A,
		0xE0, 0x01, 0x63, 0x31, 0x66, 0x00, 0x76, 0x02, 0x02, 0x62, 0x00, 0x62, 0x00, 0x72,
		0x63, 0xFF, 0x01, 0x74, 0x0B, 0x0A, 0x01, 0x4C, 0x47, 0x5A, 0x00, 0x03, 0xA9, 0xC6,
		0x26, 0x07, 0x81, 0x81, 0xC7, 0xC7, 0xFE, 0x0A, 0x01, 0x73, 0x0A, 0x01, 0x00, 0x5E,
		0x31, 0x00, 0x07, 0x00, 0x01, 0x00, 0x01, 0x01, 0x63, 0x5C, 0xF4, 0x00, 0x76, 0x02,
		0x03, 0x62, 0x00, 0x62, 0x00, 0x72, 0x63, 0x02, 0x01, 0x71, 0x01, 0x63, 0xD5, 0x35,
		0x00, 0x00, 0x1B, 0x1B, 0x1B, 0x1B, 0x1A, 0x01, 0xC4, 0x75,
	}
	frames := decodeFrame(t, wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	file, err := ParseFile(frames[0])
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(file.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(file.Messages))
	}
	if file.Messages[0].MessageBody.Kind != BodyOpenResponse {
		t.Fatalf("message 0 kind = %v, want BodyOpenResponse", file.Messages[0].MessageBody.Kind)
	}
	if file.Messages[1].MessageBody.Kind != BodyAttentionResponse {
		t.Fatalf("message 1 kind = %v, want BodyAttentionResponse", file.Messages[1].MessageBody.Kind)
	}
	att := file.Messages[1].MessageBody.AttentionResponse
	if att.Number.Kind != AttentionError_ || att.Number.Error.Code != OrderNotExecuted {
		t.Fatalf("attention number = %#v, want OrderNotExecuted", att.Number)
	}
	if file.Messages[2].MessageBody.Kind != BodyCloseResponse {
		t.Fatalf("message 2 kind = %v, want BodyCloseResponse", file.Messages[2].MessageBody.Kind)
	}

	p := NewParser(frames[0])
	for i, msg := range file.Messages {
		ev, err := p.Next()
		if err != nil || ev.Kind != EventMessageStart {
			t.Fatalf("streaming msg %d: got (%#v, %v)", i, ev, err)
		}
		if !bytes.Equal(ev.MessageStart.TransactionID, msg.TransactionID) ||
			int(ev.MessageStart.MessageBody.Kind) != int(msg.MessageBody.Kind) {
			t.Fatalf("streaming msg %d = %#v, materialized = %#v", i, ev.MessageStart, msg)
		}
	}
}
