package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/kstaniek/go-sml-decoder/internal/smlbuf"
)

func TestEncodeAndRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		encoded string
	}{
		{"basic", "12345678", "1b1b1b1b 01010101 12345678 1b1b1b1b 1a00b87b"},
		{"empty", "", "1b1b1b1b 01010101 1b1b1b1b 1a00c6e5"},
		{"padding", "123456", "1b1b1b1b 01010101 12345600 1b1b1b1b 1a0191a5"},
		{"escape_in_user_data", "121b1b1b1b", "1b1b1b1b 01010101 12 1b1b1b1b 1b1b1b1b 000000 1b1b1b1b 1a03be25"},
		{"almost_escape_in_user_data", "121b1b1bFF", "1b1b1b1b 01010101 12 1b1b1bFF 000000 1b1b1b1b 1a0324d9"},
		{"ending_with_1b_no_padding", "12345678 12341b1b", "1b1b1b1b 01010101 12345678 12341b1b 1b1b1b1b 1a001ac5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := hexBytes(t, c.payload)
			want := hexBytes(t, c.encoded)

			buf := smlbuf.NewGrowable(0)
			if err := Encode(payload, buf); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), want) {
				t.Fatalf("Encode() = %x, want %x", buf.Bytes(), want)
			}

			se := NewStreamEncoder(bytes.NewReader(payload))
			got, err := io.ReadAll(se)
			if err != nil {
				t.Fatalf("StreamEncoder read: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("StreamEncoder = %x, want %x", got, want)
			}

			decoded := decodeAll(want, 1024)
			if len(decoded) != 1 {
				t.Fatalf("decode(encoded) produced %d results, want 1: %#v", len(decoded), decoded)
			}
			wantFrame(t, decoded[0], payload)
		})
	}
}
