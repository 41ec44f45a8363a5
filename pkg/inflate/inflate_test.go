package inflate

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// helloBlob is "hello xlog\n" compressed with zlib at wbits=-15.
const helloBlob = "cb48cdc9c957a8c8c94fe70200"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	return b
}

func TestRawKnownBlob(t *testing.T) {
	got, err := Raw(mustHex(t, helloBlob))
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if string(got) != "hello xlog\n" {
		t.Errorf("Raw = %q, want %q", got, "hello xlog\n")
	}
}

func TestRawLargeOutput(t *testing.T) {
	plain := []byte(strings.Repeat("[I][2024-01-02 +8.0 10:11:12.123][1, 2][main] line\n", 20000))

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Write(plain)
	w.Close()

	got, err := Raw(buf.Bytes())
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Raw returned %d bytes, want %d", len(got), len(plain))
	}
}

func TestRawFailures(t *testing.T) {
	blob := mustHex(t, helloBlob)
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"truncated", blob[:6]},
		{"reserved block type", []byte{0xff, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Raw(tt.in)
			if !errors.Is(err, xlog.ErrDecompressionFailed) {
				t.Fatalf("Raw error = %v, want ErrDecompressionFailed", err)
			}
			if got != nil {
				t.Errorf("Raw returned partial output %q", got)
			}
		})
	}
}

func TestRawPoolReuseAfterError(t *testing.T) {
	if _, err := Raw([]byte{0xff}); err == nil {
		t.Fatal("expected error")
	}
	got, err := Raw(mustHex(t, helloBlob))
	if err != nil {
		t.Fatalf("Raw after error: %v", err)
	}
	if string(got) != "hello xlog\n" {
		t.Errorf("Raw = %q", got)
	}
}

func TestReassemble(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"two chunks", []byte("\x03\x00abc\x02\x00xy"), "abcxy"},
		{"empty", nil, ""},
		{"lone byte", []byte{0x03}, ""},
		{"short chunk stops", []byte("\x03\x00abc\x05\x00xy"), "abc"},
		{"trailing prefix byte", []byte("\x01\x00a\x09"), "a"},
		{"zero length chunk", []byte("\x00\x00\x01\x00z"), "z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reassemble(tt.in); string(got) != tt.want {
				t.Errorf("Reassemble = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSegmented(t *testing.T) {
	// "abcxy" as raw deflate, split into a 3-byte and a 4-byte segment.
	blob := mustHex(t, "4b4c4aaea80400")
	payload := append([]byte{0x03, 0x00}, blob[:3]...)
	payload = append(payload, 0x04, 0x00)
	payload = append(payload, blob[3:]...)

	got, err := Segmented(payload)
	if err != nil {
		t.Fatalf("Segmented: %v", err)
	}
	if string(got) != "abcxy" {
		t.Errorf("Segmented = %q, want %q", got, "abcxy")
	}
}

func TestSegmentedTruncatedStream(t *testing.T) {
	blob := mustHex(t, "4b4c4aaea80400")
	// The second segment claims more bytes than remain, so only a prefix of the
	// deflate stream survives reassembly.
	payload := append([]byte{0x03, 0x00}, blob[:3]...)
	payload = append(payload, 0x09, 0x00)
	payload = append(payload, blob[3:]...)

	if _, err := Segmented(payload); !errors.Is(err, xlog.ErrDecompressionFailed) {
		t.Errorf("Segmented error = %v, want ErrDecompressionFailed", err)
	}
}
