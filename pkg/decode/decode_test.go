package decode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/eunmann/xlog-decoder/pkg/benchutil"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// filledKey keeps header key bytes away from zero so that a resync cannot
// mistake a magic-looking byte followed by zeros for an empty record.
var filledKey = bytes.Repeat([]byte{0xAA}, 64)

func plainRecord(seq uint16, text string) []byte {
	return benchutil.Frame(xlog.MagicNoCompressNoCryptStart, seq, 0, 0, filledKey, []byte(text))
}

func mustDecode(t *testing.T, buf []byte, opts Options) *Result {
	t.Helper()
	res, err := Decode(context.Background(), buf, opts)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return res
}

func TestDecodeConcatenatesPayloads(t *testing.T) {
	buf := benchutil.Concat(plainRecord(1, "hello "), plainRecord(2, "world"))

	res := mustDecode(t, buf, Options{})
	if got := string(res.Output); got != "hello world" {
		t.Errorf("Output = %q, want %q", got, "hello world")
	}
	if res.Stats.Records != 2 {
		t.Errorf("Records = %d, want 2", res.Stats.Records)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %+v", res.Diagnostics)
	}
	if res.Stats.BytesIn != int64(len(buf)) || res.Stats.BytesOut != 11 {
		t.Errorf("BytesIn/BytesOut = %d/%d", res.Stats.BytesIn, res.Stats.BytesOut)
	}
}

func TestDecodeSingleRecord(t *testing.T) {
	res := mustDecode(t, plainRecord(1, "only"), Options{})
	if got := string(res.Output); got != "only" {
		t.Errorf("Output = %q, want %q", got, "only")
	}
}

func TestDecodeSequenceGap(t *testing.T) {
	buf := benchutil.Concat(plainRecord(5, "a"), plainRecord(8, "b"))

	res := mustDecode(t, buf, Options{})
	want := "a[F] Log seq:6-7 is missing\nb"
	if got := string(res.Output); got != want {
		t.Errorf("Output = %q, want %q", got, want)
	}
	if res.Stats.SequenceGaps != 1 || res.Stats.MissingSequences != 2 {
		t.Errorf("gaps = %d, missing = %d, want 1, 2", res.Stats.SequenceGaps, res.Stats.MissingSequences)
	}
	d := res.Diagnostics[0]
	if d.Kind != DiagSequenceGap || d.From != 6 || d.To != 7 {
		t.Errorf("diagnostic = %+v", d)
	}
}

func TestDecodeSequenceRestartsNeverWarn(t *testing.T) {
	tests := []struct {
		name string
		seqs []uint16
	}{
		{"zero keeps last", []uint16{5, 0, 6}},
		{"one restarts", []uint16{5, 1, 2}},
		{"zeros only", []uint16{0, 0, 0}},
		{"wraps", []uint16{65535, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parts [][]byte
			for _, s := range tt.seqs {
				parts = append(parts, plainRecord(s, "x"))
			}
			res := mustDecode(t, benchutil.Concat(parts...), Options{})
			if len(res.Diagnostics) != 0 {
				t.Errorf("unexpected diagnostics: %+v", res.Diagnostics)
			}
			if got := string(res.Output); got != strings.Repeat("x", len(tt.seqs)) {
				t.Errorf("Output = %q", got)
			}
		})
	}
}

func TestDecodeResyncsAfterCorruptRecord(t *testing.T) {
	r1 := plainRecord(16, "first line\n")
	r2 := plainRecord(17, "second line\n")
	r3 := plainRecord(18, "broken line\n")
	r4 := plainRecord(19, "fourth line\n")
	r3[len(r3)-1] = 0x01

	res := mustDecode(t, benchutil.Concat(r1, r2, r3, r4), Options{})

	want := "first line\nsecond line\n" +
		"[F] Decode error at offset 171, skipped 86 bytes\n" +
		"[F] Log seq:18-18 is missing\n" +
		"fourth line\n"
	if got := string(res.Output); got != want {
		t.Errorf("Output =\n%q\nwant\n%q", got, want)
	}
	if n := strings.Count(string(res.Output), "Decode error"); n != 1 {
		t.Errorf("decode error notices = %d, want 1", n)
	}
	if res.Stats.Resyncs != 1 || res.Stats.SkippedBytes != 86 || res.Stats.Records != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestDecodeInsertedGarbageByte(t *testing.T) {
	r1 := plainRecord(1, "one\n")
	r2 := plainRecord(2, "two\n")
	r3 := plainRecord(3, "three\n")
	buf := benchutil.Concat(r1, r2, []byte{0xFF}, r3)

	res := mustDecode(t, buf, Options{})
	want := "one\ntwo\n[F] Decode error at offset 156, skipped 1 bytes\nthree\n"
	if got := string(res.Output); got != want {
		t.Errorf("Output = %q, want %q", got, want)
	}
}

func TestDecodeTrailingGarbageEndsQuietly(t *testing.T) {
	buf := benchutil.Concat(plainRecord(1, "a"), plainRecord(2, "b"), []byte("trailing junk"))

	res := mustDecode(t, buf, Options{})
	if got := string(res.Output); got != "ab" {
		t.Errorf("Output = %q, want %q", got, "ab")
	}
	if res.Stats.SkippedBytes != int64(len("trailing junk")) || res.Stats.Resyncs != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestDecodeInvalidFormat(t *testing.T) {
	for _, buf := range [][]byte{nil, []byte("plain text, no records here")} {
		_, err := Decode(context.Background(), buf, Options{})
		if !errors.Is(err, xlog.ErrInvalidFormat) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidFormat", buf, err)
		}
	}
}

func TestDecodeGeneratedKinds(t *testing.T) {
	cfg := benchutil.DefaultConfig(60)
	cfg.LeadingGarbage = 23
	f, err := benchutil.NewGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	res := mustDecode(t, f.Data, Options{})
	if !bytes.Equal(res.Output, f.Plain) {
		t.Fatalf("Output differs from generated plaintext (%d vs %d bytes)", len(res.Output), len(f.Plain))
	}
	if res.Start != 23 {
		t.Errorf("Start = %d, want 23", res.Start)
	}
	if res.Stats.Records != 60 || len(res.Diagnostics) != 0 {
		t.Errorf("stats = %+v, diagnostics = %d", res.Stats, len(res.Diagnostics))
	}
}

func TestDecodeSegmentedRecord(t *testing.T) {
	text := []byte(strings.Repeat("segmented payload line\n", 400))
	rec := benchutil.MustEncodeRecord(benchutil.RecordSpec{
		Magic:       xlog.MagicCompressStart1,
		Sequence:    1,
		Plain:       text,
		SegmentSize: 16,
	})

	res := mustDecode(t, rec, Options{})
	if !bytes.Equal(res.Output, text) {
		t.Errorf("Output mismatch: %d bytes, want %d", len(res.Output), len(text))
	}
}

func TestDecodeTEA(t *testing.T) {
	key := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	cfg := benchutil.DefaultConfig(4)
	cfg.Magics = []xlog.Magic{xlog.MagicCompressStart2}
	cfg.TEAKey = key
	f, err := benchutil.NewGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	t.Run("no key", func(t *testing.T) {
		_, err := Decode(context.Background(), f.Data, Options{})
		if !errors.Is(err, xlog.ErrDecryptionFailed) {
			t.Fatalf("error = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("session key", func(t *testing.T) {
		res := mustDecode(t, f.Data, Options{
			SessionKey: func(xlog.Header) ([]byte, error) { return key, nil },
		})
		if !bytes.Equal(res.Output, f.Plain) {
			t.Error("Output differs from generated plaintext")
		}
	})

	t.Run("short key", func(t *testing.T) {
		_, err := Decode(context.Background(), f.Data, Options{
			SessionKey: func(xlog.Header) ([]byte, error) { return key[:8], nil },
		})
		if !errors.Is(err, xlog.ErrDecryptionFailed) {
			t.Fatalf("error = %v, want ErrDecryptionFailed", err)
		}
	})
}

func TestDecodePayloadFailureIsFatal(t *testing.T) {
	bad := benchutil.Frame(xlog.MagicCompressNoCryptStart, 2, 0, 0, filledKey, []byte{0xFF, 0xFF, 0xFF})
	buf := benchutil.Concat(plainRecord(1, "ok"), bad)

	res, err := Decode(context.Background(), buf, Options{})
	if !errors.Is(err, xlog.ErrDecompressionFailed) {
		t.Fatalf("error = %v, want ErrDecompressionFailed", err)
	}
	if res != nil {
		t.Error("expected no result on payload failure")
	}
}

func TestDecodeAbort(t *testing.T) {
	buf := benchutil.Concat(plainRecord(1, "hello "), plainRecord(2, "world"), plainRecord(3, "!"))

	polls := 0
	res := mustDecode(t, buf, Options{Abort: func() bool {
		polls++
		return polls > 2
	}})
	if !res.Aborted {
		t.Fatal("expected Aborted")
	}
	if got := string(res.Output); got != "hello world" {
		t.Errorf("Output = %q, want %q", got, "hello world")
	}
}

func TestDecodeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Decode(ctx, plainRecord(1, "never"), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !res.Aborted || len(res.Output) != 0 {
		t.Errorf("Aborted = %v, Output = %q", res.Aborted, res.Output)
	}
}

func TestDecodeProgress(t *testing.T) {
	buf := benchutil.Concat(plainRecord(1, "a"), plainRecord(2, "b"), plainRecord(3, "c"))

	var calls [][2]int
	mustDecode(t, buf, Options{
		ProgressStep: 1,
		Progress: func(processed, total int) {
			calls = append(calls, [2]int{processed, total})
		},
	})

	if len(calls) < 2 {
		t.Fatalf("progress calls = %d, want at least 2", len(calls))
	}
	last := calls[len(calls)-1]
	if last[0] != len(buf) || last[1] != len(buf) {
		t.Errorf("final progress = %v, want [%d %d]", last, len(buf), len(buf))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i][0] < calls[i-1][0] {
			t.Errorf("progress went backwards: %v", calls)
		}
	}
}

func TestExtractUID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"[I] login _uid=12345 ok _uid=9", "12345", true},
		{"no uid here", "", false},
		{"_uid=abc", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractUID([]byte(tt.in))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExtractUID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
