package cipher

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

func mustKind(t *testing.T, m xlog.Magic) xlog.Kind {
	t.Helper()
	k, ok := xlog.LookupKind(byte(m))
	if !ok {
		t.Fatalf("LookupKind(0x%02x) not found", byte(m))
	}
	return k
}

func TestXORKey(t *testing.T) {
	tests := []struct {
		name   string
		magic  xlog.Magic
		seq    uint16
		length uint32
		want   byte
	}{
		{"length keyed 0x03", xlog.MagicNoCompressStart, 0x77, 0x1234, 0xCC ^ 0x34 ^ 0x03},
		{"length keyed 0x04", xlog.MagicCompressStart, 0x77, 0xABCD, 0xCC ^ 0xCD ^ 0x04},
		{"sequence keyed 0x05", xlog.MagicCompressStart1, 0x0102, 0xFFFF, 0xCC ^ 0x02 ^ 0x05},
		{"sequence keyed 0x06", xlog.MagicNoCompressStart1, 0x00FE, 0x10, 0xCC ^ 0xFE ^ 0x06},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := xlog.Header{Kind: mustKind(t, tt.magic), Sequence: tt.seq, PayloadLength: tt.length}
			if got := XORKey(h); got != tt.want {
				t.Errorf("XORKey() = 0x%02x, want 0x%02x", got, tt.want)
			}
		})
	}
}

func TestXORSelfInverse(t *testing.T) {
	h := xlog.Header{Kind: mustKind(t, xlog.MagicNoCompressStart), PayloadLength: 0x1234}
	key := XORKey(h)
	if key != 0xFB {
		t.Fatalf("XORKey() = 0x%02x, want 0xfb", key)
	}

	plain := []byte("the quick brown fox \x00\xff jumps")
	once := XOR(nil, plain, key)
	if bytes.Equal(once, plain) {
		t.Fatal("XOR did not change the payload")
	}
	twice := XOR(nil, once, key)
	if !bytes.Equal(twice, plain) {
		t.Errorf("XOR twice = %q, want %q", twice, plain)
	}
}

func TestXORInPlace(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x02}
	out := XOR(buf, buf, 0x10)
	if &out[0] != &buf[0] {
		t.Error("XOR allocated although dst had capacity")
	}
	if !bytes.Equal(out, []byte{0x10, 0x11, 0x12}) {
		t.Errorf("XOR in place = %x", out)
	}
}

func TestTEAKnownVector(t *testing.T) {
	key, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	ct, _ := hex.DecodeString("818a34e68d3d31d5")

	tea, err := NewTEA(key)
	if err != nil {
		t.Fatalf("NewTEA: %v", err)
	}

	got := make([]byte, TEABlockSize)
	tea.DecryptBlock(got, ct)
	if string(got) != "xlogtea!" {
		t.Errorf("DecryptBlock = %q, want %q", got, "xlogtea!")
	}
}

func TestTEASumStartWraps(t *testing.T) {
	var sum uint32
	for range teaRounds {
		sum += teaDelta
	}
	if sum != teaSumStart {
		t.Errorf("teaSumStart = %#x, want %#x", uint32(teaSumStart), sum)
	}
}

func TestTEAPartialBlockPassthrough(t *testing.T) {
	key, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	ct, _ := hex.DecodeString("818a34e68d3d31d5")
	tail := []byte{0xde, 0xad, 0xbe}

	tea, err := NewTEA(key)
	if err != nil {
		t.Fatalf("NewTEA: %v", err)
	}

	got := tea.Decrypt(append(append([]byte{}, ct...), tail...))
	if string(got[:8]) != "xlogtea!" {
		t.Errorf("first block = %q, want %q", got[:8], "xlogtea!")
	}
	if !bytes.Equal(got[8:], tail) {
		t.Errorf("tail = %x, want %x", got[8:], tail)
	}
}

func TestNewTEABadKey(t *testing.T) {
	if _, err := NewTEA(make([]byte, 15)); err == nil {
		t.Error("NewTEA(15 bytes) should error")
	}
}
