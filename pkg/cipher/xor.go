// Package cipher implements the payload decryption stages of xlog records.
package cipher

import "github.com/eunmann/xlog-decoder/pkg/xlog"

// xorBaseKey seeds every XOR key.
const xorBaseKey byte = 0xCC

// XORKey derives the single repeating key byte for a record. The two oldest kinds
// mix in the payload length, every other kind mixes in the sequence number.
func XORKey(h xlog.Header) byte {
	var k byte
	switch h.Kind.Magic {
	case xlog.MagicNoCompressStart, xlog.MagicCompressStart:
		k = byte(h.PayloadLength)
	default:
		k = byte(h.Sequence)
	}
	return xorBaseKey ^ k ^ byte(h.Kind.Magic)
}

// XOR writes src XOR key into dst and returns dst[:len(src)]. dst may alias src.
// Applying it twice with the same key restores the input.
func XOR(dst, src []byte, key byte) []byte {
	if cap(dst) < len(src) {
		dst = make([]byte, len(src))
	}
	dst = dst[:len(src)]
	for i, b := range src {
		dst[i] = b ^ key
	}
	return dst
}
