package benchutil

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/flate"

	"github.com/eunmann/xlog-decoder/pkg/cipher"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// DefaultSegmentSize is the chunk size used when a RecordSpec leaves SegmentSize unset.
const DefaultSegmentSize = 4096

// RecordSpec describes one synthetic record in terms of its plaintext.
type RecordSpec struct {
	Magic     xlog.Magic
	Sequence  uint16
	BeginHour uint8
	EndHour   uint8
	Plain     []byte
	// CryptKey fills the header key field. Missing bytes are zero.
	CryptKey []byte
	// TEAKey is required for kinds using the TEA cipher.
	TEAKey []byte
	// SegmentSize is the chunk size for segmented kinds.
	SegmentSize int
}

// EncodeRecord compresses and encrypts Plain as the kind requires and frames the
// result as a complete record.
func EncodeRecord(spec RecordSpec) ([]byte, error) {
	kind, ok := xlog.LookupKind(byte(spec.Magic))
	if !ok {
		return nil, fmt.Errorf("encode record: %w", &xlog.UnknownMagicError{Byte: byte(spec.Magic)})
	}

	payload := spec.Plain
	if kind.Compressed {
		payload = RawDeflate(payload)
		if kind.Segmented {
			size := spec.SegmentSize
			if size <= 0 {
				size = DefaultSegmentSize
			}
			payload = Segment(payload, size)
		}
	}

	if kind.Decrypt {
		switch kind.Cipher {
		case xlog.CipherXOR:
			h := xlog.Header{Kind: kind, Sequence: spec.Sequence, PayloadLength: uint32(len(payload))}
			payload = cipher.XOR(nil, payload, cipher.XORKey(h))
		case xlog.CipherTEA:
			if len(spec.TEAKey) != cipher.TEAKeySize {
				return nil, fmt.Errorf("encode record: %s needs a %d byte TEA key", kind, cipher.TEAKeySize)
			}
			payload = EncryptTEA(spec.TEAKey, payload)
		}
	}

	return Frame(spec.Magic, spec.Sequence, spec.BeginHour, spec.EndHour, spec.CryptKey, payload), nil
}

// MustEncodeRecord is EncodeRecord for fixtures that cannot fail.
func MustEncodeRecord(spec RecordSpec) []byte {
	b, err := EncodeRecord(spec)
	if err != nil {
		panic(err)
	}
	return b
}

// Frame lays out a record around an already transformed payload. An unknown magic
// gets a 4-byte key field so corrupt fixtures can still be built.
func Frame(magic xlog.Magic, seq uint16, beginHour, endHour uint8, cryptKey, payload []byte) []byte {
	keyBytes := 4
	if kind, ok := xlog.LookupKind(byte(magic)); ok {
		keyBytes = kind.CryptKeyBytes
	}
	headerLen := 9 + keyBytes

	buf := make([]byte, headerLen+len(payload)+1)
	buf[0] = byte(magic)
	binary.LittleEndian.PutUint16(buf[1:3], seq)
	buf[3] = beginHour
	buf[4] = endHour
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(payload)))
	copy(buf[9:headerLen], cryptKey)
	copy(buf[headerLen:], payload)
	buf[len(buf)-1] = xlog.EndMarker
	return buf
}

// RawDeflate compresses p without a zlib or gzip wrapper.
func RawDeflate(p []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		panic(err) // only fails for invalid levels
	}
	w.Write(p)
	w.Close()
	return buf.Bytes()
}

// Segment splits p into chunks of at most size bytes, each preceded by its
// 2-byte little-endian length.
func Segment(p []byte, size int) []byte {
	if size <= 0 || size > 0xFFFF {
		size = 0xFFFF
	}
	out := make([]byte, 0, len(p)+2*(len(p)/size+1))
	for len(p) > 0 {
		n := min(size, len(p))
		out = binary.LittleEndian.AppendUint16(out, uint16(n))
		out = append(out, p[:n]...)
		p = p[n:]
	}
	return out
}

// EncryptTEA is the inverse of cipher.TEA.Decrypt: full 8-byte blocks are
// encrypted with 16 rounds, a trailing partial block is left as is.
func EncryptTEA(key, src []byte) []byte {
	var k [4]uint32
	for i := range k {
		k[i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	const delta uint32 = 0x9E3779B9

	out := append([]byte(nil), src...)
	for i := 0; i+8 <= len(out); i += 8 {
		v0 := binary.LittleEndian.Uint32(out[i:])
		v1 := binary.LittleEndian.Uint32(out[i+4:])
		var sum uint32
		for r := 0; r < 16; r++ {
			sum += delta
			v0 += ((v1 << 4) + k[0]) ^ (v1 + sum) ^ ((v1 >> 5) + k[1])
			v1 += ((v0 << 4) + k[2]) ^ (v0 + sum) ^ ((v0 >> 5) + k[3])
		}
		binary.LittleEndian.PutUint32(out[i:], v0)
		binary.LittleEndian.PutUint32(out[i+4:], v1)
	}
	return out
}
