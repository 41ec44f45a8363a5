package cipher

import (
	"encoding/binary"
	"fmt"
)

const (
	teaDelta  uint32 = 0x9E3779B9
	teaRounds        = 16
	// teaSumStart is teaDelta*teaRounds mod 2^32.
	teaSumStart = 0xE3779B90

	// TEABlockSize is the cipher block size in bytes.
	TEABlockSize = 8
	// TEAKeySize is the key size in bytes.
	TEAKeySize = 16
)

// TEA decrypts 16-round TEA blocks with a fixed 128-bit key.
type TEA struct {
	k [4]uint32
}

// NewTEA builds a cipher from a 16-byte key read as four little-endian words.
func NewTEA(key []byte) (*TEA, error) {
	if len(key) != TEAKeySize {
		return nil, fmt.Errorf("tea key must be %d bytes, got %d", TEAKeySize, len(key))
	}
	t := &TEA{}
	for i := range t.k {
		t.k[i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	return t, nil
}

// DecryptBlock decrypts one 8-byte block from src into dst.
func (t *TEA) DecryptBlock(dst, src []byte) {
	v0 := binary.LittleEndian.Uint32(src[0:4])
	v1 := binary.LittleEndian.Uint32(src[4:8])
	k0, k1, k2, k3 := t.k[0], t.k[1], t.k[2], t.k[3]

	sum := uint32(teaSumStart)
	for i := 0; i < teaRounds; i++ {
		v1 -= ((v0 << 4) + k2) ^ (v0 + sum) ^ ((v0 >> 5) + k3)
		v0 -= ((v1 << 4) + k0) ^ (v1 + sum) ^ ((v1 >> 5) + k1)
		sum -= teaDelta
	}

	binary.LittleEndian.PutUint32(dst[0:4], v0)
	binary.LittleEndian.PutUint32(dst[4:8], v1)
}

// Decrypt decrypts every full block of src. A trailing partial block is copied
// through unchanged. The result is a new slice.
func (t *TEA) Decrypt(src []byte) []byte {
	out := make([]byte, len(src))
	full := len(src) - len(src)%TEABlockSize
	for i := 0; i < full; i += TEABlockSize {
		t.DecryptBlock(out[i:i+TEABlockSize], src[i:i+TEABlockSize])
	}
	copy(out[full:], src[full:])
	return out
}
