// Package xlog describes the xlog record container: the catalog of record kinds,
// the header layout and the structural validation used to find record boundaries.
//
// Record wire layout (all integers little-endian):
//
//	offset 0   magic          1 byte (0x03..0x09)
//	offset 1   sequence       2 bytes
//	offset 3   begin hour     1 byte
//	offset 4   end hour       1 byte
//	offset 5   payload length 4 bytes
//	offset 9   crypt key      4 or 64 bytes, depending on the kind
//	headerLen  payload        payload length bytes
//	...        end marker     1 byte, always 0x00
package xlog

import "fmt"

// Magic is the first byte of a record and selects its kind.
type Magic byte

const (
	MagicNoCompressStart        Magic = 0x03
	MagicCompressStart          Magic = 0x04
	MagicCompressStart1         Magic = 0x05
	MagicNoCompressStart1       Magic = 0x06
	MagicCompressStart2         Magic = 0x07
	MagicNoCompressNoCryptStart Magic = 0x08
	MagicCompressNoCryptStart   Magic = 0x09
)

// EndMarker terminates every record.
const EndMarker byte = 0x00

// fixedHeaderLength covers magic, sequence, both hours and the payload length.
const fixedHeaderLength = 1 + 2 + 1 + 1 + 4

// Cipher selects the payload decryption stage of a kind.
type Cipher uint8

const (
	CipherNone Cipher = iota
	CipherXOR
	CipherTEA
)

func (c Cipher) String() string {
	switch c {
	case CipherNone:
		return "none"
	case CipherXOR:
		return "xor"
	case CipherTEA:
		return "tea"
	default:
		return fmt.Sprintf("cipher(%d)", uint8(c))
	}
}

// Kind is the fixed geometry and behavior of one record kind.
type Kind struct {
	Magic         Magic
	Name          string
	CryptKeyBytes int
	Decrypt       bool
	Compressed    bool
	// Segmented payloads are a chain of 2-byte length-prefixed chunks that must be
	// reassembled before inflating.
	Segmented bool
	Cipher    Cipher
}

// HeaderLength is the number of bytes before the payload.
func (k Kind) HeaderLength() int {
	return fixedHeaderLength + k.CryptKeyBytes
}

func (k Kind) String() string {
	return fmt.Sprintf("%s(0x%02x)", k.Name, byte(k.Magic))
}

var kinds = [...]Kind{
	{Magic: MagicNoCompressStart, Name: "no-compress", CryptKeyBytes: 4, Decrypt: true, Cipher: CipherXOR},
	{Magic: MagicCompressStart, Name: "compress", CryptKeyBytes: 4, Decrypt: true, Compressed: true, Cipher: CipherXOR},
	{Magic: MagicCompressStart1, Name: "compress-segmented", CryptKeyBytes: 4, Decrypt: true, Compressed: true, Segmented: true, Cipher: CipherXOR},
	{Magic: MagicNoCompressStart1, Name: "no-compress-v1", CryptKeyBytes: 64, Decrypt: true, Cipher: CipherXOR},
	{Magic: MagicCompressStart2, Name: "compress-tea", CryptKeyBytes: 64, Decrypt: true, Compressed: true, Cipher: CipherTEA},
	{Magic: MagicNoCompressNoCryptStart, Name: "plain", CryptKeyBytes: 64, Cipher: CipherNone},
	{Magic: MagicCompressNoCryptStart, Name: "compress-plain", CryptKeyBytes: 64, Compressed: true, Cipher: CipherNone},
}

// LookupKind resolves a magic byte. The second result is false for any byte
// outside 0x03..0x09.
func LookupKind(b byte) (Kind, bool) {
	if b < byte(MagicNoCompressStart) || b > byte(MagicCompressNoCryptStart) {
		return Kind{}, false
	}
	return kinds[b-byte(MagicNoCompressStart)], true
}

// IsMagic reports whether b starts a record of some kind.
func IsMagic(b byte) bool {
	return b >= byte(MagicNoCompressStart) && b <= byte(MagicCompressNoCryptStart)
}
