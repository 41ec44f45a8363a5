package xlog

import "encoding/binary"

// Header is a decoded record header.
type Header struct {
	Kind          Kind
	Sequence      uint16
	BeginHour     uint8
	EndHour       uint8
	PayloadLength uint32
	// CryptKey aliases the source buffer. It is nil for kinds without key bytes.
	CryptKey []byte
}

// HeaderLength is the number of bytes before the payload.
func (h Header) HeaderLength() int {
	return h.Kind.HeaderLength()
}

// TotalLength is the full record size including the end marker.
func (h Header) TotalLength() int {
	return h.HeaderLength() + int(h.PayloadLength) + 1
}

// ParseHeader decodes the record header at off. It does not look at the payload
// or the end marker.
func ParseHeader(buf []byte, off int) (Header, error) {
	if off < 0 || off+fixedHeaderLength > len(buf) {
		return Header{}, ErrHeaderTooShort
	}

	kind, ok := LookupKind(buf[off])
	if !ok {
		return Header{}, &UnknownMagicError{Byte: buf[off]}
	}
	if off+kind.HeaderLength() > len(buf) {
		return Header{}, ErrHeaderTooShort
	}

	h := Header{
		Kind:          kind,
		Sequence:      binary.LittleEndian.Uint16(buf[off+1 : off+3]),
		BeginHour:     buf[off+3],
		EndHour:       buf[off+4],
		PayloadLength: binary.LittleEndian.Uint32(buf[off+5 : off+9]),
	}
	if kind.CryptKeyBytes > 0 {
		start := off + fixedHeaderLength
		h.CryptKey = buf[start : start+kind.CryptKeyBytes : start+kind.CryptKeyBytes]
	}
	return h, nil
}

// recordEnd returns the offset just past the record at off, or -1 if the bytes at
// off cannot be a complete record.
func recordEnd(buf []byte, off int) int {
	kind, ok := LookupKind(buf[off])
	if !ok {
		return -1
	}
	headerLen := kind.HeaderLength()
	if off+headerLen+1 > len(buf) {
		return -1
	}
	length := int(binary.LittleEndian.Uint32(buf[off+5 : off+9]))
	markerPos := off + headerLen + length
	if markerPos+1 > len(buf) || markerPos < off {
		return -1
	}
	if buf[markerPos] != EndMarker {
		return -1
	}
	return markerPos + 1
}

// IsValidRecord reports whether chain consecutive structurally sound records start
// at off. A chain that runs exactly to the end of buf is accepted, so the last
// record of a file validates with any chain length.
func IsValidRecord(buf []byte, off, chain int) bool {
	if chain < 1 {
		chain = 1
	}
	for ; chain > 0; chain-- {
		if off >= len(buf) {
			return off == len(buf)
		}
		next := recordEnd(buf, off)
		if next < 0 {
			return false
		}
		off = next
	}
	return true
}

// FindStart returns the first offset holding a magic byte followed by chain valid
// records. Checking two records filters most magic bytes that occur by chance
// inside compressed or encrypted payloads.
func FindStart(buf []byte, chain int) (int, bool) {
	for off := 0; off < len(buf); off++ {
		if !IsMagic(buf[off]) {
			continue
		}
		if IsValidRecord(buf, off, chain) {
			return off, true
		}
	}
	return 0, false
}

// Record is a header together with its payload slice and position.
type Record struct {
	Offset  int
	Header  Header
	Payload []byte
}

// End is the offset just past the end marker.
func (r Record) End() int {
	return r.Offset + r.Header.TotalLength()
}

// ReadRecord parses and bounds-checks the record at off. The payload aliases buf.
func ReadRecord(buf []byte, off int) (Record, error) {
	h, err := ParseHeader(buf, off)
	if err != nil {
		return Record{}, err
	}
	start := off + h.HeaderLength()
	end := start + int(h.PayloadLength)
	if end+1 > len(buf) {
		return Record{}, ErrTruncatedRecord
	}
	if buf[end] != EndMarker {
		return Record{}, ErrInvalidEndMarker
	}
	return Record{Offset: off, Header: h, Payload: buf[start:end:end]}, nil
}
