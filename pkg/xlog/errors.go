package xlog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat indicates that no valid record start exists anywhere in the buffer.
	ErrInvalidFormat = errors.New("invalid xlog file format")
	// ErrHeaderTooShort indicates the buffer ends inside a record header.
	ErrHeaderTooShort = errors.New("header too short")
	// ErrUnknownMagic indicates a byte that does not name a record kind.
	ErrUnknownMagic = errors.New("unknown magic number")
	// ErrTruncatedRecord indicates the payload or end marker extends past the buffer.
	ErrTruncatedRecord = errors.New("record extends past end of buffer")
	// ErrInvalidEndMarker indicates the byte after the payload is not the end marker.
	ErrInvalidEndMarker = errors.New("invalid end marker")
	// ErrDecompressionFailed indicates a payload could not be inflated.
	ErrDecompressionFailed = errors.New("decompression failed")
	// ErrDecryptionFailed indicates a payload could not be decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrFileRead indicates an input could not be read.
	ErrFileRead = errors.New("failed to read file")
	// ErrFileWrite indicates an output could not be written.
	ErrFileWrite = errors.New("failed to write output file")
	// ErrNoArchiveMembers indicates an archive contained no xlog files.
	ErrNoArchiveMembers = errors.New("no .xlog files found in archive")
)

// UnknownMagicError carries the offending byte. It matches ErrUnknownMagic.
type UnknownMagicError struct {
	Byte byte
}

func (e *UnknownMagicError) Error() string {
	return fmt.Sprintf("unknown magic number: 0x%02x", e.Byte)
}

// Is reports whether target is ErrUnknownMagic.
func (e *UnknownMagicError) Is(target error) bool {
	return target == ErrUnknownMagic
}
