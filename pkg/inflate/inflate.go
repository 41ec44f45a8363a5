// Package inflate decompresses xlog payloads: raw deflate streams without a zlib or
// gzip wrapper, optionally split into length-prefixed segments.
package inflate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// readerPool reuses inflaters; their window allocation dominates small payloads.
var readerPool = sync.Pool{
	New: func() any {
		return flate.NewReader(bytes.NewReader(nil))
	},
}

// Raw inflates a headerless deflate stream. The stream must reach its final block;
// truncated or corrupted input fails with xlog.ErrDecompressionFailed.
func Raw(src []byte) ([]byte, error) {
	r := readerPool.Get().(io.ReadCloser)
	defer readerPool.Put(r)

	if err := r.(flate.Resetter).Reset(bytes.NewReader(src), nil); err != nil {
		return nil, fmt.Errorf("%w: reset inflater: %w", xlog.ErrDecompressionFailed, err)
	}

	var out bytes.Buffer
	out.Grow(growHint(len(src)))
	if _, err := out.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", xlog.ErrDecompressionFailed, err)
	}
	return out.Bytes(), nil
}

// Segmented reassembles a segmented payload and inflates the result.
func Segmented(src []byte) ([]byte, error) {
	return Raw(Reassemble(src))
}

// Reassemble concatenates the chunks of a payload made of 2-byte little-endian
// length prefixes, each followed by that many bytes. A short prefix or a chunk
// running past the end stops extraction without error.
func Reassemble(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for pos := 0; pos+2 <= len(src); {
		n := int(binary.LittleEndian.Uint16(src[pos : pos+2]))
		pos += 2
		if pos+n > len(src) {
			break
		}
		out = append(out, src[pos:pos+n]...)
		pos += n
	}
	return out
}

// growHint guesses the inflated size; log text typically compresses 4-8x.
func growHint(n int) int {
	const maxHint = 4 << 20
	h := n * 4
	if h < 512 {
		h = 512
	}
	if h > maxHint {
		h = maxHint
	}
	return h
}
