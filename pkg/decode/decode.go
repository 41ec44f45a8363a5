// Package decode turns an xlog buffer into plaintext.
//
// A file is walked record by record from the first offset where two consecutive
// records validate. Structural damage between records is skipped by searching for
// the next valid record and noted inline in the output; a payload that fails to
// decrypt or inflate ends the file with an error.
//
// TEA-encrypted records need a key from Options.SessionKey. The command line
// never sets it; it is an extension point for library callers.
package decode

import (
	"context"
	"fmt"

	"github.com/eunmann/xlog-decoder/pkg/cipher"
	"github.com/eunmann/xlog-decoder/pkg/inflate"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// Options tunes a single decode. The zero value is usable.
type Options struct {
	// Progress receives bytes processed and the buffer length at record boundaries,
	// at most once per ProgressStep bytes and once at the end. It must not block.
	Progress     func(processed, total int)
	ProgressStep int
	// Abort is polled at every record boundary; returning true ends the decode
	// with the output produced so far.
	Abort func() bool
	// SessionKey supplies the 16-byte TEA key for a record. When nil, TEA
	// records fail with xlog.ErrDecryptionFailed.
	SessionKey func(xlog.Header) ([]byte, error)
}

// Result is the outcome of one decode.
type Result struct {
	// Output is the concatenated plaintext with inline diagnostics.
	Output      []byte
	Stats       Stats
	Diagnostics []Diagnostic
	// Start is the offset of the first record.
	Start int
	// Aborted is set when the decode was cancelled; Output is still valid.
	Aborted bool
}

// Decode decodes buf. buf is never modified, so it may be a read-only mapping.
//
// The returned error is xlog.ErrInvalidFormat when no record start exists, or
// wraps xlog.ErrDecryptionFailed / xlog.ErrDecompressionFailed for a bad payload.
// Cancelling ctx is not an error: the partial result is returned with Aborted set.
func Decode(ctx context.Context, buf []byte, opts Options) (*Result, error) {
	dc := newDecodeContext(ctx, buf, opts)

	out := make([]byte, 0, outputHint(len(buf)))
	dc.notice = func(d Diagnostic) {
		out = append(out, d.Text()...)
	}

	var scratch []byte
	start, aborted, err := dc.walk(ctx, func(rec xlog.Record) error {
		plain, err := payloadText(rec, &scratch, opts.SessionKey)
		if err != nil {
			return fmt.Errorf("record at offset %d (%s): %w", rec.Offset, rec.Header.Kind, err)
		}
		out = append(out, plain...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dc.stats.BytesOut = int64(len(out))
	return &Result{
		Output:      out,
		Stats:       dc.stats,
		Diagnostics: dc.diagnostics,
		Start:       start,
		Aborted:     aborted,
	}, nil
}

// payloadText decrypts and inflates one payload as its kind requires. The result
// may alias scratch, so it must be consumed before the next call.
func payloadText(rec xlog.Record, scratch *[]byte, sessionKey func(xlog.Header) ([]byte, error)) ([]byte, error) {
	h := rec.Header
	p := rec.Payload

	if h.Kind.Decrypt {
		switch h.Kind.Cipher {
		case xlog.CipherXOR:
			*scratch = cipher.XOR(*scratch, p, cipher.XORKey(h))
			p = *scratch
		case xlog.CipherTEA:
			tea, err := teaFor(h, sessionKey)
			if err != nil {
				return nil, err
			}
			p = tea.Decrypt(p)
		}
	}

	if !h.Kind.Compressed {
		return p, nil
	}
	if h.Kind.Segmented {
		return inflate.Segmented(p)
	}
	return inflate.Raw(p)
}

func teaFor(h xlog.Header, sessionKey func(xlog.Header) ([]byte, error)) (*cipher.TEA, error) {
	if sessionKey == nil {
		return nil, fmt.Errorf("%w: no session key for %s", xlog.ErrDecryptionFailed, h.Kind)
	}
	key, err := sessionKey(h)
	if err != nil {
		return nil, fmt.Errorf("%w: session key: %w", xlog.ErrDecryptionFailed, err)
	}
	tea, err := cipher.NewTEA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xlog.ErrDecryptionFailed, err)
	}
	return tea, nil
}

// outputHint sizes the output buffer; compressed records usually dominate.
func outputHint(n int) int {
	const maxHint = 64 << 20
	return min(n*2, maxHint)
}
