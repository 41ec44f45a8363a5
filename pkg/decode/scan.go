package decode

import (
	"context"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// RecordInfo describes one record found by Scan.
type RecordInfo struct {
	Offset        int
	Magic         xlog.Magic
	Kind          string
	Sequence      uint16
	BeginHour     uint8
	EndHour       uint8
	HeaderLength  int
	PayloadLength uint32
	Compressed    bool
	Segmented     bool
	Cipher        xlog.Cipher
}

// ScanResult lists the records of a buffer without decoding their payloads.
type ScanResult struct {
	Records     []RecordInfo
	Stats       Stats
	Diagnostics []Diagnostic
	Start       int
	Aborted     bool
}

// Scan walks buf exactly as Decode does, including resyncs and sequence checks,
// but only collects record metadata. It fails only with xlog.ErrInvalidFormat.
func Scan(ctx context.Context, buf []byte) (*ScanResult, error) {
	dc := newDecodeContext(ctx, buf, Options{})

	var records []RecordInfo
	start, aborted, err := dc.walk(ctx, func(rec xlog.Record) error {
		h := rec.Header
		records = append(records, RecordInfo{
			Offset:        rec.Offset,
			Magic:         h.Kind.Magic,
			Kind:          h.Kind.Name,
			Sequence:      h.Sequence,
			BeginHour:     h.BeginHour,
			EndHour:       h.EndHour,
			HeaderLength:  h.HeaderLength(),
			PayloadLength: h.PayloadLength,
			Compressed:    h.Kind.Compressed,
			Segmented:     h.Kind.Segmented,
			Cipher:        h.Kind.Cipher,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Records:     records,
		Stats:       dc.stats,
		Diagnostics: dc.diagnostics,
		Start:       start,
		Aborted:     aborted,
	}, nil
}
