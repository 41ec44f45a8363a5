// Package recordindex exports the record list of an xlog file as a parquet
// table, one row per record, for ad hoc analysis of damaged or unusual files.
package recordindex

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/xlog-decoder/pkg/decode"
	"github.com/eunmann/xlog-decoder/pkg/fileutil"
)

// Row is the parquet schema of one record.
type Row struct {
	Offset        int64  `parquet:"offset"`
	Magic         int32  `parquet:"magic"`
	Kind          string `parquet:"kind,dict"`
	Sequence      int32  `parquet:"sequence"`
	BeginHour     int32  `parquet:"begin_hour"`
	EndHour       int32  `parquet:"end_hour"`
	HeaderLength  int32  `parquet:"header_length"`
	PayloadLength int64  `parquet:"payload_length"`
	Compressed    bool   `parquet:"compressed"`
	Segmented     bool   `parquet:"segmented"`
	Cipher        string `parquet:"cipher,dict"`
}

// RowFromRecord converts scan metadata to a parquet row.
func RowFromRecord(r decode.RecordInfo) Row {
	return Row{
		Offset:        int64(r.Offset),
		Magic:         int32(r.Magic),
		Kind:          r.Kind,
		Sequence:      int32(r.Sequence),
		BeginHour:     int32(r.BeginHour),
		EndHour:       int32(r.EndHour),
		HeaderLength:  int32(r.HeaderLength),
		PayloadLength: int64(r.PayloadLength),
		Compressed:    r.Compressed,
		Segmented:     r.Segmented,
		Cipher:        r.Cipher.String(),
	}
}

// Encode writes records as a parquet file to w.
func Encode(w io.Writer, records []decode.RecordInfo) error {
	pw := parquet.NewGenericWriter[Row](w)

	const batch = 1024
	rows := make([]Row, 0, batch)
	flush := func() error {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for _, r := range records {
		rows = append(rows, RowFromRecord(r))
		if len(rows) == batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteFile atomically writes records to path.
func WriteFile(path string, records []decode.RecordInfo) error {
	return fileutil.WriteTmpThenMove("", path, func(w io.Writer) error {
		return Encode(w, records)
	})
}

// ReadFile loads a file written by WriteFile.
func ReadFile(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read record index %s: %w", path, err)
	}
	return rows, nil
}
