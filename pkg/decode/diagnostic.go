package decode

import "fmt"

// DiagnosticKind distinguishes the two notices written inline into the output.
type DiagnosticKind uint8

const (
	// DiagSequenceGap reports sequence numbers missing between two records.
	DiagSequenceGap DiagnosticKind = iota + 1
	// DiagResync reports bytes skipped to reach the next valid record.
	DiagResync
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagSequenceGap:
		return "sequence_gap"
	case DiagResync:
		return "resync"
	default:
		return fmt.Sprintf("diagnostic(%d)", uint8(k))
	}
}

// Diagnostic is the structured form of one inline notice.
type Diagnostic struct {
	Kind DiagnosticKind
	// Offset is where the notice was raised: the record start for a gap, the
	// failed cursor for a resync.
	Offset int
	// Skipped is the number of bytes passed over by a resync.
	Skipped int
	// From and To bound the missing sequence numbers of a gap, inclusive.
	From, To uint16
}

// Text renders the diagnostic exactly as it appears in decoded output.
func (d Diagnostic) Text() string {
	switch d.Kind {
	case DiagSequenceGap:
		return fmt.Sprintf("[F] Log seq:%d-%d is missing\n", d.From, d.To)
	case DiagResync:
		return fmt.Sprintf("[F] Decode error at offset %d, skipped %d bytes\n", d.Offset, d.Skipped)
	default:
		return ""
	}
}

// Stats counts what happened while walking one buffer.
type Stats struct {
	Records          int
	Resyncs          int
	SkippedBytes     int64
	SequenceGaps     int
	MissingSequences int64
	BytesIn          int64
	BytesOut         int64
}
