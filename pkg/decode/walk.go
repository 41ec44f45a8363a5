package decode

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// startChain is the number of consecutive records that must validate before the
// first record is trusted. Resyncs only require one.
const (
	startChain  = 2
	resyncChain = 1
)

// DefaultProgressStep is the minimum number of bytes between progress callbacks.
const DefaultProgressStep = 64 << 10

// decodeContext is the mutable state of one walk over one buffer. It is never
// shared between files.
type decodeContext struct {
	buf     []byte
	opts    Options
	log     zerolog.Logger
	cursor  int
	lastSeq uint16

	stats       Stats
	diagnostics []Diagnostic
	// notice receives every diagnostic as it is raised, in walk order.
	notice func(Diagnostic)

	lastReported int
}

func newDecodeContext(ctx context.Context, buf []byte, opts Options) *decodeContext {
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = DefaultProgressStep
	}
	return &decodeContext{
		buf:  buf,
		opts: opts,
		log:  logctx.FromContext(ctx),
	}
}

// walk drives the scanning, decoding and resyncing states. visit is called for
// every structurally valid record in order; an error from visit ends the walk.
// The returned start is the offset of the first record.
func (dc *decodeContext) walk(ctx context.Context, visit func(xlog.Record) error) (start int, aborted bool, err error) {
	start, ok := xlog.FindStart(dc.buf, startChain)
	if !ok {
		return 0, false, xlog.ErrInvalidFormat
	}
	if start > 0 {
		dc.log.Debug().Int("offset", start).Msg("skipped leading bytes before first record")
	}
	dc.cursor = start
	dc.stats.BytesIn = int64(len(dc.buf))

	for dc.cursor < len(dc.buf) {
		if dc.stopped(ctx) {
			dc.reportProgress(dc.cursor, true)
			return start, true, nil
		}
		dc.reportProgress(dc.cursor, false)

		if !xlog.IsValidRecord(dc.buf, dc.cursor, resyncChain) {
			if !dc.resync() {
				break
			}
			continue
		}

		rec, err := xlog.ReadRecord(dc.buf, dc.cursor)
		if err != nil {
			// Unreachable after IsValidRecord, kept so a mismatch resyncs instead of looping.
			if !dc.resync() {
				break
			}
			continue
		}

		dc.checkSequence(rec)
		if err := visit(rec); err != nil {
			return start, false, err
		}
		dc.stats.Records++
		dc.cursor = rec.End()
	}

	dc.reportProgress(len(dc.buf), true)
	return start, false, nil
}

func (dc *decodeContext) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return dc.opts.Abort != nil && dc.opts.Abort()
}

// checkSequence raises a gap diagnostic when rec does not follow the previous
// record. Sequences 0 and 1 mark a restart and never warn; 0 is not remembered.
func (dc *decodeContext) checkSequence(rec xlog.Record) {
	seq := rec.Header.Sequence
	if seq > 1 && dc.lastSeq != 0 && seq != dc.lastSeq+1 {
		d := Diagnostic{
			Kind:   DiagSequenceGap,
			Offset: rec.Offset,
			From:   dc.lastSeq + 1,
			To:     seq - 1,
		}
		dc.stats.SequenceGaps++
		if n := seq - dc.lastSeq - 1; n < 0x8000 {
			dc.stats.MissingSequences += int64(n)
		}
		dc.log.Debug().
			Str("event", "sequence_gap").
			Int("offset", rec.Offset).
			Uint16("from", d.From).
			Uint16("to", d.To).
			Msg("sequence gap")
		dc.raise(d)
	}
	if seq != 0 {
		dc.lastSeq = seq
	}
}

// resync searches the rest of the buffer for the next valid record. It returns
// false when none exists, which ends the walk.
func (dc *decodeContext) resync() bool {
	p, ok := xlog.FindStart(dc.buf[dc.cursor:], resyncChain)
	if !ok {
		dc.stats.SkippedBytes += int64(len(dc.buf) - dc.cursor)
		dc.log.Debug().
			Int("offset", dc.cursor).
			Int("trailing_bytes", len(dc.buf)-dc.cursor).
			Msg("no further records")
		dc.cursor = len(dc.buf)
		return false
	}

	d := Diagnostic{Kind: DiagResync, Offset: dc.cursor, Skipped: p}
	dc.stats.Resyncs++
	dc.stats.SkippedBytes += int64(p)
	dc.log.Debug().
		Str("event", "resync").
		Int("offset", dc.cursor).
		Int("skipped", p).
		Msg("resynchronized after corrupt bytes")
	dc.raise(d)
	dc.cursor += p
	return true
}

func (dc *decodeContext) raise(d Diagnostic) {
	dc.diagnostics = append(dc.diagnostics, d)
	if dc.notice != nil {
		dc.notice(d)
	}
}

// reportProgress calls the progress callback once per ProgressStep bytes, and
// always when final is set.
func (dc *decodeContext) reportProgress(processed int, final bool) {
	if dc.opts.Progress == nil {
		return
	}
	if !final && processed-dc.lastReported < dc.opts.ProgressStep {
		return
	}
	dc.lastReported = processed
	dc.opts.Progress(processed, len(dc.buf))
}
