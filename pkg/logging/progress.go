package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/xlog-decoder/pkg/humanfmt"
)

// ProgressTracker tracks batch progress over a fixed number of input files with
// ETA calculation. It is safe for concurrent use.
type ProgressTracker struct {
	total      int64
	completed  atomic.Int64
	failed     atomic.Int64
	bytesTotal int64
	bytesDone  atomic.Int64
	startTime  time.Time
	log        zerolog.Logger
	phase      string

	// For moving average of per-byte decode cost
	mu          sync.Mutex
	recent      []sample
	maxRecent   int
	lastLogTime time.Time
}

type sample struct {
	bytes int64
	took  time.Duration
}

// NewProgressTracker creates a tracker for total files holding totalBytes input bytes.
func NewProgressTracker(phase string, total, totalBytes int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		total:      total,
		bytesTotal: totalBytes,
		startTime:  time.Now(),
		log:        log,
		phase:      phase,
		recent:     make([]sample, 0, 10),
		maxRecent:  10,
	}
}

// RecordCompletion records that a file of size bytes decoded in d.
func (pt *ProgressTracker) RecordCompletion(size int64, d time.Duration) {
	pt.completed.Add(1)
	pt.bytesDone.Add(size)
	pt.record(size, d)
}

// RecordFailure records that a file of size bytes failed after d.
func (pt *ProgressTracker) RecordFailure(size int64, d time.Duration) {
	pt.failed.Add(1)
	pt.bytesDone.Add(size)
	pt.record(size, d)
}

func (pt *ProgressTracker) record(size int64, d time.Duration) {
	pt.mu.Lock()
	if len(pt.recent) >= pt.maxRecent {
		pt.recent = pt.recent[1:]
	}
	pt.recent = append(pt.recent, sample{bytes: size, took: d})
	pt.mu.Unlock()
}

// Progress returns current progress stats.
func (pt *ProgressTracker) Progress() (completed, failed, total int64) {
	return pt.completed.Load(), pt.failed.Load(), pt.total
}

// ProgressPct returns the file progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	done := pt.completed.Load() + pt.failed.Load()
	if pt.total == 0 {
		return 100.0
	}
	return float64(done) * 100.0 / float64(pt.total)
}

// ETA estimates the time remaining from the recent decode rate in bytes per second.
// Files vary wildly in size, so the estimate is per byte rather than per file.
func (pt *ProgressTracker) ETA() time.Duration {
	remaining := pt.bytesTotal - pt.bytesDone.Load()
	if remaining <= 0 || pt.Remaining() <= 0 {
		return 0
	}

	pt.mu.Lock()
	var bytes int64
	var took time.Duration
	for _, s := range pt.recent {
		bytes += s.bytes
		took += s.took
	}
	pt.mu.Unlock()

	if bytes == 0 {
		return 0
	}
	return time.Duration(float64(took) * float64(remaining) / float64(bytes))
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Remaining returns how many files are remaining.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total - pt.completed.Load() - pt.failed.Load()
}

// Completed returns only the completed count (not failed).
func (pt *ProgressTracker) Completed() int64 {
	return pt.completed.Load()
}

// Total returns the total count.
func (pt *ProgressTracker) Total() int64 {
	return pt.total
}

// BytesDone returns the input bytes of finished files.
func (pt *ProgressTracker) BytesDone() int64 {
	return pt.bytesDone.Load()
}

// MaybeLog emits a batch_progress event at most once per interval.
func (pt *ProgressTracker) MaybeLog(interval time.Duration) {
	pt.mu.Lock()
	now := time.Now()
	if now.Sub(pt.lastLogTime) < interval {
		pt.mu.Unlock()
		return
	}
	pt.lastLogTime = now
	pt.mu.Unlock()

	NewCompletionEvent(pt.log, "batch_progress", pt.phase, pt.Elapsed()).
		ProgressFromTracker(pt).
		Bytes("bytes_done", pt.BytesDone()).
		Log("batch progress")
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// ProgressFromTracker adds progress fields from a ProgressTracker.
func (ce *CompletionEvent) ProgressFromTracker(pt *ProgressTracker) *CompletionEvent {
	completed, failed, total := pt.Progress()
	ce.fields["completed"] = completed
	ce.fields["failed"] = failed
	ce.fields["total"] = total
	ce.fields["progress_pct"] = pt.ProgressPct()
	if eta := pt.ETA(); eta > 0 {
		ce.fields["eta_ms"] = eta.Milliseconds()
		if IsPrettyMode() {
			ce.fields["eta_h"] = humanfmt.Duration(eta)
		}
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		bps := float64(bytes) / ce.elapsed.Seconds()
		ce.fields["throughput_bps"] = bps
		if IsPrettyMode() {
			ce.fields["throughput_h"] = humanfmt.Throughput(bytes, ce.elapsed)
		}
	}
	return ce
}

// Log emits the completion event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

// LogWarn emits the completion event at warn level.
func (ce *CompletionEvent) LogWarn(msg string) {
	ce.emit(ce.log.Warn(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// FileDecoded logs the completion of one input file.
func FileDecoded(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_decoded", phase, elapsed)
}

// FileFailed logs an input file whose decode was aborted.
func FileFailed(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_failed", phase, elapsed)
}

// ArchiveExtracted logs the extraction of an archive.
func ArchiveExtracted(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "archive_extracted", phase, elapsed)
}

// DecodeStarted logs the start of one input file (no duration).
func DecodeStarted(log zerolog.Logger, phase, input string, size int64, index, total int) {
	log.Info().
		Str("event", "decode_started").
		Str("phase", phase).
		Str("input", input).
		Int64("size", size).
		Int("index", index).
		Int("total", total).
		Msg("decode started")
}
