// Package batch decodes many xlog inputs: local files, zip archives and S3
// objects, optionally in parallel under a memory budget, writing one plaintext
// file per input.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/decode"
	"github.com/eunmann/xlog-decoder/pkg/fileutil"
	"github.com/eunmann/xlog-decoder/pkg/logging"
	"github.com/eunmann/xlog-decoder/pkg/membudget"
	"github.com/eunmann/xlog-decoder/pkg/metrics"
	"github.com/eunmann/xlog-decoder/pkg/source"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// DefaultSuffix is appended to the input name to form the output name.
const DefaultSuffix = ".log"

const phase = "decode"

// Compression selects how output files are written.
type Compression string

const (
	CompressNone Compression = "none"
	CompressZstd Compression = "zstd"
)

// ParseCompression validates a --compress value. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", CompressNone:
		return CompressNone, nil
	case CompressZstd:
		return CompressZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none or zstd)", s)
	}
}

// Config controls Resolve and Run.
type Config struct {
	// OutDir overrides the per-input output directory when set.
	OutDir string
	// Suffix is appended to output names; DefaultSuffix when empty.
	Suffix string
	// UIDSuffix inserts "_<uid>" before the extension when the decoded text
	// contains "_uid=<digits>".
	UIDSuffix bool
	Compress  Compression
	// Concurrency is the number of files decoded at once; values below 1 mean 1.
	Concurrency int
	// Budget bounds the memory of concurrent decodes. Nil means unbounded.
	Budget *membudget.Budget
	// TmpDir holds extracted archives and downloads; os.TempDir when empty.
	TmpDir   string
	KeepTemp bool

	Fetcher Fetcher
	Metrics *metrics.Decoder

	// Progress receives per-file decode progress. It must not block.
	Progress func(in Input, processed, total int)
	Abort    func() bool
	// SessionKey is passed to decode.Options; only library callers set it.
	SessionKey func(xlog.Header) ([]byte, error)
}

// FileResult is the outcome for one input.
type FileResult struct {
	Input      Input
	OutputPath string
	Stats      decode.Stats
	UID        string
	Aborted    bool
	Duration   time.Duration
	Err        error
}

// Run decodes every input and returns one result per input, in input order.
// A failing file does not stop the others; the returned error joins every
// per-file error and is nil when all files succeeded.
func Run(ctx context.Context, inputs []Input, cfg Config) ([]FileResult, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	var totalBytes int64
	for _, in := range inputs {
		totalBytes += in.Size
	}
	tracker := logging.NewProgressTracker(phase, int64(len(inputs)), totalBytes, log)

	results := make([]FileResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))

	for i, in := range inputs {
		g.Go(func() error {
			fileCtx := logctx.WithInput(logctx.WithInt(gctx, "index", i), in.Name)
			results[i] = runOne(fileCtx, in, i, len(inputs), cfg)

			if results[i].Err != nil {
				tracker.RecordFailure(in.Size, results[i].Duration)
			} else {
				tracker.RecordCompletion(in.Size, results[i].Duration)
			}
			tracker.MaybeLog(5 * time.Second)
			// Per-file failures are collected, never returned, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	var outBytes int64
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input.Path, r.Err))
		}
		outBytes += r.Stats.BytesOut
	}

	completed, failed, _ := tracker.Progress()
	logging.PhaseComplete(log, phase, time.Since(start)).
		Int64("files", int64(len(inputs))).
		Int64("completed", completed).
		Int64("failed", failed).
		Bytes("input_bytes", totalBytes).
		Bytes("output_bytes", outBytes).
		Throughput(totalBytes).
		Log("batch decode complete")

	return results, errors.Join(errs...)
}

func runOne(ctx context.Context, in Input, index, total int, cfg Config) FileResult {
	start := time.Now()
	res := FileResult{Input: in}

	if cfg.Budget != nil {
		n := cfg.Budget.Footprint(in.Size)
		if err := cfg.Budget.Reserve(ctx, n); err != nil {
			res.Duration = time.Since(start)
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				// Cancelled while waiting for memory: nothing decoded, nothing written.
				res.Aborted = true
				if cfg.Metrics != nil {
					cfg.Metrics.ObserveFile(res.Stats, true, res.Duration)
				}
				log := logctx.FromContext(ctx)
				log.Debug().Str("status", "aborted").Msg("cancelled while waiting for memory budget")
				return res
			}
			res.Err = fmt.Errorf("reserve memory: %w", err)
			return res
		}
		defer cfg.Budget.Release(n)
	}

	err := decodeFile(ctx, in, index, total, cfg, &res)
	res.Duration = time.Since(start)
	log := logctx.FromContext(ctx)

	if err != nil {
		res.Err = err
		if cfg.Metrics != nil {
			cfg.Metrics.ObserveFailure(res.Duration)
		}
		logging.FileFailed(log, phase, res.Duration).
			Str("error", err.Error()).
			LogWarn("file failed")
		return res
	}

	if cfg.Metrics != nil {
		cfg.Metrics.ObserveFile(res.Stats, res.Aborted, res.Duration)
	}
	ev := logging.FileDecoded(log, phase, res.Duration).
		Str("output", res.OutputPath).
		Count("records", int64(res.Stats.Records)).
		Int("resyncs", res.Stats.Resyncs).
		Int("sequence_gaps", res.Stats.SequenceGaps).
		Bytes("input_bytes", res.Stats.BytesIn).
		Bytes("output_bytes", res.Stats.BytesOut).
		Throughput(res.Stats.BytesIn)
	if res.Aborted {
		ev.Str("status", "aborted").LogWarn("file decode aborted")
		return res
	}
	ev.Log("file decoded")
	return res
}

func decodeFile(ctx context.Context, in Input, index, total int, cfg Config, res *FileResult) error {
	src, err := source.Open(in.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	logging.DecodeStarted(logctx.FromContext(ctx), phase, in.Name, src.Size(), index, total)

	opts := decode.Options{
		Abort:      cfg.Abort,
		SessionKey: cfg.SessionKey,
	}
	if cfg.Progress != nil {
		opts.Progress = func(processed, total int) { cfg.Progress(in, processed, total) }
	}

	out, err := decode.Decode(ctx, src.Bytes(), opts)
	if err != nil {
		return err
	}
	res.Stats = out.Stats
	res.Aborted = out.Aborted

	if cfg.UIDSuffix {
		res.UID, _ = decode.ExtractUID(out.Output)
	}
	res.OutputPath = OutputPath(in, cfg, res.UID)

	if err := writeOutput(res.OutputPath, out.Output, cfg.Compress); err != nil {
		return fmt.Errorf("%w: %s: %w", xlog.ErrFileWrite, res.OutputPath, err)
	}
	return nil
}

func writeOutput(path string, data []byte, c Compression) error {
	return fileutil.WriteTmpThenMove("", path, func(w io.Writer) error {
		if c != CompressZstd {
			_, err := w.Write(data)
			return err
		}
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}

// OutputPath derives where the plaintext of in is written:
// <dir>/<name><suffix>, with "_<uid>" inserted before the input extension when
// uid is set, and ".zst" appended for zstd output.
func OutputPath(in Input, cfg Config, uid string) string {
	dir := cfg.OutDir
	if dir == "" {
		dir = in.OutDir
	}
	if dir == "" {
		dir = filepath.Dir(in.Path)
	}

	name := in.Name
	if uid != "" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_" + uid + ext
	}

	suffix := cfg.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	name += suffix
	if cfg.Compress == CompressZstd {
		name += ".zst"
	}
	return filepath.Join(dir, name)
}
