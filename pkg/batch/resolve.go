package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/archive"
	"github.com/eunmann/xlog-decoder/pkg/s3fetch"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// XlogExt is the extension of decodable members in archives and directories.
const XlogExt = ".xlog"

// Input is one file to decode.
type Input struct {
	// Path is the local file to read.
	Path string
	// Name is the base name used to derive the output name.
	Name string
	// Origin is the argument the input came from: the file itself, an archive
	// or an s3:// URI.
	Origin string
	// OutDir is the default output directory for this input.
	OutDir string
	Size   int64
}

// Fetcher downloads an s3:// URI into destDir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, uri, destDir string) (string, *s3fetch.DownloadResult, error)
}

// Resolved is the expanded input list plus the temporary directories backing
// extracted and downloaded files.
type Resolved struct {
	Inputs   []Input
	tempDirs []string
	tmpRoot  string
	keep     bool
}

// Cleanup removes temporary directories unless the config asked to keep them.
func (r *Resolved) Cleanup(ctx context.Context) {
	if r == nil || r.keep {
		return
	}
	for _, dir := range r.tempDirs {
		archive.Cleanup(ctx, dir)
	}
	r.tempDirs = nil
}

// Resolve expands arguments into inputs, in argument order. A plain file is
// one input; a .zip archive or a directory contributes its .xlog files sorted
// by name; an s3:// URI is downloaded first and then handled like a local
// path. On error, temporary directories created so far are removed.
func Resolve(ctx context.Context, args []string, cfg Config) (*Resolved, error) {
	r := &Resolved{tmpRoot: cfg.TmpDir, keep: cfg.KeepTemp}
	if cfg.TmpDir != "" {
		if err := os.MkdirAll(cfg.TmpDir, 0o755); err != nil {
			return nil, fmt.Errorf("create tmp dir: %w", err)
		}
	}
	for _, arg := range args {
		if err := r.add(ctx, arg, cfg); err != nil {
			r.keep = false
			r.Cleanup(ctx)
			return nil, err
		}
	}
	return r, nil
}

func (r *Resolved) add(ctx context.Context, arg string, cfg Config) error {
	if !s3fetch.IsS3URI(arg) {
		return r.addLocal(ctx, arg, arg, "")
	}

	if cfg.Fetcher == nil {
		return fmt.Errorf("%s: no S3 client configured", arg)
	}
	dir, err := os.MkdirTemp(r.tmpRoot, archive.DirPrefix+"s3_")
	if err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	r.tempDirs = append(r.tempDirs, dir)

	path, res, err := cfg.Fetcher.Fetch(ctx, arg, dir)
	if err != nil {
		return fmt.Errorf("%w: %w", xlog.ErrFileRead, err)
	}
	log := logctx.FromContext(ctx)
	log.Info().
		Str("event", "s3_downloaded").
		Str("uri", arg).
		Int64("bytes", res.BytesDownloaded).
		Int64("duration_ms", res.Duration.Milliseconds()).
		Msg("downloaded input")

	// Downloaded inputs are written next to the working directory.
	return r.addLocal(ctx, path, arg, ".")
}

func (r *Resolved) addLocal(ctx context.Context, path, origin, outDir string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", xlog.ErrFileRead, err)
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}

	switch {
	case info.IsDir():
		return r.addMembers(path, origin, path)
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		dir, err := archive.Extract(ctx, path, r.tmpRoot)
		if err != nil {
			return err
		}
		r.tempDirs = append(r.tempDirs, dir)
		return r.addMembers(dir, origin, outDir)
	default:
		r.Inputs = append(r.Inputs, Input{
			Path:   path,
			Name:   filepath.Base(path),
			Origin: origin,
			OutDir: outDir,
			Size:   info.Size(),
		})
		return nil
	}
}

func (r *Resolved) addMembers(dir, origin, outDir string) error {
	files, err := archive.ListMatching(dir, XlogExt)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s: %w", origin, xlog.ErrNoArchiveMembers)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("%w: %w", xlog.ErrFileRead, err)
		}
		r.Inputs = append(r.Inputs, Input{
			Path:   f,
			Name:   filepath.Base(f),
			Origin: origin,
			OutDir: outDir,
			Size:   info.Size(),
		})
	}
	return nil
}
