// Package archive unpacks zip archives of xlog files into a private temporary
// directory and lists the members to decode.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/logging"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// DirPrefix names every extraction directory.
const DirPrefix = "xlogdecode_"

// Extract unpacks zipPath into a new directory under tmpRoot (os.TempDir when
// empty) and returns it. Entries whose names would escape that directory are
// rejected. On error the directory is removed.
func Extract(ctx context.Context, zipPath, tmpRoot string) (string, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}
	dir := filepath.Join(tmpRoot, DirPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: open archive %s: %w", xlog.ErrFileRead, zipPath, err)
	}
	defer zr.Close()

	var files int
	var bytes int64
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
		n, err := extractEntry(dir, zf)
		if err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("extract %s from %s: %w", zf.Name, zipPath, err)
		}
		if n >= 0 {
			files++
			bytes += n
		}
	}

	logging.ArchiveExtracted(log, "extract", time.Since(start)).
		Str("archive", zipPath).
		Str("dir", dir).
		Int("files", files).
		Bytes("bytes", bytes).
		Log("archive extracted")
	return dir, nil
}

// extractEntry writes one entry below dir. It returns -1 for directories.
func extractEntry(dir string, zf *zip.File) (int64, error) {
	name := filepath.FromSlash(zf.Name)
	if !filepath.IsLocal(name) {
		return 0, fmt.Errorf("entry escapes extraction directory")
	}
	dest := filepath.Join(dir, name)

	if zf.FileInfo().IsDir() {
		return -1, os.MkdirAll(dest, 0o755)
	}
	if !zf.Mode().IsRegular() {
		// Symlinks and devices are never xlog files.
		return -1, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	rc, err := zf.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// ListMatching returns the regular files under dir whose extension equals ext
// (case-insensitive), sorted by base name and then by full path. Hidden files
// and macOS resource fork directories are skipped.
func ListMatching(dir, ext string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || name == "__MACOSX") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ext) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		bi, bj := filepath.Base(matches[i]), filepath.Base(matches[j])
		if bi != bj {
			return bi < bj
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}

// Cleanup removes an extraction directory. Failures are logged, not returned:
// a leftover temp directory never invalidates decoded output.
func Cleanup(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log := logctx.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("event", "archive_cleanup_failed").
			Str("dir", dir).
			Msg("failed to remove extraction directory")
	}
}
