package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractAndList(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "logs.zip")
	writeZip(t, zipPath, map[string]string{
		"b/app_2.xlog":         "two",
		"a/app_1.xlog":         "one",
		"app_0.XLOG":           "zero",
		"notes.txt":            "skip",
		".hidden.xlog":         "skip",
		"__MACOSX/._app.xlog":  "skip",
		"empty/":               "",
		"deep/nested/app.xlog": "deep",
	})

	dir, err := Extract(context.Background(), zipPath, root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defer Cleanup(context.Background(), dir)

	if !strings.HasPrefix(filepath.Base(dir), DirPrefix) {
		t.Errorf("dir = %q, want prefix %q", dir, DirPrefix)
	}

	files, err := ListMatching(dir, ".xlog")
	if err != nil {
		t.Fatalf("ListMatching: %v", err)
	}
	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f)
		got = append(got, filepath.ToSlash(rel))
	}
	want := []string{"deep/nested/app.xlog", "app_0.XLOG", "a/app_1.xlog", "b/app_2.xlog"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ListMatching = %v, want %v", got, want)
	}

	data, err := os.ReadFile(files[2])
	if err != nil || string(data) != "one" {
		t.Errorf("member content = %q, %v", data, err)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.xlog": "x"})

	extractRoot := filepath.Join(root, "tmp")
	if _, err := Extract(context.Background(), zipPath, extractRoot); err == nil {
		t.Fatal("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.xlog")); !os.IsNotExist(err) {
		t.Error("escaping entry was written")
	}
	entries, _ := os.ReadDir(extractRoot)
	if len(entries) != 0 {
		t.Errorf("extraction dir left behind: %v", entries)
	}
}

func TestExtractNotAZip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "bad.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(context.Background(), path, root); !errors.Is(err, xlog.ErrFileRead) {
		t.Errorf("error = %v, want ErrFileRead", err)
	}
}

func TestCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DirPrefix+"x")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	Cleanup(context.Background(), dir)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("directory still exists after Cleanup")
	}
	Cleanup(context.Background(), "")
}
