package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("Exists returned true for non-existent file")
	}

	path := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists returned false for existing file")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(t.TempDir(), "nested", "app.xlog.log")

	content := []byte("decoded text\n")
	err := WriteTmpThenMove(tmpDir, outPath, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Content mismatch: got %q, want %q", got, content)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("tmp dir not empty after successful write: %v", entries)
	}
}

func TestWriteTmpThenMoveDefaultsToOutputDir(t *testing.T) {
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "a.log")

	if err := WriteTmpThenMove("", outPath, func(w io.Writer) error {
		_, err := io.WriteString(w, "a")
		return err
	}); err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 1 || entries[0].Name() != "a.log" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestWriteTmpThenMoveError(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(t.TempDir(), "output.log")

	err := WriteTmpThenMove(tmpDir, outPath, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("error = %v, want ErrPermission", err)
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("tmp file left after failed write: %v", entries)
	}
	if Exists(outPath) {
		t.Error("Output file exists after failed write")
	}
}
