package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.xlog")
	want := bytes.Repeat([]byte{0x08, 0x01, 0x00}, 1000)
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Size() != int64(len(want)) {
		t.Errorf("Size() = %d, want %d", f.Size(), len(want))
	}
	if !bytes.Equal(f.Bytes(), want) {
		t.Error("Bytes() differ from file contents")
	}
	if f.Path() != path {
		t.Errorf("Path() = %q", f.Path())
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlog")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if f.Size() != 0 || len(f.Bytes()) != 0 {
		t.Errorf("Size() = %d, len(Bytes()) = %d", f.Size(), len(f.Bytes()))
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xlog"))
	if !errors.Is(err, xlog.ErrFileRead) {
		t.Errorf("error = %v, want ErrFileRead", err)
	}
}

func TestFromBytes(t *testing.T) {
	f := FromBytes("mem", []byte("abc"))
	if f.Size() != 3 || string(f.Bytes()) != "abc" || f.Path() != "mem" {
		t.Errorf("unexpected file: %+v", f)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
