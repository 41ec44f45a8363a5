//go:build unix

package source

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// Open maps the file at path into memory.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xlog.ErrFileRead, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %w", xlog.ErrFileRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", xlog.ErrFileRead, path)
	}

	size := info.Size()
	if size == 0 {
		return &File{path: path}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", xlog.ErrFileRead, err)
	}

	return &File{path: path, data: data, size: size, unmap: unix.Munmap}, nil
}
