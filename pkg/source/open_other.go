//go:build !unix

package source

import (
	"fmt"
	"os"

	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

// Open reads the file at path into memory.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xlog.ErrFileRead, err)
	}
	return &File{path: path, data: data, size: int64(len(data))}, nil
}
