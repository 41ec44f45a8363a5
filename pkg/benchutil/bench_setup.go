package benchutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SkipIfNoLongBench skips the benchmark if XLOG_LONG_BENCH is not set.
// Use this to gate long-running benchmarks that shouldn't run by default.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("XLOG_LONG_BENCH") == "" {
		b.Skip("set XLOG_LONG_BENCH=1 to run scaling benchmark")
	}
}

// WriteFixture writes data to dir/name and returns the path.
func WriteFixture(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write fixture: %v", err)
	}
	return path
}

// Concat joins record buffers into one file image.
func Concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
