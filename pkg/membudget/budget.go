// Package membudget bounds how many input files are decoded at once by the
// memory they are expected to need.
//
// A decode holds its whole input plus the growing output, so the batch runner
// reserves a per-file footprint before starting and releases it when the
// output is written. Files that do not fit wait for running ones to finish.
package membudget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBudgetBytes is the fallback memory budget when system RAM cannot be detected.
const DefaultBudgetBytes uint64 = 4 * 1024 * 1024 * 1024

// MinFootprint is the smallest reservation made for one file.
const MinFootprint uint64 = 1 << 20

// BudgetSource indicates how the memory budget was determined.
type BudgetSource string

const (
	// BudgetSourceAuto50Pct indicates the budget was set to 50% of detected RAM.
	BudgetSourceAuto50Pct BudgetSource = "auto-50pct"
	// BudgetSourceDefault indicates the budget used the fallback default.
	BudgetSourceDefault BudgetSource = "default"
	// BudgetSourceCLI indicates the budget was set via CLI flag.
	BudgetSourceCLI BudgetSource = "cli"
	// BudgetSourceEnv indicates the budget was set via environment variable.
	BudgetSourceEnv BudgetSource = "env"
	// BudgetSourceConfig indicates the budget came from the config file.
	BudgetSourceConfig BudgetSource = "config"
)

// Budget tracks reserved bytes against a fixed total. Callers reserve before
// loading a file and release when done.
//
// Budget is safe for concurrent use.
type Budget struct {
	total  uint64
	inUse  atomic.Uint64
	source BudgetSource

	mu   sync.Mutex
	cond *sync.Cond
}

// Config holds configuration for creating a Budget.
type Config struct {
	TotalBytes uint64
	Source     BudgetSource
}

// New creates a new Budget with the given configuration.
func New(cfg Config) *Budget {
	b := &Budget{
		total:  cfg.TotalBytes,
		source: cfg.Source,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// NewFromSystemRAM creates a Budget set to 50% of system RAM.
// If RAM cannot be detected, uses DefaultBudgetBytes.
func NewFromSystemRAM() *Budget {
	if ram, ok := totalSystemMemory(); ok && ram > 0 {
		return New(Config{TotalBytes: ram / 2, Source: BudgetSourceAuto50Pct})
	}
	return New(Config{TotalBytes: DefaultBudgetBytes, Source: BudgetSourceDefault})
}

// Total returns the total budget in bytes.
func (b *Budget) Total() uint64 {
	return b.total
}

// InUse returns the currently reserved bytes.
func (b *Budget) InUse() uint64 {
	return b.inUse.Load()
}

// Source returns how the budget was determined.
func (b *Budget) Source() BudgetSource {
	return b.source
}

// Footprint estimates the memory needed to decode a file of size bytes: the
// input plus an output of about the same size. The result is at least
// MinFootprint and never more than the total, so any single file can run.
func (b *Budget) Footprint(size int64) uint64 {
	var n uint64
	if size > 0 {
		n = uint64(size) * 2
	}
	n = max(n, MinFootprint)
	return min(n, b.total)
}

// TryReserve attempts to reserve n bytes without blocking.
func (b *Budget) TryReserve(n uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tryReserveLocked(n)
}

// Reserve blocks until n bytes can be reserved or ctx is done.
// Returns an error if the reservation is impossible (n > total).
func (b *Budget) Reserve(ctx context.Context, n uint64) error {
	if n > b.total {
		return fmt.Errorf("reservation of %d bytes exceeds total budget of %d bytes", n, b.total)
	}

	// Wake waiters on cancellation so they can observe ctx.Err().
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.tryReserveLocked(n) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}
	return nil
}

func (b *Budget) tryReserveLocked(n uint64) bool {
	current := b.inUse.Load()
	if current+n > b.total {
		return false
	}
	b.inUse.Store(current + n)
	return true
}

// Release returns n bytes to the available pool.
func (b *Budget) Release(n uint64) {
	b.mu.Lock()
	current := b.inUse.Load()
	if n > current {
		n = current
	}
	b.inUse.Store(current - n)
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Stats is a snapshot of budget usage.
type Stats struct {
	TotalBytes     uint64
	InUseBytes     uint64
	AvailableBytes uint64
	Source         BudgetSource
	UsagePercent   float64
}

// Stats returns current budget statistics.
func (b *Budget) Stats() Stats {
	inUse := b.inUse.Load()
	var available uint64
	if inUse < b.total {
		available = b.total - inUse
	}
	var usagePct float64
	if b.total > 0 {
		usagePct = float64(inUse) / float64(b.total) * 100.0
	}
	return Stats{
		TotalBytes:     b.total,
		InUseBytes:     inUse,
		AvailableBytes: available,
		Source:         b.source,
		UsagePercent:   usagePct,
	}
}

// ParseHumanSize parses a human-readable size string (e.g., "4GiB", "512MB").
// Supported suffixes: B, KB, KiB, K, MB, MiB, M, GB, GiB, G, TB, TiB, T.
func ParseHumanSize(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty size string")
	}

	numEnd := 0
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			numEnd = i
			break
		}
		numEnd = i + 1
	}

	numStr := s[:numEnd]
	suffix := s[numEnd:]

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number: %s", numStr)
	}

	multiplier, ok := sizeSuffixes[suffix]
	if !ok {
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}
	return uint64(num * multiplier), nil
}

var sizeSuffixes = map[string]float64{
	"": 1, "B": 1,
	"KB": 1e3, "KiB": 1 << 10, "K": 1 << 10,
	"MB": 1e6, "MiB": 1 << 20, "M": 1 << 20,
	"GB": 1e9, "GiB": 1 << 30, "G": 1 << 30,
	"TB": 1e12, "TiB": 1 << 40, "T": 1 << 40,
}
