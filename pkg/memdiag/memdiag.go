// Package memdiag logs heap usage next to the decode memory budget while a
// batch runs.
//
// Enable with XLOG_MEM_DEBUG=1. XLOG_MEM_PPROF=1 also serves pprof on :6060.
package memdiag

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	// Registers pprof handlers on DefaultServeMux for the pprof HTTP server.
	_ "net/http/pprof"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/humanfmt"
	"github.com/eunmann/xlog-decoder/pkg/membudget"
)

// Config holds configuration for memory diagnostics.
type Config struct {
	Enabled      bool
	PprofEnabled bool
	LogInterval  time.Duration
}

// DefaultConfig reads the configuration from the environment.
func DefaultConfig() Config {
	return Config{
		Enabled:      os.Getenv("XLOG_MEM_DEBUG") == "1",
		PprofEnabled: os.Getenv("XLOG_MEM_PPROF") == "1",
		LogInterval:  5 * time.Second,
	}
}

// Tracker samples the heap periodically and remembers the peak.
type Tracker struct {
	config Config
	budget *membudget.Budget

	mu       sync.Mutex
	peakHeap uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTracker creates a tracker. budget may be nil.
func NewTracker(config Config, budget *membudget.Budget) *Tracker {
	if config.LogInterval <= 0 {
		config.LogInterval = 5 * time.Second
	}
	return &Tracker{config: config, budget: budget}
}

// Start begins periodic logging through the logger in ctx. It is a no-op
// when diagnostics are disabled or already running.
func (t *Tracker) Start(ctx context.Context) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	log := logctx.FromContext(ctx)
	log.Info().Msg("memory diagnostics enabled")
	if t.config.PprofEnabled {
		go func() {
			log.Info().Str("addr", ":6060").Msg("starting pprof server")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.loop(ctx)
}

// Stop ends periodic logging after a final sample.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PeakHeap returns the largest heap allocation sampled so far.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Sample(ctx, "shutdown")
			return
		case <-ticker.C:
			t.Sample(ctx, "periodic")
		}
	}
}

// Sample reads runtime memory statistics, updates the peak and logs them at
// debug level alongside the budget reservation.
func (t *Tracker) Sample(ctx context.Context, reason string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	t.mu.Lock()
	t.peakHeap = max(t.peakHeap, m.HeapAlloc)
	peak := t.peakHeap
	t.mu.Unlock()

	log := logctx.FromContext(ctx)
	ev := log.Debug().
		Str("reason", reason).
		Str("heap_alloc", humanfmt.Bytes(int64(m.HeapAlloc))).
		Str("heap_sys", humanfmt.Bytes(int64(m.HeapSys))).
		Str("peak_heap", humanfmt.Bytes(int64(peak))).
		Uint32("num_gc", m.NumGC)
	if t.budget != nil {
		bs := t.budget.Stats()
		ev = ev.
			Str("budget_in_use", humanfmt.Bytes(int64(bs.InUseBytes))).
			Str("budget_total", humanfmt.Bytes(int64(bs.TotalBytes))).
			Float64("budget_used_pct", bs.UsagePercent)
	}
	ev.Msg("memory stats")
}
