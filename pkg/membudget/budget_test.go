package membudget

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBudgetBasic(t *testing.T) {
	budget := New(Config{TotalBytes: 1000, Source: BudgetSourceCLI})

	if budget.Total() != 1000 {
		t.Errorf("Total() = %d, want 1000", budget.Total())
	}
	if budget.Source() != BudgetSourceCLI {
		t.Errorf("Source() = %s, want %s", budget.Source(), BudgetSourceCLI)
	}

	if !budget.TryReserve(600) {
		t.Fatal("TryReserve(600) failed")
	}
	if budget.TryReserve(500) {
		t.Error("TryReserve(500) succeeded past the total")
	}
	budget.Release(600)
	if budget.InUse() != 0 {
		t.Errorf("InUse() = %d after release, want 0", budget.InUse())
	}

	budget.Release(10)
	if budget.InUse() != 0 {
		t.Errorf("over-release underflowed: InUse() = %d", budget.InUse())
	}
}

func TestNewFromSystemRAM(t *testing.T) {
	budget := NewFromSystemRAM()

	if budget.Total() == 0 {
		t.Error("budget total is zero")
	}
	if budget.Source() != BudgetSourceAuto50Pct && budget.Source() != BudgetSourceDefault {
		t.Errorf("Source = %s, want auto-50pct or default", budget.Source())
	}
}

func TestFootprint(t *testing.T) {
	budget := New(Config{TotalBytes: 64 << 20})

	tests := []struct {
		size int64
		want uint64
	}{
		{0, MinFootprint},
		{100, MinFootprint},
		{4 << 20, 8 << 20},
		{1 << 30, 64 << 20},
	}
	for _, tt := range tests {
		if got := budget.Footprint(tt.size); got != tt.want {
			t.Errorf("Footprint(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestReserveWaitsForRelease(t *testing.T) {
	budget := New(Config{TotalBytes: 100})
	if err := budget.Reserve(context.Background(), 80); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- budget.Reserve(context.Background(), 50)
	}()

	select {
	case <-done:
		t.Fatal("Reserve returned before memory was released")
	case <-time.After(20 * time.Millisecond):
	}

	budget.Release(80)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reserve did not wake after release")
	}
	if budget.InUse() != 50 {
		t.Errorf("InUse() = %d, want 50", budget.InUse())
	}
}

func TestReserveCancelled(t *testing.T) {
	budget := New(Config{TotalBytes: 100})
	budget.TryReserve(100)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := budget.Reserve(ctx, 10); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Reserve error = %v, want DeadlineExceeded", err)
	}
}

func TestReserveTooLarge(t *testing.T) {
	budget := New(Config{TotalBytes: 100})
	if err := budget.Reserve(context.Background(), 101); err == nil {
		t.Error("expected error for reservation above total")
	}
}

func TestStats(t *testing.T) {
	budget := New(Config{TotalBytes: 200, Source: BudgetSourceEnv})
	budget.TryReserve(50)

	s := budget.Stats()
	if s.InUseBytes != 50 || s.AvailableBytes != 150 || s.UsagePercent != 25 || s.Source != BudgetSourceEnv {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"100B", 100, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{"1K", 1024, false},
		{"1MB", 1000000, false},
		{"1MiB", 1024 * 1024, false},
		{"1GiB", 1024 * 1024 * 1024, false},
		{"4GiB", 4 * 1024 * 1024 * 1024, false},
		{"0.5GiB", 512 * 1024 * 1024, false},
		{"", 0, true},
		{"XYZ", 0, true},
		{"100XB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseHumanSize(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHumanSize(%q) should error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHumanSize(%q) error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseHumanSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
