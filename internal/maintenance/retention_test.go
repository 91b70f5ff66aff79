package maintenance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"steward/internal/config"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	pruned  int64
	err     error
}

func (f *fakePruner) Prune(olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, olderThan)
	return f.pruned, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestNewRetentionDisabled(t *testing.T) {
	r, err := NewRetention(config.RetentionConfig{Enabled: false}, &fakePruner{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Error("expected nil retention when disabled")
	}
}

func TestNewRetentionInvalidMaxAge(t *testing.T) {
	tests := []struct {
		name   string
		maxAge time.Duration
	}{
		{name: "zero", maxAge: 0},
		{name: "negative", maxAge: -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.RetentionConfig{
				Enabled:  true,
				MaxAge:   tt.maxAge,
				Schedule: "0 3 * * *",
			}
			if _, err := NewRetention(cfg, &fakePruner{}); err == nil {
				t.Error("expected error for non-positive max_age")
			}
		})
	}
}

func TestNewRetentionInvalidSchedule(t *testing.T) {
	cfg := config.RetentionConfig{
		Enabled:  true,
		MaxAge:   24 * time.Hour,
		Schedule: "not-a-schedule",
	}
	if _, err := NewRetention(cfg, &fakePruner{}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestRetentionSweep(t *testing.T) {
	pruner := &fakePruner{pruned: 3}
	cfg := config.RetentionConfig{
		Enabled:  true,
		MaxAge:   24 * time.Hour,
		Schedule: "0 3 * * *",
	}
	r, err := NewRetention(cfg, pruner)
	if err != nil {
		t.Fatalf("NewRetention: %v", err)
	}

	before := time.Now()
	r.sweep()

	if pruner.calls() != 1 {
		t.Fatalf("Prune called %d times, want 1", pruner.calls())
	}
	cutoff := pruner.cutoffs[0]
	want := before.Add(-24 * time.Hour)
	if cutoff.Before(want.Add(-time.Second)) || cutoff.After(want.Add(time.Second)) {
		t.Errorf("cutoff %v not within 1s of %v", cutoff, want)
	}
}

func TestRetentionSweepError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db locked")}
	cfg := config.RetentionConfig{
		Enabled:  true,
		MaxAge:   time.Hour,
		Schedule: "@hourly",
	}
	r, err := NewRetention(cfg, pruner)
	if err != nil {
		t.Fatalf("NewRetention: %v", err)
	}

	// Must not panic; the error is logged and the schedule continues.
	r.sweep()

	if pruner.calls() != 1 {
		t.Errorf("Prune called %d times, want 1", pruner.calls())
	}
}

func TestRetentionStartStop(t *testing.T) {
	cfg := config.RetentionConfig{
		Enabled:  true,
		MaxAge:   time.Hour,
		Schedule: "@hourly",
	}
	r, err := NewRetention(cfg, &fakePruner{})
	if err != nil {
		t.Fatalf("NewRetention: %v", err)
	}

	r.Start()
	r.Stop()
}
