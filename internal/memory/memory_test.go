package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"
)

func TestParseRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "", want: DefaultRatio},
		{in: "0.5", want: 0.5},
		{in: "1", want: 1},
		{in: "0", want: DefaultRatio, wantErr: true},
		{in: "1.5", want: DefaultRatio, wantErr: true},
		{in: "half", want: DefaultRatio, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRatio(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseRatio(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseRatio(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigureLimitFromContainer(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	l := ConfigureLimit()
	if l.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want MEMORY_LIMIT", l.Source)
	}
	if l.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", l.GoMemLimit)
	}
	if got := debug.SetMemoryLimit(-1); got != 500000000 {
		t.Errorf("runtime limit = %d, want 500000000", got)
	}
}

func TestConfigureLimitUnset(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	if l := ConfigureLimit(); l.Configured() || l.Source != "none" {
		t.Errorf("limit = %+v, want none", l)
	}

	t.Setenv("MEMORY_LIMIT", "lots")
	if l := ConfigureLimit(); l.Configured() {
		t.Errorf("invalid MEMORY_LIMIT configured %+v", l)
	}
}

func newTestMonitor(alloc *uint64) *Monitor {
	m := NewMonitor(Config{LimitBytes: 1000, High: 0.5, Critical: 0.8, Interval: time.Hour})
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestMonitorPausesAndResumes(t *testing.T) {
	t.Parallel()

	alloc := uint64(100)
	m := newTestMonitor(&alloc)

	m.check()
	if m.Paused() {
		t.Fatal("paused at 10%")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait while running = %v", err)
	}

	alloc = 900
	m.check()
	if !m.Paused() {
		t.Fatal("not paused at 90%")
	}

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	// Between the thresholds the monitor stays paused.
	alloc = 600
	m.check()
	select {
	case <-released:
		t.Fatal("Wait returned at 60%")
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 300
	m.check()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after resume")
	}

	if cur, limit, ratio := m.Usage(); cur != 300 || limit != 1000 || ratio != 0.3 {
		t.Errorf("Usage = %d, %d, %v; want 300, 1000, 0.3", cur, limit, ratio)
	}
}

func TestMonitorWaitHonoursContext(t *testing.T) {
	t.Parallel()

	alloc := uint64(950)
	m := newTestMonitor(&alloc)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want DeadlineExceeded", err)
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	t.Parallel()

	alloc := uint64(950)
	m := newTestMonitor(&alloc)
	m.Start()
	m.check()

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	m.Stop()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not release waiter")
	}
	m.Stop()
}

func TestMonitorWithoutLimit(t *testing.T) {
	t.Parallel()

	m := &Monitor{limit: 0}
	if m.Enabled() {
		t.Error("Enabled without limit")
	}
}
