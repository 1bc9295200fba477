package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"media-catalog/internal/clustering"
	"media-catalog/internal/indexer"
)

type fakeScanner struct {
	mu    sync.Mutex
	roots []string
}

func (f *fakeScanner) Scan(_ context.Context, root string) (indexer.ScanStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots = append(f.roots, root)
	return indexer.ScanStats{FilesScanned: 1}, nil
}

func (f *fakeScanner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.roots)
}

type fakeClusterer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeClusterer) Incremental(context.Context) (clustering.AssignResult, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return clustering.AssignResult{}, 0, nil
}

func (f *fakeClusterer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerRunsOnStart(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	clusterer := &fakeClusterer{}
	s, err := New(scanner, clusterer, Config{
		Roots:           []string{"/a", "/b"},
		ScanInterval:    time.Hour,
		ClusterInterval: time.Hour,
		RunOnStart:      true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	defer s.Stop()

	waitFor(t, "both scans", func() bool { return scanner.count() == 2 })
	waitFor(t, "clustering", func() bool { return clusterer.count() == 1 })

	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	jobs := s.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("Jobs() = %d, want 3", len(jobs))
	}
	tags := map[string]bool{}
	for _, j := range jobs {
		tags[j.Tag] = true
	}
	for _, want := range []string{"scan:/a", "scan:/b", "cluster"} {
		if !tags[want] {
			t.Errorf("missing job %q in %v", want, jobs)
		}
	}
}

func TestSchedulerWaitsForSchedule(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, err := New(scanner, nil, Config{Roots: []string{"/a"}, ScanInterval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := scanner.count(); got != 0 {
		t.Fatalf("scans before first interval = %d, want 0", got)
	}

	s.RunAll()
	waitFor(t, "manual run", func() bool { return scanner.count() == 1 })
}

func TestSchedulerConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "roots without interval", cfg: Config{Roots: []string{"/a"}}},
		{name: "cluster interval without clusterer", cfg: Config{ClusterInterval: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&fakeScanner{}, nil, tt.cfg); err == nil {
				t.Error("New() = nil error, want failure")
			}
		})
	}
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeScanner{}, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
