package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	stats Stats
	err   error
	calls atomic.Int32
}

func (m *mockStatsProvider) Stats(ctx context.Context) (Stats, error) {
	m.calls.Add(1)
	return m.stats, m.err
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"ScanRunsTotal", ScanRunsTotal},
		{"ScanFilesTotal", ScanFilesTotal},
		{"ScanDuration", ScanDuration},
		{"ExtractDuration", ExtractDuration},
		{"FaceDetectionsTotal", FaceDetectionsTotal},
		{"ClusterAssignmentsTotal", ClusterAssignmentsTotal},
		{"ClusterMergesTotal", ClusterMergesTotal},
		{"CatalogMediaTotal", CatalogMediaTotal},
		{"EventsPublishedTotal", EventsPublishedTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetricsPopulatesLabels(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(ScanFilesTotal); n != 3 {
		t.Errorf("ScanFilesTotal series = %d, want 3", n)
	}
	if n := testutil.CollectAndCount(FaceDetectionsTotal); n != 3 {
		t.Errorf("FaceDetectionsTotal series = %d, want 3", n)
	}
	if n := testutil.CollectAndCount(ClusterAssignmentsTotal); n != 2 {
		t.Errorf("ClusterAssignmentsTotal series = %d, want 2", n)
	}
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		MediaByKind: map[string]int{"image": 7, "video": 2},
		Faces:       11,
		Groups:      4,
		OpenConns:   3,
	}}

	c := NewCollector(provider, time.Hour)
	c.Start()
	deadline := time.Now().Add(2 * time.Second)
	for provider.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if got := testutil.ToFloat64(CatalogMediaTotal.WithLabelValues("image")); got != 7 {
		t.Errorf("image gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(CatalogMediaTotal.WithLabelValues("audio")); got != 0 {
		t.Errorf("audio gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(CatalogFacesTotal); got != 11 {
		t.Errorf("faces gauge = %v, want 11", got)
	}
	if got := testutil.ToFloat64(CatalogGroupsTotal); got != 4 {
		t.Errorf("groups gauge = %v, want 4", got)
	}
}

func TestCollectorSurvivesProviderError(t *testing.T) {
	provider := &mockStatsProvider{err: errors.New("boom")}
	c := NewCollector(provider, time.Hour)
	c.refresh(context.Background())
	if provider.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", provider.calls.Load())
	}

	NewCollector(nil, time.Hour).refresh(context.Background())

	// Stop without Start must not block.
	NewCollector(provider, time.Hour).Stop()
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("stat", "media"))
	obs.ObserveRetryAttempt("stat", "media")
	if got := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("stat", "media")); got != before+1 {
		t.Errorf("retry attempts = %v, want %v", got, before+1)
	}

	errBefore := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "open"))
	obs.ObserveOperation("media", "open", 0.01, errors.New("x"))
	obs.ObserveOperation("media", "open", 0.01, nil)
	if got := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "open")); got != errBefore+1 {
		t.Errorf("operation errors = %v, want %v", got, errBefore+1)
	}
}
