package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"media-catalog/internal/clustering"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
)

// Scanner runs one scan of a root.
type Scanner interface {
	Scan(ctx context.Context, root string) (indexer.ScanStats, error)
}

// Clusterer runs an assign-then-merge pass.
type Clusterer interface {
	Incremental(ctx context.Context) (clustering.AssignResult, int, error)
}

// Config lists the scheduled work.
type Config struct {
	// Roots are rescanned every ScanInterval.
	Roots        []string
	ScanInterval time.Duration
	// ClusterInterval runs a standalone clustering pass (0 = disabled).
	ClusterInterval time.Duration
	// RunOnStart runs every job as soon as the scheduler starts instead of
	// waiting one interval.
	RunOnStart bool
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Tag      string    `json:"tag"`
	LastRun  time.Time `json:"lastRun,omitempty"`
	NextRun  time.Time `json:"nextRun"`
	RunCount int       `json:"runCount"`
}

// Scheduler runs periodic rescans and clustering passes. A job never
// overlaps with its own previous run.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []*gocron.Job

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New registers one job per root and, when enabled, a clustering job.
// clusterer may be nil when ClusterInterval is 0.
func New(scanner Scanner, clusterer Clusterer, cfg Config) (*Scheduler, error) {
	if len(cfg.Roots) > 0 && cfg.ScanInterval <= 0 {
		return nil, errors.New("scan interval must be positive")
	}
	if cfg.ClusterInterval > 0 && clusterer == nil {
		return nil, errors.New("cluster interval set without a clusterer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.scheduler.SingletonModeAll()

	for _, root := range cfg.Roots {
		job, err := s.every(cfg.ScanInterval, cfg.RunOnStart, "scan:"+root, func() {
			s.runScan(scanner, root)
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule scan of %s: %w", root, err)
		}
		s.jobs = append(s.jobs, job)
	}

	if cfg.ClusterInterval > 0 {
		job, err := s.every(cfg.ClusterInterval, cfg.RunOnStart, "cluster", func() {
			s.runCluster(clusterer)
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule clustering: %w", err)
		}
		s.jobs = append(s.jobs, job)
	}

	return s, nil
}

func (s *Scheduler) every(interval time.Duration, immediate bool, tag string, task func()) (*gocron.Job, error) {
	sched := s.scheduler.Every(interval).Tag(tag)
	if !immediate {
		sched = sched.WaitForSchedule()
	}
	return sched.Do(task)
}

func (s *Scheduler) runScan(scanner Scanner, root string) {
	logging.Info("Scheduled scan of %s starting", root)
	stats, err := scanner.Scan(s.ctx, root)
	switch {
	case errors.Is(err, context.Canceled):
		logging.Info("Scheduled scan of %s cancelled after %d files", root, stats.FilesScanned)
	case err != nil:
		logging.Error("Scheduled scan of %s failed: %v", root, err)
	default:
		logging.Info("Scheduled scan of %s done: scanned %d, added %d, updated %d, errors %d",
			root, stats.FilesScanned, stats.FilesAdded, stats.FilesUpdated, stats.ErrorCount)
	}
}

func (s *Scheduler) runCluster(clusterer Clusterer) {
	res, merged, err := clusterer.Incremental(s.ctx)
	if err != nil {
		logging.Error("Scheduled clustering failed: %v", err)
		return
	}
	logging.Info("Scheduled clustering: %d joined, %d new groups, %d merges", res.Assigned, res.Created, merged)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logging.Warn("Scheduler is already running")
		return
	}
	s.scheduler.StartAsync()
	s.running = true
	logging.Info("Scheduler started with %d jobs", len(s.jobs))
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if !s.running {
		return
	}
	s.scheduler.Stop()
	s.running = false
	logging.Info("Scheduler stopped")
}

// IsRunning reports whether Start has been called without Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunAll triggers every job now, outside its schedule.
func (s *Scheduler) RunAll() {
	s.scheduler.RunAll()
}

// Jobs describes the registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		info := JobInfo{
			LastRun:  job.LastRun(),
			NextRun:  job.NextRun(),
			RunCount: job.RunCount(),
		}
		if tags := job.Tags(); len(tags) > 0 {
			info.Tag = tags[0]
		}
		out = append(out, info)
	}
	return out
}
