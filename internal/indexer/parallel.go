package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"
	"media-catalog/internal/workers"
)

// Scan pipeline defaults.
const (
	// DefaultScanWorkers caps the producer count; three is safe for NFS
	// and still saturates a local disk.
	DefaultScanWorkers     = 3
	DefaultQueueSize       = 100
	DefaultCheckpointEvery = 100
)

// Config tunes the scan pipeline.
type Config struct {
	// Workers is the number of extraction producers (0 = default).
	Workers int
	// QueueSize bounds the channel between producers and the consumer.
	QueueSize int
	// CheckpointEvery is the number of processed items between session
	// checkpoints.
	CheckpointEvery int
	// ExtractTimeout bounds a single file's extraction (0 = none).
	ExtractTimeout time.Duration
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
}

// DefaultConfig returns the pipeline defaults. SCAN_WORKERS overrides the
// producer count.
func DefaultConfig() Config {
	return Config{
		Workers:         workers.FromEnv("SCAN_WORKERS", workers.ForIO(DefaultScanWorkers)),
		QueueSize:       DefaultQueueSize,
		CheckpointEvery: DefaultCheckpointEvery,
		SkipHidden:      true,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = workers.FromEnv("SCAN_WORKERS", workers.ForIO(DefaultScanWorkers))
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	return c
}

// extractResult is one producer outcome.
type extractResult struct {
	path string
	rec  *catalog.MediaRecord
	err  error
}

// produce starts the extraction producers over paths. The returned channel
// is closed once every producer has exited. With one producer results keep
// the order of paths.
func (s *Scanner) produce(ctx context.Context, paths []string) <-chan extractResult {
	jobs := make(chan string)
	results := make(chan extractResult, s.cfg.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id, jobs, results)
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// worker extracts files from jobs until it is closed or ctx is done.
func (s *Scanner) worker(ctx context.Context, id int, jobs <-chan string, results chan<- extractResult) {
	logging.Debug("Scan worker %d started", id)
	defer logging.Debug("Scan worker %d finished", id)

	for path := range jobs {
		if ctx.Err() != nil {
			return
		}
		if s.throttle != nil {
			if err := s.throttle.Wait(ctx); err != nil {
				return
			}
		}

		rec, err := s.extractOne(ctx, path)

		select {
		case results <- extractResult{path: path, rec: rec, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scanner) extractOne(ctx context.Context, path string) (*catalog.MediaRecord, error) {
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}

	rec, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return rec, nil
}
