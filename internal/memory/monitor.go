package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config sets the monitor thresholds as fractions of the memory limit.
type Config struct {
	// LimitBytes overrides the runtime soft limit (0 = use GOMEMLIMIT).
	LimitBytes int64
	// High is where a paused monitor resumes.
	High float64
	// Critical is where the monitor pauses extraction.
	Critical float64
	Interval time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		High:     0.7,
		Critical: 0.85,
		Interval: 2 * time.Second,
	}
}

// Monitor samples heap usage and pauses scan extraction while it sits
// above the critical threshold. Without a memory limit it never pauses.
type Monitor struct {
	cfg   Config
	limit int64
	// sample reads the current heap allocation.
	sample func() uint64

	mu      sync.Mutex
	current uint64
	paused  bool
	resume  chan struct{}

	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewMonitor builds a monitor. Call Start to begin sampling.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.High <= 0 {
		cfg.High = def.High
	}
	if cfg.Critical <= 0 {
		cfg.Critical = def.Critical
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}

	limit := cfg.LimitBytes
	if limit == 0 {
		if cur := debug.SetMemoryLimit(-1); cur > 0 && cur < 1<<62 {
			limit = cur
		}
	}

	return &Monitor{
		cfg:    cfg,
		limit:  limit,
		sample: heapAlloc,
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// Enabled reports whether a limit is known.
func (m *Monitor) Enabled() bool {
	return m.limit > 0
}

// Start begins sampling in the background. It is a no-op without a limit.
func (m *Monitor) Start() {
	if !m.Enabled() {
		logging.Debug("Memory monitor disabled: no memory limit")
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	logging.Info("Memory monitor watching %s limit (pause at %.0f%%, resume below %.0f%%)",
		humanize.IBytes(uint64(m.limit)), m.cfg.Critical*100, m.cfg.High*100)
	go m.loop()
}

// Stop ends sampling and releases any waiters.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
		m.mu.Lock()
		if m.paused {
			m.paused = false
			close(m.resume)
			metrics.MemoryPaused.Set(0)
		}
		m.mu.Unlock()
	})
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

// check samples once and updates the paused state.
func (m *Monitor) check() {
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.cfg.Critical && !m.paused:
		logging.Warn("Memory at %.1f%% of limit, pausing extraction", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case usage < m.cfg.High && m.paused:
		logging.Info("Memory at %.1f%% of limit, resuming extraction", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while the monitor is paused. It returns ctx.Err() if ctx
// ends first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resume := m.resume
	m.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether extraction is currently held back.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled allocation and its fraction of the limit.
func (m *Monitor) Usage() (current uint64, limit int64, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 {
		ratio = float64(m.current) / float64(m.limit)
	}
	return m.current, m.limit, ratio
}
