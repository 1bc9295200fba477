package metrics

import (
	"context"
	"time"

	"media-catalog/internal/logging"
)

// Stats is a snapshot of catalog contents.
type Stats struct {
	MediaByKind map[string]int
	Faces       int
	Groups      int
	OpenConns   int
}

// StatsProvider supplies catalog statistics. Both catalog backends
// implement it.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// mediaKinds are always exported, at zero when the catalog has none.
var mediaKinds = []string{"image", "video", "audio"}

// Collector refreshes the catalog gauges from a StatsProvider on a fixed
// interval, starting immediately.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector returns a stopped collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		timeout:  10 * time.Second,
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
}

// Stop ends the loop, cancelling an in-flight refresh, and waits for it.
// It is a no-op before Start.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Collector) refresh(ctx context.Context) {
	if c.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, err := c.provider.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("Catalog stats refresh failed: %v", err)
		}
		return
	}
	publish(s)
}

func publish(s Stats) {
	for _, kind := range mediaKinds {
		CatalogMediaTotal.WithLabelValues(kind).Set(float64(s.MediaByKind[kind]))
	}
	CatalogFacesTotal.Set(float64(s.Faces))
	CatalogGroupsTotal.Set(float64(s.Groups))
	DBConnectionsOpen.Set(float64(s.OpenConns))
	logging.Debug("Catalog stats: media=%v faces=%d groups=%d", s.MediaByKind, s.Faces, s.Groups)
}
