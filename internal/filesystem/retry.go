package filesystem

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"media-catalog/internal/logging"
)

// RetryConfig bounds retries of a stale file handle.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels metrics; nil uses the package default.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig allows three retries, backing off 50ms to 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c RetryConfig) volume(path string) string {
	vr := c.VolumeResolver
	if vr == nil {
		vr = defaultResolver.Load()
	}
	return vr.Resolve(path)
}

// backoff returns the delay before retry n (0-based).
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < n && d < c.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, c.MaxBackoff)
}

// isNFSStaleError reports whether err carries ESTALE.
func isNFSStaleError(err error) bool {
	return errors.Is(err, syscall.ESTALE)
}

// withRetry calls fn, retrying only ESTALE, until it succeeds, the retries
// run out or ctx ends. Every call and retry is reported to the observer.
func withRetry[T any](ctx context.Context, op, path string, cfg RetryConfig, fn func() (T, error)) (T, error) {
	obs := observe()
	vol := cfg.volume(path)
	began := time.Now()
	defer func() { obs.ObserveRetryDuration(op, vol, time.Since(began).Seconds()) }()

	var zero T
	for attempt := 0; ; attempt++ {
		callStart := time.Now()
		v, err := fn()
		obs.ObserveOperation(vol, op, time.Since(callStart).Seconds(), err)

		switch {
		case err == nil:
			if attempt > 0 {
				obs.ObserveRetrySuccess(op, vol)
				logging.Info("%s %s recovered after %d stale handle retries", op, path, attempt)
			}
			return v, nil
		case !isNFSStaleError(err):
			return zero, err
		}

		obs.ObserveStaleError(op, vol)
		if attempt == cfg.MaxRetries {
			obs.ObserveRetryFailure(op, vol)
			logging.Warn("%s %s: stale file handle persisted through %d retries: %v", op, path, cfg.MaxRetries, err)
			return zero, err
		}

		obs.ObserveRetryAttempt(op, vol)
		wait := cfg.backoff(attempt)
		logging.Debug("%s %s: stale file handle, retry %d/%d in %v", op, path, attempt+1, cfg.MaxRetries, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// StatWithRetry is os.Stat with stale handle retries.
func StatWithRetry(ctx context.Context, path string, cfg RetryConfig) (os.FileInfo, error) {
	return withRetry(ctx, "stat", path, cfg, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry is os.Open with stale handle retries.
func OpenWithRetry(ctx context.Context, path string, cfg RetryConfig) (*os.File, error) {
	return withRetry(ctx, "open", path, cfg, func() (*os.File, error) {
		return os.Open(path)
	})
}
