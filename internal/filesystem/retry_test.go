package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	ops      int
	attempts int
	success  int
	failures int
	stale    int
}

func (r *recordingObserver) ObserveOperation(volume, operation string, d float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops++
}

func (r *recordingObserver) ObserveRetryAttempt(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(op, volume string, d float64) {}

func (r *recordingObserver) ObserveStaleError(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":    "/srv/media",
		"nested":   "/srv/media/archive",
		"database": "/var/lib/catalog",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/srv/media/a.jpg", "media"},
		{"/srv/media", "media"},
		{"/srv/media/archive/b.jpg", "nested"},
		{"/srv/mediaextra/c.jpg", "unknown"},
		{"/var/lib/catalog/catalog.db", "database"},
		{"/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/srv/media/a.jpg"); got != "unknown" {
		t.Errorf("nil Resolve = %q, want unknown", got)
	}
}

// The retry tests share the package-level observer and are not parallel.
func TestWithRetryRecoversFromStaleHandle(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	got, err := withRetry(context.Background(), "stat", "/srv/media/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 || obs.failures != 0 {
		t.Errorf("observer = %+v, want stale=2 attempts=2 success=1 failures=0", obs)
	}
	if obs.ops != 3 {
		t.Errorf("operations observed = %d, want 3", obs.ops)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	_, err := withRetry(context.Background(), "open", "/x", fastConfig(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("err = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "stat", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err = %v, want ErrPermission", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	_, err := withRetry(ctx, "stat", "/x", cfg, func() (int, error) {
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(context.Background(), path, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size = %d, want 5", info.Size())
	}

	f, err := OpenWithRetry(context.Background(), path, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry: %v", err)
	}
	f.Close()

	if _, err := StatWithRetry(context.Background(), filepath.Join(dir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) err = %v, want not-exist", err)
	}
}
