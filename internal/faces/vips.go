//go:build !novips

package faces

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"media-catalog/internal/logging"
)

// libvips is process-global; running tracks whether Startup has been called.
var vipsState struct {
	sync.Mutex
	running bool
}

// InitVips starts libvips once per process and routes its log output through
// package logging at a verbosity matching the application level.
func InitVips() {
	vipsState.Lock()
	defer vipsState.Unlock()
	if vipsState.running {
		return
	}

	vips.LoggingSettings(forwardVipsLog, vipsLogLevel(logging.GetLevel()))
	// Detection already runs one image at a time.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 << 20,
		MaxCacheSize:     100,
	})
	vipsState.running = true
	logging.Info("libvips %s started", vips.Version)
}

// ShutdownVips releases libvips. Safe to call when it never started.
func ShutdownVips() {
	vipsState.Lock()
	defer vipsState.Unlock()
	if !vipsState.running {
		return
	}
	vips.Shutdown()
	vipsState.running = false
	logging.Debug("libvips stopped")
}

func forwardVipsLog(domain string, l vips.LogLevel, msg string) {
	switch {
	case l <= vips.LogLevelCritical:
		logging.Error("vips %s: %s", domain, msg)
	case l == vips.LogLevelWarning:
		logging.Warn("vips %s: %s", domain, msg)
	default:
		logging.Debug("vips %s: %s", domain, msg)
	}
}

func vipsLogLevel(l logging.LogLevel) vips.LogLevel {
	switch l {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

// nativeBackend decodes, rotates, converts and shrinks images in libvips on
// a pinned thread and scores the resulting plane with the Go cascade.
type nativeBackend struct {
	thread  *lockedThread
	cascade *Cascade
	maxDim  int
}

func newNativeBackend(maxDim int) (*nativeBackend, error) {
	thread, err := startLockedThread(func() error {
		InitVips()
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return &nativeBackend{thread: thread, cascade: NewCascade(), maxDim: maxDim}, nil
}

func (n *nativeBackend) detect(ctx context.Context, path string) (*frame, []Detection, error) {
	var f *frame

	err := n.thread.do(ctx, func() error {
		var err error
		f, err = vipsFrame(path, n.maxDim)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return f, n.cascade.Detect(f.plane), nil
}

// vipsFrame must run on the pinned thread. No vips reference escapes it.
func vipsFrame(path string, maxDim int) (*frame, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load %s: %w", path, err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips autorotate: %w", err)
	}
	srcW, srcH := ref.Width(), ref.Height()

	if err := ref.ToColorSpace(vips.InterpretationBW); err != nil {
		return nil, fmt.Errorf("vips grayscale: %w", err)
	}

	if longest := max(srcW, srcH); maxDim > 0 && longest > maxDim {
		if err := ref.Resize(float64(maxDim)/float64(longest), vips.KernelLinear); err != nil {
			return nil, fmt.Errorf("vips resize: %w", err)
		}
	}

	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode vips plane: %w", err)
	}

	logging.Debug("vips plane for %s: %dx%d from %dx%d",
		path, img.Bounds().Dx(), img.Bounds().Dy(), srcW, srcH)
	return &frame{plane: GrayFromImage(img), srcW: srcW, srcH: srcH}, nil
}

func (n *nativeBackend) close() {
	n.thread.stop()
}
