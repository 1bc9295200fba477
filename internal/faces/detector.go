package faces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Kind names a detection strategy.
type Kind string

const (
	// KindCascade is the pure-Go Haar cascade.
	KindCascade Kind = "cascade"
	// KindNative decodes and prepares images in libvips.
	KindNative Kind = "native"
	// KindModel embeds cascade proposals with an ONNX model.
	KindModel Kind = "model"
)

// ErrUnknownDetector is returned for an unrecognized strategy name.
var ErrUnknownDetector = errors.New("unknown face detector")

// ParseKind maps a configuration value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCascade, KindNative, KindModel:
		return k, nil
	case "":
		return KindCascade, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDetector, s)
	}
}

// Config selects and tunes a strategy.
type Config struct {
	Kind         Kind
	MaxDimension int
	// ModelPath is the ONNX embedding model. Without it the model strategy
	// detects nothing.
	ModelPath string
	// RuntimeLibrary overrides the onnxruntime shared library location.
	RuntimeLibrary string
}

// Detector is a tagged union over the strategies: exactly one backend field
// is set, matching kind. Strategies holding native resources confine them to
// their own pinned thread.
type Detector struct {
	kind    Kind
	cascade *Cascade
	native  *nativeBackend
	model   *modelBackend
	maxDim  int
}

// New builds the strategy named by cfg.Kind.
func New(cfg Config) (*Detector, error) {
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	if cfg.Kind == "" {
		cfg.Kind = KindCascade
	}

	d := &Detector{kind: cfg.Kind, maxDim: cfg.MaxDimension}
	switch cfg.Kind {
	case KindCascade:
		d.cascade = NewCascade()
	case KindNative:
		nb, err := newNativeBackend(cfg.MaxDimension)
		if err != nil {
			return nil, fmt.Errorf("start native detector: %w", err)
		}
		d.native = nb
	case KindModel:
		if cfg.ModelPath == "" {
			logging.Warn("Face detector %q has no model configured; no faces will be detected", cfg.Kind)
			break
		}
		mb, err := newModelBackend(cfg.ModelPath, cfg.RuntimeLibrary, cfg.MaxDimension)
		if err != nil {
			return nil, fmt.Errorf("start model detector: %w", err)
		}
		d.model = mb
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, cfg.Kind)
	}

	logging.Info("Face detector ready: %s (max dimension %d)", d.kind, d.maxDim)
	return d, nil
}

// Kind returns the active strategy.
func (d *Detector) Kind() Kind {
	return d.kind
}

// Detect finds faces in the image at path. Boxes are in source pixels and
// returned faces carry mediaID but no ID.
func (d *Detector) Detect(ctx context.Context, path, mediaID string) ([]catalog.Face, error) {
	start := time.Now()
	label := string(d.kind)

	var f *frame
	var dets []Detection
	var err error

	switch d.kind {
	case KindCascade:
		_, f, err = loadFrame(path, d.maxDim)
		if err == nil {
			dets = d.cascade.Detect(f.plane)
		}
	case KindNative:
		f, dets, err = d.native.detect(ctx, path)
	case KindModel:
		if d.model == nil {
			return nil, nil
		}
		f, dets, err = d.model.detect(ctx, path)
	}

	metrics.FaceDetectionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FaceDetectionErrors.WithLabelValues(label).Inc()
		return nil, fmt.Errorf("detect faces in %s: %w", path, err)
	}

	now := time.Now()
	out := make([]catalog.Face, 0, len(dets))
	for _, det := range dets {
		out = append(out, catalog.Face{
			MediaID:    mediaID,
			Embedding:  det.Embedding,
			BBox:       f.toSource(det.Box),
			Confidence: det.Confidence,
			DetectedAt: now,
		})
	}
	metrics.FaceDetectionsTotal.WithLabelValues(label).Add(float64(len(out)))
	logging.Debug("Detected %d faces in %s (%s, %v)", len(out), path, label, time.Since(start))
	return out, nil
}

// Close releases native resources held by the strategy.
func (d *Detector) Close() error {
	switch {
	case d.native != nil:
		d.native.close()
		ShutdownVips()
	case d.model != nil:
		d.model.close()
	}
	return nil
}
