package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"media-catalog/internal/catalog"
	"media-catalog/internal/clustering"
	"media-catalog/internal/database"
	"media-catalog/internal/extract"
	"media-catalog/internal/faces"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/memory"
	"media-catalog/internal/metrics"
	"media-catalog/internal/pgstore"
	"media-catalog/internal/startup"
)

// backend is a catalog store that can also be probed and counted.
type backend interface {
	catalog.Store
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (metrics.Stats, error)
}

var (
	_ backend = (*database.Database)(nil)
	_ backend = (*pgstore.Store)(nil)
)

// app holds the components a command runs against.
type app struct {
	cfg      *startup.Config
	store    backend
	engine   *clustering.Engine
	detector *faces.Detector
	scanner  *indexer.Scanner
	monitor  *memory.Monitor
}

// appOptions adjusts what newApp builds.
type appOptions struct {
	// noFaces skips building a detector even when detection is enabled.
	noFaces bool
	workers int
}

func openStore(ctx context.Context, cfg *startup.Config) (backend, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return pgstore.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	case database.DriverCGO, database.DriverPure:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return database.New(ctx, cfg.DatabaseDriver, cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// installFilesystemMetrics labels retrying file access by scan root and
// database directory.
func installFilesystemMetrics(cfg *startup.Config) {
	volumes := make(map[string]string, len(cfg.AutoScanPaths)+1)
	for _, root := range cfg.AutoScanPaths {
		if abs, err := filepath.Abs(root); err == nil {
			volumes[filepath.Base(abs)] = abs
		}
	}
	if cfg.DatabaseDriver != "postgres" {
		volumes["database"] = filepath.Dir(cfg.DatabasePath)
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
}

func newApp(ctx context.Context, cfg *startup.Config, o appOptions) (*app, error) {
	installFilesystemMetrics(cfg)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	a := &app{
		cfg:   cfg,
		store: store,
		engine: clustering.New(store, clustering.Config{
			Threshold:      cfg.ClusterThresh,
			MergeThreshold: cfg.MergeThresh,
			SampleCap:      cfg.MergeSampleCap,
		}),
	}

	workers := cfg.ScanWorkers
	if o.workers > 0 {
		workers = o.workers
	}
	a.scanner = indexer.New(store, extract.New(), indexer.Config{
		Workers:        workers,
		ExtractTimeout: cfg.ExtractTimeout,
		SkipHidden:     cfg.SkipHidden,
	})
	a.scanner.SetClusterer(a.engine)

	a.monitor = memory.NewMonitor(memory.DefaultConfig())
	a.monitor.Start()
	a.scanner.SetThrottle(a.monitor)

	if cfg.FaceDetection && !o.noFaces {
		kind, err := faces.ParseKind(cfg.FaceDetector)
		if err != nil {
			a.Close()
			return nil, err
		}
		det, err := faces.New(faces.Config{
			Kind:           kind,
			MaxDimension:   cfg.MaxDimension,
			ModelPath:      cfg.FaceModelPath,
			RuntimeLibrary: cfg.OnnxRuntimeLib,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.detector = det
		a.scanner.SetDetector(det)
	}

	return a, nil
}

// Close releases the detector and the store.
func (a *app) Close() error {
	a.monitor.Stop()
	var errs []error
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if err := a.store.Close(); err != nil {
		logging.Warn("Failed to close catalog: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
