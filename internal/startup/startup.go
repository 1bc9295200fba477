package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"media-catalog/internal/logging"
)

// LoadConfig is Load plus the serve-time preamble: banner, system and
// configuration dump, and for SQLite an absolute, existing and writable
// database directory.
func LoadConfig(configFile string) (*Config, error) {
	printBanner()

	cfg, err := Load(configFile)
	if err != nil {
		return nil, err
	}
	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logging.SetLevel(level)
	}
	dumpConfig(cfg)

	if cfg.DatabaseDriver == "postgres" {
		return cfg, nil
	}
	if err := prepareDatabaseDir(cfg); err != nil {
		return nil, err
	}
	for _, root := range cfg.AutoScanPaths {
		if err := checkDir(root); err != nil {
			logging.Warn("  Scan root %s: %v", root, err)
		}
	}
	return cfg, nil
}

func prepareDatabaseDir(cfg *Config) error {
	section("DIRECTORY SETUP")

	abs, err := filepath.Abs(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	cfg.DatabasePath = abs
	dir := filepath.Dir(abs)
	logging.Info("  Database directory: %s", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if err := checkDir(dir); err != nil {
		return fmt.Errorf("database directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write probe %s: %v", name, err)
	}
	logging.Info("  [OK] Database directory is writable")
	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errors.New("directory does not exist")
	case err != nil:
		return err
	case !info.IsDir():
		return errors.New("path exists but is not a directory")
	}
	return nil
}

func dumpConfig(cfg *Config) {
	section("CONFIGURATION")
	row := func(key string, value any) { logging.Info("  %-22s %v", key+":", value) }

	row("DATABASE_DRIVER", cfg.DatabaseDriver)
	if cfg.DatabaseDriver == "postgres" {
		row("POSTGRES_DSN", RedactedDSN(cfg.PostgresDSN))
	} else {
		row("DATABASE_PATH", cfg.DatabasePath)
	}
	row("AUTO_SCAN_PATHS", strings.Join(cfg.AutoScanPaths, ", "))
	row("SCAN_INTERVAL", cfg.ScanInterval)
	row("SCAN_WORKERS", cfg.ScanWorkers)
	row("EXTRACT_TIMEOUT", cfg.ExtractTimeout)
	row("ENABLE_FACE_DETECTION", cfg.FaceDetection)
	row("FACE_DETECTOR", cfg.FaceDetector)
	if cfg.FaceModelPath != "" {
		row("FACE_MODEL_PATH", cfg.FaceModelPath)
	}
	row("CLUSTER_THRESHOLD", fmt.Sprintf("%.2f", cfg.ClusterThresh))
	row("MERGE_THRESHOLD", fmt.Sprintf("%.2f", cfg.MergeThresh))
	row("NATS_URL", RedactedDSN(cfg.NATSURL))
	row("OPS_PORT", cfg.OpsPort)
	row("METRICS_ENABLED", cfg.MetricsEnabled)
	row("LOG_LEVEL", logging.GetLevel())
}

func printBanner() {
	fmt.Println(rule)
	fmt.Println("  media-catalog", Version)
	fmt.Println(rule)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("  Go:         %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:       %d (GOMAXPROCS %d)", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:   %s", host)
	}
}
