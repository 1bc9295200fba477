package startup

import (
	"time"

	"media-catalog/internal/logging"
)

const rule = "------------------------------------------------------------"

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

func LogDatabaseInit(driver string, took time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] %s catalog initialized in %v", driver, took)
}

func LogDetectorInit(enabled bool, kind string) {
	section("FACE DETECTION")
	if enabled {
		logging.Info("  [OK] Using %s detector", kind)
	} else {
		logging.Info("  Face detection disabled (ENABLE_FACE_DETECTION=false)")
	}
}

func LogSchedulerInit(roots []string, interval time.Duration) {
	section("SCHEDULER INITIALIZATION")
	if len(roots) == 0 {
		logging.Info("  No scheduled rescans (AUTO_SCAN_PATHS empty or SCAN_INTERVAL=0)")
		return
	}
	for _, root := range roots {
		logging.Info("  Rescan %s every %v", root, interval)
	}
}

// ServerConfig is what LogServerStarted reports.
type ServerConfig struct {
	OpsPort         string
	MetricsEnabled  bool
	Roots           []string
	StartupDuration time.Duration
}

func LogServerStarted(sc ServerConfig) {
	section("SERVER STARTED")
	base := "http://0.0.0.0:" + sc.OpsPort
	logging.Info("  Startup time:    %v", sc.StartupDuration)
	logging.Info("  Health:          %s/healthz", base)
	logging.Info("  API:             %s/api", base)
	if sc.MetricsEnabled {
		logging.Info("  Metrics:         %s/metrics", base)
	} else {
		logging.Info("  Metrics:         disabled")
	}
	logging.Info("  Scheduled roots: %d", len(sc.Roots))
	logging.Info(rule)
}

func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received " + signal + ")")
}

func LogShutdownStep(step string)         { logging.Debug("  %s...", step) }
func LogShutdownStepComplete(step string) { logging.Info("  [OK] %s", step) }
func LogShutdownComplete()                { logging.Info("  [OK] Shutdown complete") }
