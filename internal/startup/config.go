package startup

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"media-catalog/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	DatabaseDriver   string `yaml:"database_driver" validate:"oneof=sqlite3 sqlite postgres"`
	DatabaseDir      string `yaml:"database_dir"`
	DatabasePath     string `yaml:"database_path" validate:"required_unless=DatabaseDriver postgres"`
	PostgresDSN      string `yaml:"postgres_dsn" validate:"required_if=DatabaseDriver postgres"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns" validate:"gte=1,lte=1000"`

	AutoScanPaths   []string      `yaml:"auto_scan_paths" validate:"dive,required"`
	ScanInterval    time.Duration `yaml:"scan_interval" validate:"gte=0"`
	ClusterInterval time.Duration `yaml:"cluster_interval" validate:"gte=0"`
	ScanWorkers     int           `yaml:"scan_workers" validate:"gte=1,lte=256"`
	ExtractTimeout  time.Duration `yaml:"extract_timeout" validate:"gte=0"`
	SkipHidden      bool          `yaml:"skip_hidden"`

	FaceDetection  bool    `yaml:"face_detection"`
	FaceDetector   string  `yaml:"face_detector" validate:"oneof=cascade native model"`
	FaceModelPath  string  `yaml:"face_model_path"`
	OnnxRuntimeLib string  `yaml:"onnxruntime_lib"`
	MaxDimension   int     `yaml:"max_dimension" validate:"gte=64"`
	ClusterThresh  float64 `yaml:"cluster_threshold" validate:"gt=0,lte=1"`
	MergeThresh    float64 `yaml:"merge_threshold" validate:"gt=0,lte=1"`
	MergeSampleCap int     `yaml:"merge_sample_cap" validate:"gte=1"`

	NATSURL     string `yaml:"nats_url" validate:"omitempty,url"`
	NATSSubject string `yaml:"nats_subject" validate:"required"`

	OpsPort        string `yaml:"ops_port" validate:"required,numeric"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	LogLevel       string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
}

// DefaultConfig returns the built-in defaults, the lowest configuration layer.
func DefaultConfig() Config {
	return Config{
		DatabaseDriver:   "sqlite3",
		DatabaseDir:      "/database",
		PostgresMaxConns: 10,
		ScanInterval:     30 * time.Minute,
		ScanWorkers:      3,
		SkipHidden:       true,
		FaceDetection:    true,
		FaceDetector:     "cascade",
		MaxDimension:     1280,
		ClusterThresh:    0.7,
		MergeThresh:      0.7,
		MergeSampleCap:   1000,
		NATSSubject:      "media_catalog",
		OpsPort:          "9090",
		MetricsEnabled:   true,
		LogLevel:         "info",
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at configFile (or CONFIG_FILE), and environment variables,
// after loading a .env file from the working directory when one exists.
// The result is validated.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to load .env: %v", err)
	}

	cfg := DefaultConfig()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := loadYAML(configFile, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	if cfg.DatabasePath == "" && cfg.DatabaseDriver != "postgres" {
		cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "catalog.db")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDir = getEnv("DATABASE_DIR", cfg.DatabaseDir)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresMaxConns = int32(getEnvInt("POSTGRES_MAX_CONNS", int(cfg.PostgresMaxConns)))

	if v := os.Getenv("AUTO_SCAN_PATHS"); v != "" {
		cfg.AutoScanPaths = splitList(v)
	}

	// SCAN_INTERVAL_MINUTES is the older spelling; SCAN_INTERVAL wins.
	if mins := getEnvInt("SCAN_INTERVAL_MINUTES", 0); mins > 0 {
		cfg.ScanInterval = time.Duration(mins) * time.Minute
	}
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", cfg.ScanInterval)
	cfg.ClusterInterval = getEnvDuration("CLUSTER_INTERVAL", cfg.ClusterInterval)
	cfg.ScanWorkers = getEnvInt("SCAN_WORKERS", cfg.ScanWorkers)
	cfg.ExtractTimeout = getEnvDuration("EXTRACT_TIMEOUT", cfg.ExtractTimeout)
	cfg.SkipHidden = getEnvBool("SKIP_HIDDEN", cfg.SkipHidden)

	cfg.FaceDetection = getEnvBool("ENABLE_FACE_DETECTION", cfg.FaceDetection)
	if getEnvBool("USE_OPENCV", false) {
		cfg.FaceDetector = "native"
	}
	cfg.FaceDetector = strings.ToLower(getEnv("FACE_DETECTOR", cfg.FaceDetector))
	cfg.FaceModelPath = getEnv("FACE_MODEL_PATH", cfg.FaceModelPath)
	cfg.OnnxRuntimeLib = getEnv("ONNXRUNTIME_LIB", cfg.OnnxRuntimeLib)
	cfg.MaxDimension = getEnvInt("FACE_MAX_DIMENSION", cfg.MaxDimension)
	cfg.ClusterThresh = getEnvFloat("CLUSTER_THRESHOLD", cfg.ClusterThresh)
	cfg.MergeThresh = getEnvFloat("MERGE_THRESHOLD", cfg.MergeThresh)
	cfg.MergeSampleCap = getEnvInt("MERGE_SAMPLE_CAP", cfg.MergeSampleCap)

	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getEnv("NATS_SUBJECT", cfg.NATSSubject)

	cfg.OpsPort = getEnv("OPS_PORT", cfg.OpsPort)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Field(), describeTag(fe), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// RedactedDSN hides the password of a connection URL for logging.
func RedactedDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
