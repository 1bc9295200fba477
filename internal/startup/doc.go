// Package startup loads configuration and provides startup/shutdown logging.
//
// # Configuration
//
// [Load] builds a [Config] in layers, later layers winning:
//
//  1. built-in defaults ([DefaultConfig])
//  2. a YAML file named by the --config flag or CONFIG_FILE
//  3. environment variables, after a .env file in the working directory is
//     loaded into the environment
//
// The result is checked with go-playground/validator struct tags.
//
// Environment variables:
//
//   - DATABASE_DRIVER: sqlite3 (default), sqlite or postgres
//   - DATABASE_DIR / DATABASE_PATH: SQLite location (default: /database/catalog.db)
//   - POSTGRES_DSN, POSTGRES_MAX_CONNS: Postgres catalog
//   - AUTO_SCAN_PATHS: comma-separated roots rescanned by serve
//   - SCAN_INTERVAL: rescan interval as Go duration (default: 30m);
//     SCAN_INTERVAL_MINUTES is still accepted
//   - CLUSTER_INTERVAL: standalone clustering pass interval (default: off)
//   - SCAN_WORKERS: extraction producers (default: 3)
//   - EXTRACT_TIMEOUT: per-file extraction timeout (default: none)
//   - SKIP_HIDDEN: skip dot files and directories (default: true)
//   - ENABLE_FACE_DETECTION: detect faces in images (default: true)
//   - FACE_DETECTOR: cascade, native or model; USE_OPENCV=true selects native
//   - FACE_MODEL_PATH, ONNXRUNTIME_LIB: model strategy files
//   - FACE_MAX_DIMENSION: detection plane size (default: 1280)
//   - CLUSTER_THRESHOLD, MERGE_THRESHOLD, MERGE_SAMPLE_CAP: clustering tuning
//   - NATS_URL, NATS_SUBJECT: progress event publishing
//   - OPS_PORT: ops server port (default: 9090)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// MEMORY_LIMIT and MEMORY_RATIO are read by package memory before Load runs.
//
// [LoadConfig] wraps Load with the startup banner, the configuration dump
// and the database directory checks.
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: catalog initialization timing
//   - [LogDetectorInit]: face detection strategy
//   - [LogSchedulerInit]: scheduled rescans
//   - [LogHTTPRoutes]: registered ops routes (full table at debug level)
//   - [LogServerStarted]: endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]
package startup
