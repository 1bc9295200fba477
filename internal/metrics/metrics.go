package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_queries_total",
			Help: "Total number of catalog store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_query_duration_seconds",
			Help:    "Catalog store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_connections_open",
			Help: "Number of open catalog store connections",
		},
	)
)

// Scan metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_runs_total",
			Help: "Total number of scans by final status",
		},
		[]string{"status"}, // "completed", "cancelled", "invalid_root"
	)

	ScanFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_files_total",
			Help: "Files processed by scans, by result",
		},
		[]string{"result"}, // "added", "updated", "error"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_scan_duration_seconds",
			Help:    "Duration of a full scan in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
	)

	ScansInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scans_in_progress",
			Help: "Number of scans currently running",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_last_run_timestamp",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScanWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_workers",
			Help: "Number of extraction producers used by the current or last scan",
		},
	)

	ScanEnumeratedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_enumerated_files",
			Help: "Candidate files found by the most recent enumeration",
		},
	)

	ExtractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_extract_duration_seconds",
			Help:    "Per-file fact extraction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"kind"},
	)
)

// Face detection metrics
var (
	FaceDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_face_detections_total",
			Help: "Faces detected, by detector strategy",
		},
		[]string{"detector"},
	)

	FaceDetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_face_detection_errors_total",
			Help: "Failed detection calls, by detector strategy",
		},
		[]string{"detector"},
	)

	FaceDetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_face_detection_duration_seconds",
			Help:    "Per-image face detection duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"detector"},
	)
)

// Clustering metrics
var (
	ClusterAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_cluster_assignments_total",
			Help: "Ungrouped faces assigned, by outcome",
		},
		[]string{"outcome"}, // "joined", "created"
	)

	ClusterMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_cluster_merges_total",
			Help: "Total number of group merges",
		},
	)

	ClusterPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_cluster_pass_duration_seconds",
			Help:    "Duration of a clustering pass in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"pass"}, // "assign", "merge"
	)
)

// Catalog content metrics
var (
	CatalogMediaTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_media_total",
			Help: "Catalogued media records by kind",
		},
		[]string{"kind"},
	)

	CatalogFacesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_faces_total",
			Help: "Total number of detected faces",
		},
	)

	CatalogGroupsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_face_groups_total",
			Help: "Total number of face groups",
		},
	)
)

// Ops HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of ops server requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "Ops server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Ops server requests currently being served",
		},
	)
)

// Progress sink metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_events_published_total",
			Help: "Progress events handed to a sink, by sink and status",
		},
		[]string{"sink", "status"}, // status: "ok", "dropped", "error"
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory pressure metrics
var (
	// MemoryUsageRatio is heap in use as a fraction of the memory limit.
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_paused",
			Help: "1 while scan extraction is paused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_memory_pauses_total",
			Help: "Times scan extraction was paused for memory pressure",
		},
	)
)
