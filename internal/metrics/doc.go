// Package metrics provides Prometheus instrumentation for the media catalog.
//
// All metrics are registered with promauto on package load and prefixed with
// "media_catalog_". Call InitializeMetrics once at startup so every label
// combination is exported from the first scrape.
//
// # Metric Categories
//
// ## Scan Metrics
//
//   - ScanRunsTotal: scans by final status
//   - ScanFilesTotal: files by result (added, updated, error)
//   - ScanDuration, ScansInProgress, ScanLastRunTimestamp
//   - ScanEnumeratedFiles: candidates found by the last enumeration
//   - ScanWorkers: extraction producers in use
//   - ExtractDuration: per-file fact extraction time by media kind
//
// ## Face Metrics
//
//   - FaceDetectionsTotal, FaceDetectionErrors, FaceDetectionDuration by strategy
//   - ClusterAssignmentsTotal by outcome, ClusterMergesTotal
//   - ClusterPassDuration by pass
//
// ## Catalog Metrics
//
// Refreshed by Collector from the store's Stats:
//   - CatalogMediaTotal by kind, CatalogFacesTotal, CatalogGroupsTotal
//
// ## Database Metrics
//
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBConnectionsOpen
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver:
//   - FilesystemOperationDuration, FilesystemOperationErrors
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors, FilesystemRetryDuration
//
// ## HTTP Metrics
//
// Recorded by the ops server middleware, labelled by route template:
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Memory Metrics
//
// Set by memory.Monitor while scans run under a memory limit:
//   - MemoryUsageRatio, MemoryPaused, MemoryPausesTotal
//
// ## Event Metrics
//
//   - EventsPublishedTotal: progress events by sink and status
package metrics
