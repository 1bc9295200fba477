package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"completed", "cancelled", "invalid_root"} {
		ScanRunsTotal.WithLabelValues(status)
	}
	for _, result := range []string{"added", "updated", "error"} {
		ScanFilesTotal.WithLabelValues(result)
	}
	for _, kind := range []string{"image", "video", "audio"} {
		ExtractDuration.WithLabelValues(kind)
		CatalogMediaTotal.WithLabelValues(kind)
	}

	for _, detector := range []string{"cascade", "native", "model"} {
		FaceDetectionsTotal.WithLabelValues(detector)
		FaceDetectionErrors.WithLabelValues(detector)
		FaceDetectionDuration.WithLabelValues(detector)
	}

	for _, outcome := range []string{"joined", "created"} {
		ClusterAssignmentsTotal.WithLabelValues(outcome)
	}
	for _, pass := range []string{"assign", "merge"} {
		ClusterPassDuration.WithLabelValues(pass)
	}

	for _, sink := range []string{"channel", "nats"} {
		for _, status := range []string{"ok", "dropped", "error"} {
			EventsPublishedTotal.WithLabelValues(sink, status)
		}
	}

	volumes := []string{"media", "database", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "read"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_media", "get_media_by_path", "get_media_by_id",
		"mark_faces_processed", "insert_face", "get_faces", "delete_faces", "list_ungrouped_faces",
		"list_representatives", "reassign_group", "create_group", "merge_group", "list_groups",
		"rename_group", "create_scan_session", "update_scan_session", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
