package metrics

import "media-catalog/internal/filesystem"

// NewFilesystemObserver returns a filesystem.Observer that records into the
// Filesystem* collectors.
func NewFilesystemObserver() filesystem.Observer {
	return fsObserver{}
}

type fsObserver struct{}

var _ filesystem.Observer = fsObserver{}

func (fsObserver) ObserveOperation(volume, op string, seconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, op).Observe(seconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, op).Inc()
	}
}

// The retry collectors are labelled (operation, volume).

func (fsObserver) ObserveRetryAttempt(op, vol string) { FilesystemRetryAttempts.WithLabelValues(op, vol).Inc() }
func (fsObserver) ObserveRetrySuccess(op, vol string) { FilesystemRetrySuccess.WithLabelValues(op, vol).Inc() }
func (fsObserver) ObserveRetryFailure(op, vol string) { FilesystemRetryFailures.WithLabelValues(op, vol).Inc() }
func (fsObserver) ObserveStaleError(op, vol string)   { FilesystemStaleErrors.WithLabelValues(op, vol).Inc() }

func (fsObserver) ObserveRetryDuration(op, vol string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, vol).Observe(seconds)
}
