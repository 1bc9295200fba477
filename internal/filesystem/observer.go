package filesystem

import "sync/atomic"

// Observer receives filesystem metrics. metrics.NewFilesystemObserver
// provides the Prometheus implementation.
type Observer interface {
	// ObserveOperation records one stat or open call.
	ObserveOperation(volume, operation string, durationSeconds float64, err error)
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	// ObserveRetryDuration records the whole retried operation.
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)              {}
func (nopObserver) ObserveRetrySuccess(string, string)              {}
func (nopObserver) ObserveRetryFailure(string, string)              {}
func (nopObserver) ObserveRetryDuration(string, string, float64)    {}
func (nopObserver) ObserveStaleError(string, string)                {}

type observerBox struct{ Observer }

var current atomic.Pointer[observerBox]

// SetObserver installs o for every later call. nil stops recording.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	current.Store(&observerBox{o})
}

func observe() Observer {
	if b := current.Load(); b != nil {
		return b.Observer
	}
	return nopObserver{}
}
