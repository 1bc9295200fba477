package indexer

import (
	"sync/atomic"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// EventKind names a progress event.
type EventKind string

const (
	EventScanStarted   EventKind = "scan.started"
	EventScanProgress  EventKind = "scan.progress"
	EventScanCompleted EventKind = "scan.completed"
	EventFacesDetected EventKind = "faces.detected"
)

// Event reports scan or detection progress. Scan events carry the session
// counters; face events carry the media id and the number of faces stored.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId,omitempty"`
	RootPath  string    `json:"rootPath,omitempty"`
	Status    string    `json:"status,omitempty"`
	Total     int       `json:"total,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Stats     ScanStats `json:"stats"`
	MediaID   string    `json:"mediaId,omitempty"`
	Path      string    `json:"path,omitempty"`
	Faces     int       `json:"faces,omitempty"`
	Time      time.Time `json:"time"`
}

// ProgressSink receives events from the scanner's consumer goroutine.
// Publish must not block for long; slow sinks should buffer or drop.
type ProgressSink interface {
	Publish(Event)
}

// DiscardSink drops every event.
type DiscardSink struct{}

// Publish implements ProgressSink.
func (DiscardSink) Publish(Event) {}

// LogSink writes events to the application log.
type LogSink struct{}

// Publish implements ProgressSink.
func (LogSink) Publish(ev Event) {
	switch ev.Kind {
	case EventScanStarted:
		logging.Info("Scan %s started: %s (%d candidates)", ev.SessionID, ev.RootPath, ev.Total)
	case EventScanProgress:
		logging.Info("Scan %s progress: %d/%d processed (added: %d, updated: %d, errors: %d)",
			ev.SessionID, ev.Processed, ev.Total, ev.Stats.FilesAdded, ev.Stats.FilesUpdated, ev.Stats.ErrorCount)
	case EventScanCompleted:
		logging.Info("Scan %s %s: scanned %d, added %d, updated %d, errors %d",
			ev.SessionID, ev.Status, ev.Stats.FilesScanned, ev.Stats.FilesAdded, ev.Stats.FilesUpdated, ev.Stats.ErrorCount)
	case EventFacesDetected:
		logging.Debug("Detected %d faces in %s", ev.Faces, ev.Path)
	}
}

// ChanSink forwards events to a buffered channel, dropping them when the
// channel is full.
type ChanSink struct {
	C       chan Event
	dropped atomic.Int64
}

// NewChanSink returns a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

// Publish implements ProgressSink.
func (s *ChanSink) Publish(ev Event) {
	select {
	case s.C <- ev:
		metrics.EventsPublishedTotal.WithLabelValues("channel", "ok").Inc()
	default:
		s.dropped.Add(1)
		metrics.EventsPublishedTotal.WithLabelValues("channel", "dropped").Inc()
	}
}

// Dropped returns the number of events lost to a full buffer.
func (s *ChanSink) Dropped() int64 {
	return s.dropped.Load()
}

// MultiSink fans events out to every sink in order.
type MultiSink []ProgressSink

// Publish implements ProgressSink.
func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}
