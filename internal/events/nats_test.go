package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-catalog/internal/indexer"
	"media-catalog/internal/metrics"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []message
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{subject: subject, data: data})
	return nil
}

func TestNATSSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, "catalog")

	before := testutil.ToFloat64(metrics.EventsPublishedTotal.WithLabelValues("nats", "ok"))

	sink.Publish(indexer.Event{
		Kind:      indexer.EventScanCompleted,
		SessionID: "s1",
		Status:    "completed",
		Stats:     indexer.ScanStats{FilesScanned: 3, FilesAdded: 2, FilesUpdated: 1},
	})

	if len(pub.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(pub.msgs))
	}
	if got := pub.msgs[0].subject; got != "catalog.scan.completed" {
		t.Errorf("subject = %q, want catalog.scan.completed", got)
	}

	var ev indexer.Event
	if err := json.Unmarshal(pub.msgs[0].data, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev.SessionID != "s1" || ev.Stats.FilesAdded != 2 {
		t.Errorf("decoded event = %+v", ev)
	}

	if got := testutil.ToFloat64(metrics.EventsPublishedTotal.WithLabelValues("nats", "ok")) - before; got != 1 {
		t.Errorf("ok counter delta = %v, want 1", got)
	}
}

func TestNATSSinkDefaultSubject(t *testing.T) {
	sink := NewNATSSink(&fakePublisher{}, "")
	if got := sink.Subject(indexer.EventFacesDetected); got != "media_catalog.faces.detected" {
		t.Errorf("Subject = %q, want media_catalog.faces.detected", got)
	}
}

func TestNATSSinkCountsFailures(t *testing.T) {
	sink := NewNATSSink(&fakePublisher{err: errors.New("no servers")}, "catalog")

	before := testutil.ToFloat64(metrics.EventsPublishedTotal.WithLabelValues("nats", "error"))
	sink.Publish(indexer.Event{Kind: indexer.EventScanProgress})

	if got := testutil.ToFloat64(metrics.EventsPublishedTotal.WithLabelValues("nats", "error")) - before; got != 1 {
		t.Errorf("error counter delta = %v, want 1", got)
	}
	if err := sink.Ping(); err != nil {
		t.Errorf("Ping() without owned connection = %v, want nil", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
