package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// DefaultSubject prefixes every published subject.
const DefaultSubject = "media_catalog"

// Publisher is the part of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes progress events as JSON on "<subject>.<kind>", for
// example "media_catalog.scan.progress". Publishing is fire-and-forget;
// failures are logged and counted.
type NATSSink struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

var _ indexer.ProgressSink = (*NATSSink)(nil)

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject}
}

// Connect dials url and returns a sink that owns the connection. The client
// keeps reconnecting in the background; events published while it is
// disconnected are buffered by the client.
func Connect(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("media-catalog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logging.Info("Publishing progress events to %s on %s.>", url, subjectOrDefault(subject))
	s := NewNATSSink(nc, subject)
	s.conn = nc
	return s, nil
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return DefaultSubject
	}
	return subject
}

// Subject returns the subject an event of kind is published on.
func (s *NATSSink) Subject(kind indexer.EventKind) string {
	return s.subject + "." + string(kind)
}

// Publish implements indexer.ProgressSink.
func (s *NATSSink) Publish(ev indexer.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Error("Failed to marshal %s event: %v", ev.Kind, err)
		metrics.EventsPublishedTotal.WithLabelValues("nats", "error").Inc()
		return
	}

	if err := s.pub.Publish(s.Subject(ev.Kind), payload); err != nil {
		logging.Warn("Failed to publish %s event: %v", ev.Kind, err)
		metrics.EventsPublishedTotal.WithLabelValues("nats", "error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("nats", "ok").Inc()
}

// Ping reports whether the owned connection is up. Sinks built with
// NewNATSSink always report healthy.
func (s *NATSSink) Ping() error {
	if s.conn != nil && !s.conn.IsConnected() {
		return fmt.Errorf("nats not connected (status %s)", s.conn.Status())
	}
	return nil
}

// Close flushes pending messages and closes an owned connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
