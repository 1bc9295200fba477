// Package events publishes scan and face-detection progress to NATS.
//
// NATSSink implements indexer.ProgressSink, so it can be combined with the
// log and channel sinks through indexer.MultiSink:
//
//	sink, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
//	scanner.SetProgressSink(indexer.MultiSink{indexer.LogSink{}, sink})
//
// Messages are JSON-encoded indexer.Event values. The subject is the
// configured prefix followed by the event kind, e.g. media_catalog.scan.completed.
package events
