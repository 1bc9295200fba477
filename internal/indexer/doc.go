// Package indexer ingests media trees into the catalog.
//
// A Scan enumerates every media file under a root, then extracts facts on
// a pool of producers that feed a bounded channel. The goroutine that
// called Scan drains the channel and performs every catalog write:
//   - look the record up by path to classify it as added or updated
//   - upsert it
//   - for images, detect faces, replace the stored ones and run the
//     incremental clustering step when any face was stored
//
// The scan session is checkpointed every CheckpointEvery processed items
// and finalized as completed (even with errors) or cancelled.
//
// Supported file types:
//   - Images: jpg, jpeg, png, gif, bmp, webp, tiff, tif, svg, ico, heic, heif
//   - Videos: mp4, avi, mov, wmv, flv, mkv, webm, m4v, mpg, mpeg, 3gp, ts
//   - Audio: mp3, wav, flac, aac, ogg, wma, m4a, opus, aiff, ape
//
// Hidden files and directories (prefixed with '.') are skipped by default.
// Scans never delete records.
//
// Progress is reported to a ProgressSink: LogSink (the default), ChanSink,
// MultiSink, or the NATS sink in package events.
package indexer
