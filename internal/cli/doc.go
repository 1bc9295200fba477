// Package cli implements the media-catalog command line.
//
//	media-catalog scan [root...]           scan trees (default: AUTO_SCAN_PATHS)
//	media-catalog reprocess <media-id>...  re-extract and re-detect records
//	media-catalog cluster                  assign ungrouped faces, merge groups
//	media-catalog groups list|rename|merge manage face groups
//	media-catalog sessions                 recent scan sessions
//	media-catalog serve                    scheduled rescans and the ops server
//	media-catalog version                  build information
//
// Every command reads configuration through startup.Load; --config names a
// YAML file and --format json switches output to JSON. On a terminal, scan
// draws a live progress line from the scanner's event stream.
package cli
