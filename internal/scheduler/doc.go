// Package scheduler runs periodic rescans of the configured roots and,
// optionally, standalone clustering passes, on a gocron scheduler in
// singleton mode.
package scheduler
