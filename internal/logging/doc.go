// Package logging writes leveled messages through the standard library
// logger, each tagged [DEBUG], [INFO], [WARN] or [ERROR].
//
// The threshold is read from DEBUG or LOG_LEVEL on first use; startup
// replaces it with SetLevel once configuration has loaded. Printf bypasses
// the threshold.
package logging
