package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-catalog/internal/logging"
)

// LoggingConfig selects which requests are logged.
type LoggingConfig struct {
	// SkipPaths are path prefixes never logged.
	SkipPaths []string
	// LogHealthChecks includes /healthz and /readyz.
	LogHealthChecks bool
}

// DefaultLoggingConfig skips metric scrapes and probes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{SkipPaths: []string{"/metrics"}}
}

func (c LoggingConfig) skip(path string) bool {
	if !c.LogHealthChecks && (path == "/healthz" || path == "/readyz") {
		return true
	}
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Logger writes one W3C extended log line per request through
// logging.Printf, in the field order
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent)
//
// with time-taken in milliseconds and "-" for empty fields.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			logging.Printf("%s", accessLine(r, rec, start, time.Since(start)))
		})
	}
}

func accessLine(r *http.Request, rec *statusRecorder, start time.Time, took time.Duration) string {
	ts := start.UTC()
	fields := []string{
		ts.Format(time.DateOnly),
		ts.Format(time.TimeOnly),
		orDash(sanitizeLogField(getClientIP(r))),
		orDash(sanitizeLogField(r.Method)),
		orDash(sanitizeLogField(r.URL.Path)),
		orDash(sanitizeLogField(r.URL.RawQuery)),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.bytes, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		orDash(quoteW3C(sanitizeLogField(r.UserAgent()))),
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField drops control characters other than tab, turning CR and
// LF into spaces, so request data cannot forge log lines.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// quoteW3C wraps values containing whitespace or quotes in double quotes,
// doubling embedded quotes.
func quoteW3C(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getClientIP prefers the first X-Forwarded-For hop over RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
