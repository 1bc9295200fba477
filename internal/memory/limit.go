package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"media-catalog/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// The rest covers libvips and onnxruntime allocations, which the Go runtime
// does not see.
const DefaultRatio = 0.75

// Limit describes how the process memory limit was set.
type Limit struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configured reports whether a soft memory limit is in effect.
func (l Limit) Configured() bool {
	return l.GoMemLimit > 0
}

// ConfigureLimit applies a soft memory limit from the environment. An
// explicit GOMEMLIMIT is left alone and reported. Otherwise MEMORY_LIMIT
// (container bytes, e.g. from the Kubernetes Downward API) times
// MEMORY_RATIO (default DefaultRatio) becomes the limit.
func ConfigureLimit() Limit {
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		l := Limit{Source: "none"}
		if cur := debug.SetMemoryLimit(-1); cur > 0 && cur < math.MaxInt64 {
			l = Limit{Source: "GOMEMLIMIT", GoMemLimit: cur}
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return l
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set; no soft memory limit")
		return Limit{Source: "none"}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio, err := parseRatio(os.Getenv("MEMORY_RATIO"))
	if err != nil {
		logging.Warn("%v; using %.2f", err, DefaultRatio)
	}

	l := Limit{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: container,
		GoMemLimit:     int64(float64(container) * ratio),
		Ratio:          ratio,
	}
	debug.SetMemoryLimit(l.GoMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(l.GoMemLimit)), ratio*100, humanize.IBytes(uint64(container)))
	return l
}

// parseRatio returns DefaultRatio for an empty string, and DefaultRatio with
// an error for anything outside (0, 1].
func parseRatio(s string) (float64, error) {
	if s == "" {
		return DefaultRatio, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultRatio, fmt.Errorf("invalid MEMORY_RATIO %q: %w", s, err)
	}
	if r <= 0 || r > 1 {
		return DefaultRatio, fmt.Errorf("MEMORY_RATIO %q out of range (0, 1]", s)
	}
	return r, nil
}
