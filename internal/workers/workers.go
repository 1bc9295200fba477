package workers

import (
	"math"
	"os"
	"runtime"
	"strconv"
)

// Per-CPU multipliers for Count.
const (
	CPUBound = 1.0
	IOBound  = 2.0
)

// Count sizes a pool from GOMAXPROCS, which follows container CPU quotas.
// The result is at least 1 and, when limit > 0, at most limit.
func Count(perCPU float64, limit int) int {
	n := int(math.Floor(float64(runtime.GOMAXPROCS(0)) * perCPU))
	n = max(n, 1)
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

// ForIO sizes a pool of I/O-bound workers.
func ForIO(limit int) int {
	return Count(IOBound, limit)
}

// FromEnv reads a positive pool size from the environment variable name.
// Unset, non-numeric or non-positive values give fallback. The value is not
// capped.
func FromEnv(name string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
