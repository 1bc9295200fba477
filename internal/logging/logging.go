package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel orders message severities; higher is more severe.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lower-case level name.
func (l LogLevel) String() string {
	if l >= LevelDebug && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", l)
}

// prefix is the tag written in front of every message at this level.
func (l LogLevel) prefix() string {
	return "[" + strings.ToUpper(l.String()) + "] "
}

var (
	threshold atomic.Int32
	envOnce   sync.Once
)

// fromEnv seeds the threshold on first use. DEBUG=1/true/yes/on forces
// debug; otherwise LOG_LEVEL applies, defaulting to info.
func fromEnv() {
	envOnce.Do(func() {
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			threshold.Store(int32(LevelDebug))
			return
		}
		level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
		threshold.Store(int32(level))
	})
}

// ParseLevel maps a level name, case-insensitively, to a LogLevel. Unknown
// names yield LevelInfo and false. "warning" is accepted for warn.
func ParseLevel(s string) (LogLevel, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return LevelWarn, true
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

// SetLevel replaces the threshold taken from the environment.
func SetLevel(level LogLevel) {
	fromEnv()
	threshold.Store(int32(level))
}

// GetLevel returns the current threshold.
func GetLevel() LogLevel {
	fromEnv()
	return LogLevel(threshold.Load())
}

// IsDebugEnabled reports whether Debug messages are written.
func IsDebugEnabled() bool {
	return enabled(LevelDebug)
}

func enabled(level LogLevel) bool {
	return GetLevel() <= level
}

func logf(level LogLevel, format string, args []interface{}) {
	if enabled(level) {
		log.Printf(level.prefix()+format, args...)
	}
}

func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args) }
func Info(format string, args ...interface{})  { logf(LevelInfo, format, args) }
func Warn(format string, args ...interface{})  { logf(LevelWarn, format, args) }
func Error(format string, args ...interface{}) { logf(LevelError, format, args) }

// Printf writes through the standard logger whatever the level. Access
// logs use it so the level never hides them.
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
