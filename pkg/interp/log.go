package interp

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level for logs.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Logger is the interface the engine logs through. Step-level detail goes to
// Debugf; nothing in the engine logs above Info.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogger writes leveled, timestamped lines to a writer.
type StdLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level LogLevel
}

// NewStdLogger creates a logger that drops messages above the given level.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	return &StdLogger{w: w, level: level}
}

func (l *StdLogger) logf(level LogLevel, format string, args ...any) {
	if level > l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s [%s] %s\n",
		time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *StdLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *StdLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *StdLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// NopLogger returns a logger that discards everything; it is the default
// when none is configured.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
