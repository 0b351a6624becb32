package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

var logrusLevels = map[LogLevel]logrus.Level{
	LevelError: logrus.ErrorLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelDebug: logrus.DebugLevel,
	LevelTrace: logrus.TraceLevel,
}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name (case-insensitive) to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, n := range levelNames {
		if n == upper {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger provides leveled, component-scoped logging on top of logrus.
// All loggers derived from the same root share its level and output.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
	out   *sink
}

// sink tracks the log file the root logger opened, if any.
type sink struct {
	mu   sync.Mutex
	file *os.File
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("FLATFS")

		// Set initial log level from environment
		if level := os.Getenv("LOG_LEVEL"); level != "" {
			if parsed, err := ParseLevel(level); err == nil {
				defaultLogger.SetLevel(parsed)
			}
		}

		// Enable debug logging if FUSE_DEBUG is set
		if os.Getenv("FUSE_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// NewLogger creates a new root logger with the given prefix
func NewLogger(prefix string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	if os.Getenv("LOG_LONGFILE") != "" {
		base.SetReportCaller(true)
	}

	return &Logger{
		base:  base,
		entry: logrus.NewEntry(base).WithField("component", prefix),
		out:   &sink{},
	}
}

// Configure applies the output settings shared by every logger derived
// from l. format is "text" or "json"; output is "stdout", "stderr" or a
// file path opened for appending.
func (l *Logger) Configure(level, format, output string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(parsed)

	switch strings.ToLower(format) {
	case "", "text":
		l.base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000000",
		})
	case "json":
		l.base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	switch output {
	case "", "stdout":
		l.setOutput(os.Stdout, nil)
	case "stderr":
		l.setOutput(os.Stderr, nil)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		l.setOutput(f, f)
	}
	return nil
}

// SetOutput redirects every logger derived from l. A log file opened by
// Configure is closed.
func (l *Logger) SetOutput(w io.Writer) {
	l.setOutput(w, nil)
}

// setOutput switches the shared writer and closes the file it replaces.
// owned is the file backing w when the logger opened it itself.
func (l *Logger) setOutput(w io.Writer, owned *os.File) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	l.base.SetOutput(w)
	if prev := l.out.file; prev != nil && prev != owned {
		if err := prev.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file %s: %v\n", prev.Name(), err)
		}
	}
	l.out.file = owned
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	if lv, ok := logrusLevels[level]; ok {
		l.base.SetLevel(lv)
	}
}

// IsLevelEnabled reports whether messages at level would be emitted.
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	lv, ok := logrusLevels[level]
	return ok && l.base.IsLevelEnabled(lv)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.entry.Tracef(format, args...)
}

// WithPrefix creates a new logger for a named component. It shares the
// level and output of l.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		base:  l.base,
		entry: l.entry.WithField("component", prefix),
		out:   l.out,
	}
}

// WithField returns a logger that attaches key=value to every message.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		base:  l.base,
		entry: l.entry.WithField(key, value),
		out:   l.out,
	}
}
