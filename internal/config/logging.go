package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
)

// logTimeFormat is the timestamp layout of every log line.
const logTimeFormat = "2006-01-02 15:04:05.000"

// ParseLogLevel parses a log level string. Unknown values mean error.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelDebug:
		return "debug"
	default:
		return "error"
	}
}

// sink is the file every named view of a logger writes to.
type sink struct {
	mu    sync.Mutex
	level LogLevel
	out   io.WriteCloser
}

func (s *sink) write(level LogLevel, name, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil || s.level == LogLevelOff || level > s.level {
		return
	}
	if name != "" {
		msg = name + ": " + msg
	}
	_, _ = fmt.Fprintf(s.out, "%s [%s] %s\n",
		time.Now().Format(logTimeFormat), strings.ToUpper(level.String()), msg)
}

// Logger writes leveled lines to a log file. Loggers returned by Named share
// the file and level of their parent and prefix their lines with a component name.
type Logger struct {
	sink *sink
	name string
}

// NewLogger opens (appending) the log file at filePath. Nothing is opened when
// level is off or filePath is empty.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	l := &Logger{sink: &sink{level: level}}
	if level == LogLevelOff || filePath == "" {
		return l, nil
	}

	filePath, err := ExpandPath(filePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l.sink.out = f
	return l, nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{sink: &sink{level: LogLevelOff}}
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// Named returns a logger for one component. Nested names are joined with dots.
func (l *Logger) Named(name string) *Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &Logger{sink: l.sink, name: name}
}

// Name returns the component name, empty for the root logger.
func (l *Logger) Name() string {
	return l.name
}

// Close closes the log file. Every named view shares it.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.out == nil {
		return nil
	}
	return l.sink.out.Close()
}

// SetLevel changes the log level of the logger and all of its named views.
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.sink.write(LogLevelDebug, l.name, fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.sink.write(LogLevelError, l.name, fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer that logs each write as one line at level.
func (l *Logger) Writer(level LogLevel) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.sink.write(level, l.name, strings.TrimSpace(string(p)))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
