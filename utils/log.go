package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a -log flag value to a level; unknown names fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

type Logger struct {
	mu       sync.Mutex
	minLevel LogLevel
	prefix   string
	file     *os.File
	out      []io.Writer
}

// NewFileLogger appends to filePath and optionally mirrors to stdout.
func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &Logger{minLevel: minLevel, file: f, out: []io.Writer{f}}
	if alsoStdout {
		l.out = append(l.out, os.Stdout)
	}
	return l, nil
}

// NewWriterLogger logs to w only. Used by tests and embedded callers.
func NewWriterLogger(w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{minLevel: minLevel, out: []io.Writer{w}}
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = nil
		return err
	}
	return nil
}

func (l *Logger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetPrefix tags every subsequent line, e.g. with a run id.
func (l *Logger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minLevel
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)
	var line string
	if l.prefix != "" {
		line = fmt.Sprintf("%s [%s] %s %s\n", ts, level.String(), l.prefix, fmt.Sprintf(msg, args...))
	} else {
		line = fmt.Sprintf("%s [%s] %s\n", ts, level.String(), fmt.Sprintf(msg, args...))
	}

	for _, w := range l.out {
		_, _ = io.WriteString(w, line)
	}
	if l.file != nil {
		_ = l.file.Sync()
	}
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
