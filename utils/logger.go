package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging. Each pipeline stage receives its own
// Logger rather than reaching for a package-level one.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	errOut io.Writer
	min    Level
	color  bool
	prefix string
	now    func() time.Time
}

// NewLogger creates a Logger writing info/warn/debug to stdout and errors to stderr.
func NewLogger(level Level) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		out:    os.Stdout,
		errOut: os.Stderr,
		min:    level,
		color:  true,
		now:    time.Now,
	}
}

// NewWriterLogger sends every level to w without color codes. Used by tests
// to capture output.
func NewWriterLogger(w io.Writer, level Level) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		out:    w,
		errOut: w,
		min:    level,
		now:    time.Now,
	}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return NewWriterLogger(io.Discard, LevelError+1)
}

// With returns a child logger whose messages are tagged with [component].
func (l *Logger) With(component string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + "/" + component
	} else {
		child.prefix = component
	}
	return &child
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	line := fmt.Sprintf("[%s] %s %s\n", l.now().Format("2006-01-02 15:04:05"), l.tag(level), msg)

	w := l.out
	if level == LevelError {
		w = l.errOut
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(w, line)
}

func (l *Logger) tag(level Level) string {
	type style struct{ name, ansi string }
	styles := map[Level]style{
		LevelDebug: {"DEBUG", "36"},
		LevelInfo:  {"INFO ", "32"},
		LevelWarn:  {"WARN ", "33"},
		LevelError: {"ERROR", "31"},
	}
	s := styles[level]
	if !l.color {
		return s.name
	}
	return "\033[" + s.ansi + "m" + s.name + "\033[0m"
}
