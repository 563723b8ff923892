// Package logging provides leveled, structured logging for the daemon.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) color() string {
	switch l {
	case DEBUG:
		return "\033[36m"
	case INFO:
		return "\033[32m"
	case WARN:
		return "\033[33m"
	case ERROR:
		return "\033[31m"
	default:
		return "\033[0m"
	}
}

// Logger is a leveled logger with attached fields
type Logger struct {
	level  Level
	output io.Writer
	mu     *sync.Mutex
	fields map[string]any
}

var defaultLogger = &Logger{
	level:  INFO,
	output: os.Stdout,
	mu:     &sync.Mutex{},
	fields: map[string]any{},
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	defaultLogger.level = level
}

// SetOutput sets the global output writer
func SetOutput(w io.Writer) {
	defaultLogger.output = w
}

// Component returns a logger tagged with a component name
func Component(name string) *Logger {
	return defaultLogger.WithField("component", name)
}

// WithField returns a logger with one field added
func WithField(key string, value any) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithField returns a copy of the logger with one field added
func (l *Logger) WithField(key string, value any) *Logger {
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &Logger{level: l.level, output: l.output, mu: l.mu, fields: fields}
}

// WithFields returns a copy of the logger with several fields added
func (l *Logger) WithFields(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &Logger{level: l.level, output: l.output, mu: l.mu, fields: merged}
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}

	// Sorted fields keep the output stable across runs
	var fieldsStr string
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldsStr = " |"
		for _, k := range keys {
			fieldsStr += fmt.Sprintf(" %s=%v", k, l.fields[k])
		}
	}

	fmt.Fprintf(l.output, "%s %s[%s]\033[0m %s%s\n",
		time.Now().Format("15:04:05"), level.color(), level, formatted, fieldsStr)
}

// Debug logs a debug message
func Debug(msg string, args ...any) { defaultLogger.log(DEBUG, msg, args...) }

// Info logs an info message
func Info(msg string, args ...any) { defaultLogger.log(INFO, msg, args...) }

// Warn logs a warning message
func Warn(msg string, args ...any) { defaultLogger.log(WARN, msg, args...) }

// Error logs an error message
func Error(msg string, args ...any) { defaultLogger.log(ERROR, msg, args...) }

func (l *Logger) Debug(msg string, args ...any) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(ERROR, msg, args...) }
