// jsonlog.go - Leveled logging with JSON or plain text output
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Logger writes leveled entries as JSON lines or plain text.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	minLevel   LogLevel
	enableJSON bool
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Level   LogLevel       `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
	Error   string         `json:"error,omitempty"`
	Caller  string         `json:"caller,omitempty"`
}

// DefaultLogger is the global logger instance. SetupLogging replaces it.
var DefaultLogger = NewLogger(os.Stdout, LogLevelInfo, false)

// NewLogger returns a logger writing to w. Entries below minLevel are dropped.
func NewLogger(w io.Writer, minLevel LogLevel, enableJSON bool) *Logger {
	return &Logger{output: w, minLevel: minLevel, enableJSON: enableJSON}
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch LogLevel(level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return LogLevel(level)
	default:
		return LogLevelInfo
	}
}

// SetupLogging installs DefaultLogger from the configured level and format
// ("json" or "text").
func SetupLogging(level, format string) *Logger {
	DefaultLogger = NewLogger(os.Stdout, ParseLogLevel(level), format == "json")
	return DefaultLogger
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// getCaller returns the file and line number of the caller
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}

	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}

	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]any, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  getCaller(3),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enableJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	// Plain text, fields in key order so lines are stable.
	fmt.Fprintf(l.output, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(l.output, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(l.output, " error=%q", entry.Error)
	}
	fmt.Fprintln(l.output)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(LogLevelDebug, msg, fields, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(LogLevelInfo, msg, fields, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(LogLevelWarn, msg, fields, nil)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LogLevelError, msg, fields, err)
}
