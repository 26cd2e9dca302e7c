// Package logging is a small levelled wrapper over the standard logger.
// The level is read from MEMPRUNE_LOG_LEVEL (debug, info, error).
package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
)

type Logger struct {
	mu     sync.Mutex
	level  Level
	logger *log.Logger
}

var defaultLogger = New(os.Stderr, ParseLevel(os.Getenv("MEMPRUNE_LOG_LEVEL")))

// ParseLevel maps a level name to a Level. Unknown names yield InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// New creates a logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(w, "", log.Ldate|log.Ltime),
	}
}

// SetOutput redirects the logger, e.g. to the daemon log file.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level <= level
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(DebugLevel) {
		l.logger.Printf("DEBUG: "+format, v...)
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(InfoLevel) {
		l.logger.Printf("INFO: "+format, v...)
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logger.Printf("ERROR: "+format, v...)
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

func Debug(format string, v ...interface{}) {
	defaultLogger.Debug(format, v...)
}

func Info(format string, v ...interface{}) {
	defaultLogger.Info(format, v...)
}

func Error(format string, v ...interface{}) {
	defaultLogger.Error(format, v...)
}
