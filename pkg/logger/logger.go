package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger

	mu    sync.RWMutex
	level = LevelInfo
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	if os.Getenv("ENVIRONMENT") == "development" {
		level = LevelDebug
	}
}

// ParseLevel accepts error, warn, info and debug, case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

func SetLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

// SetOutput redirects every level to w. Used by tests.
func SetOutput(w io.Writer) {
	InfoLogger.SetOutput(w)
	ErrorLogger.SetOutput(w)
	DebugLogger.SetOutput(w)
	WarnLogger.SetOutput(w)
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l <= level
}

func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		_ = InfoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Error(format string, v ...interface{}) {
	_ = ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		_ = DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		_ = WarnLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Std satisfies the Debugf/Infof/Errorf interface taken by outbound clients.
type Std struct{}

func (Std) Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		_ = DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (Std) Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		_ = InfoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (Std) Errorf(format string, v ...any) {
	_ = ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}
