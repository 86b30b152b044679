// Package logger is the process-wide leveled logger. All output goes to
// stderr: stdout belongs to the terminal dashboard, and the two must not
// interleave. Logging before Init is a silent no-op, so library code and
// tests work without any setup.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level is a log severity threshold.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelTags = map[Level]string{
	DebugLevel: "[DEBUG]",
	InfoLevel:  "[INFO]",
	WarnLevel:  "[WARN]",
	ErrorLevel: "[ERROR]",
}

// Logger drops messages below its configured level before writing.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger *Logger

// parseLevel maps a config string to a Level. Unknown strings fall back
// to info rather than failing; logging misconfiguration must not stop
// the screener.
func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init configures the default logger from the logging config section.
// The text format carries source locations; json keeps timestamps only.
func Init(level, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level:  parseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

// logf is the single write path. Calldepth 3 makes Lshortfile report the
// caller of the exported helpers, not this file.
func logf(lvl Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > lvl {
		return
	}
	_ = defaultLogger.logger.Output(3, levelTags[lvl]+" "+fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) { logf(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { logf(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { logf(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { logf(ErrorLevel, format, args...) }

// Fatal logs regardless of level and terminates the process.
func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(3, "[FATAL] "+fmt.Sprintf(format, args...))
	}
	os.Exit(1)
}
