// Package logger provides the level-filtered logger used across lockxfer.
// Messages are written through the standard `log` package and carry a level tag,
// and optionally the work unit they belong to.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
type LogLevel int32

const (
	// LevelDebug is used for detailed diagnostic output such as per-block transfer progress.
	LevelDebug LogLevel = iota
	// LevelInfo is used for lifecycle messages (claims, commits, step boundaries).
	LevelInfo
	// LevelWarn is used for recoverable anomalies.
	LevelWarn
	// LevelError is used for failures that abort a unit of work.
	LevelError
	// LevelFatal terminates the process after logging.
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// logLevel is the currently set global log level.
var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL") into a LogLevel.
// "TRACE" is accepted as an alias of DEBUG and "SILENT" as an alias of FATAL.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL", "SILENT":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level '%s'", level)
}

// SetLogLevel sets the global log level.
// An invalid value falls back to INFO and a warning is written.
func SetLogLevel(level string) {
	parsed, err := ParseLevel(level)
	if err != nil {
		log.Printf("[WARN] %v. Defaulting to INFO level.", err)
	}
	logLevel.Store(int32(parsed))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// SetOutput redirects all log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Enabled reports whether messages at the given level are currently written.
func Enabled(level LogLevel) bool {
	return GetLogLevel() <= level
}

func logf(level LogLevel, format string, v ...interface{}) {
	if !Enabled(level) {
		return
	}
	log.Printf("["+level.String()+"] "+format, v...)
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Fatalf formats and outputs a FATAL level log message, then calls os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}

// UnitLogger prefixes every message with the work unit it belongs to,
// e.g. "[wfiid=1234 message_id=42]".
type UnitLogger struct {
	prefix string
}

// ForUnit returns a UnitLogger for the given work unit id and optional message id.
func ForUnit(wfiid int64, messageID string) UnitLogger {
	if messageID == "" {
		return UnitLogger{prefix: fmt.Sprintf("[wfiid=%d] ", wfiid)}
	}
	return UnitLogger{prefix: fmt.Sprintf("[wfiid=%d message_id=%s] ", wfiid, messageID)}
}

func (u UnitLogger) Debugf(format string, v ...interface{}) { logf(LevelDebug, u.prefix+format, v...) }
func (u UnitLogger) Infof(format string, v ...interface{})  { logf(LevelInfo, u.prefix+format, v...) }
func (u UnitLogger) Warnf(format string, v ...interface{})  { logf(LevelWarn, u.prefix+format, v...) }
func (u UnitLogger) Errorf(format string, v ...interface{}) { logf(LevelError, u.prefix+format, v...) }
