// Package logging provides logging utilities for the application
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// keelLogger implements the ILogger interface with custom formatting
type keelLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *keelLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *keelLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *keelLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *keelLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *keelLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *keelLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *keelLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	return &keelLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers initializes all loggers with the custom format
func InitLoggers(logLevel string) {
	// Set as the global logger factory for Dragonboat
	logger.SetLoggerFactory(CreateLogger)

	// Configure Dragonboat loggers
	logger.GetLogger("raft").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("raftdb").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("rsm").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("transport").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("dragonboat").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("grpc").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("util").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("logdb").SetLevel(ParseLogLevel(logLevel))

	// configure keel loggers
	logger.GetLogger("store").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("effects").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("links").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("index").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("txn").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("workflow").SetLevel(ParseLogLevel(logLevel))
	logger.GetLogger("cmd").SetLevel(ParseLogLevel(logLevel))
}
