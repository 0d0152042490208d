package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/qamd/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Components used when tagging log lines
const (
	ComponentMain    = "main"
	ComponentEngine  = "engine"
	ComponentCodec   = "codec"
	ComponentStorage = "storage"
	ComponentAPI     = "api"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields are key/value pairs attached to a log line
type Fields map[string]interface{}

// Logger writes leveled, component-tagged lines to the console and/or a
// rotating file
type Logger struct {
	level        LogLevel
	structured   bool
	outputs      []*log.Logger
	rotatingFile *lumberjack.Logger
	now          func() time.Time
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.Config) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
		now:        time.Now,
	}

	// Setup file logging with rotation (only if file path is specified)
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotatingFile = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize,    // megabytes
			MaxBackups: cfg.Logging.MaxBackups, // number of backups
			MaxAge:     cfg.Logging.MaxAge,     // days
			Compress:   cfg.Logging.Compress,
		}
		logger.outputs = append(logger.outputs, log.New(logger.rotatingFile, "", 0))
	}

	// Console logging is enabled by config or when there is no file
	if cfg.Logging.Console || logger.rotatingFile == nil {
		logger.outputs = append(logger.outputs, log.New(os.Stderr, "", 0))
	}

	return logger, nil
}

// NewWriterLogger creates a logger that writes to w only
func NewWriterLogger(w io.Writer, level LogLevel, structured bool) *Logger {
	return &Logger{
		level:      level,
		structured: structured,
		outputs:    []*log.Logger{log.New(w, "", 0)},
		now:        time.Now,
	}
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.rotatingFile != nil {
		return l.rotatingFile.Close()
	}
	return nil
}

// Level returns the minimum level that is written
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatMessage formats a log message; fields are written in key order
func (l *Logger) formatMessage(level LogLevel, component, message string, fields Fields) string {
	timestamp := l.now().Format("2006-01-02 15:04:05.000")

	if l.structured {
		var parts []string
		for _, k := range sortedKeys(fields) {
			parts = append(parts, fmt.Sprintf(`"%s":"%v"`, k, fields[k]))
		}
		fieldsStr := ""
		if len(parts) > 0 {
			fieldsStr = "," + strings.Join(parts, ",")
		}
		return fmt.Sprintf(`{"time":"%s","level":"%s","component":"%s","message":"%s"%s}`,
			timestamp, level.String(), component, message, fieldsStr)
	}

	fieldsStr := ""
	if len(fields) > 0 {
		var parts []string
		for _, k := range sortedKeys(fields) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		fieldsStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}
	return fmt.Sprintf("%s [%s] %s: %s%s",
		timestamp, level.String(), component, message, fieldsStr)
}

func (l *Logger) log(level LogLevel, component, message string, fields Fields) {
	if !l.shouldLog(level) {
		return
	}

	formatted := l.formatMessage(level, component, message, fields)
	for _, out := range l.outputs {
		out.Println(formatted)
	}
}

func firstFields(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, fields ...Fields) {
	l.log(LevelDebug, component, message, firstFields(fields))
}

// Info logs an info message
func (l *Logger) Info(component, message string, fields ...Fields) {
	l.log(LevelInfo, component, message, firstFields(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, fields ...Fields) {
	l.log(LevelWarn, component, message, firstFields(fields))
}

// Error logs an error message
func (l *Logger) Error(component, message string, fields ...Fields) {
	l.log(LevelError, component, message, firstFields(fields))
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(component, format string, args ...interface{}) {
	l.log(LevelDebug, component, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(component, format string, args ...interface{}) {
	l.log(LevelInfo, component, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(component, format string, args ...interface{}) {
	l.log(LevelWarn, component, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(component, format string, args ...interface{}) {
	l.log(LevelError, component, fmt.Sprintf(format, args...), nil)
}

// Global logger instance
var (
	globalLogger *Logger
	globalMutex  sync.Mutex
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg *config.Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(logger *Logger) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalLogger == nil {
		// Fallback to console logging if not initialized
		globalLogger = NewWriterLogger(os.Stderr, LevelInfo, false)
	}
	return globalLogger
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// Convenience functions for global logger
func Debug(component, message string, fields ...Fields) {
	GetGlobalLogger().Debug(component, message, fields...)
}

func Info(component, message string, fields ...Fields) {
	GetGlobalLogger().Info(component, message, fields...)
}

func Warn(component, message string, fields ...Fields) {
	GetGlobalLogger().Warn(component, message, fields...)
}

func Error(component, message string, fields ...Fields) {
	GetGlobalLogger().Error(component, message, fields...)
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().Infof(component, format, args...)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().Errorf(component, format, args...)
}
