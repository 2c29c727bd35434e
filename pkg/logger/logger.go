// pkg/logger/logger.go

package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

// Init builds the process logger: human-readable console output plus a JSON
// file appended at logPath, with notices printed to stdout. If the file
// cannot be opened, logging continues on the console only and the returned
// error says why.
func Init(logPath string, level zapcore.Level) (*zap.Logger, error) {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stdout),
		level,
	)

	var fileErr error
	cores := []zapcore.Core{consoleCore}
	if logPath != "" {
		writer, err := GetLogFileWriter(logPath)
		if err != nil {
			fileErr = err
		} else {
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(DefaultFileEncoderConfig()), writer, level))
		}
	}

	l := zap.New(newNoticeCore(zapcore.NewTee(cores...), os.Stdout), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SetLogger(l)
	l.Info("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", logPath),
		zap.Bool("file_output", fileErr == nil && logPath != ""))
	return l, fileErr
}

// SetLogger replaces the process logger and the zap and otelzap globals.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// L returns the process logger, or nil before initialization.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// GetLogger returns the process logger, installing the console fallback if
// nothing was initialized yet.
func GetLogger() *zap.Logger {
	if l := L(); l != nil {
		return l
	}
	InitFallback()
	return L()
}

// Sync flushes any buffered log entries. Should be called before the application exits.
func Sync() error {
	l := L()
	if l == nil {
		return nil
	}
	if err := l.Sync(); err != nil && !isIgnorableSyncError(err) {
		return fmt.Errorf("sync logger: %w", err)
	}
	return nil
}

// Syncing a console fd returns EINVAL/ENOTTY on most platforms.
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	for _, sub := range []string{"invalid argument", "inappropriate ioctl", "bad file descriptor"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
