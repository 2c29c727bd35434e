// pkg/logger/fallback.go

package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFallbackLogger logs to stdout only. Used before the install layout is
// known and by commands that never touch the log directory.
func NewFallbackLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		ParseLogLevel(os.Getenv("AGMS_LOG_LEVEL")),
	)
	return zap.New(newNoticeCore(core, os.Stdout), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitFallback installs the console logger as the process logger.
func InitFallback() {
	l := NewFallbackLogger()
	SetLogger(l)
	l.Debug("Logger fallback initialized")
}
