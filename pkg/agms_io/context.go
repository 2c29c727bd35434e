// pkg/agms_io/context.go

package agms_io

import (
	"context"
	"io"
	"os"
	"os/user"
	"runtime"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appconfig"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RuntimeContext is built once per command and passed explicitly to every
// component. Nothing in agms reads configuration or logging state from
// package globals after it exists.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Component  string
	Attributes map[string]string

	Layout   shared.Layout
	Config   *appconfig.Config
	FirstRun bool

	In  io.Reader
	Out io.Writer
}

// NewContext sets up tracing and a scoped logger for cmdName.
func NewContext(ctx context.Context, cmdName string) *RuntimeContext {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := telemetry.Start(ctx, cmdName)
	traceID := span.SpanContext().TraceID().String()

	comp := resolveComponent(2)
	log := logger.GetLogger().With(
		zap.String("component", comp),
		zap.String("command", cmdName),
		zap.String("trace_id", traceID),
	).Named(comp)

	return &RuntimeContext{
		Ctx:        ctx,
		Log:        log,
		Timestamp:  time.Now(),
		Span:       span,
		Command:    cmdName,
		Component:  comp,
		Attributes: make(map[string]string),
		Config:     appconfig.Default(),
		In:         os.Stdin,
		Out:        os.Stderr,
	}
}

// WithContext returns a shallow copy bound to ctx. The copy shares the
// logger, span, layout and configuration.
func (rc *RuntimeContext) WithContext(ctx context.Context) *RuntimeContext {
	cp := *rc
	cp.Ctx = ctx
	return &cp
}

// Named returns a copy whose logger is scoped to a sub-component.
func (rc *RuntimeContext) Named(component string) *RuntimeContext {
	cp := *rc
	cp.Log = rc.Log.Named(component)
	cp.Component = component
	return &cp
}

// End logs outcome, emits a telemetry span with key attributes, and flushes.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	var err error
	if errPtr != nil {
		err = *errPtr
	}
	duration := time.Since(rc.Timestamp)

	switch {
	case err == nil:
		rc.Log.Info("Command completed", zap.Duration("duration", duration))
	case agms_err.GetExitCode(err) == agms_err.ExitOK:
		rc.Log.Info("Command stopped", zap.Duration("duration", duration), zap.Error(err))
	default:
		rc.Log.Error("Command failed", zap.Duration("duration", duration), zap.Error(err))
	}

	rc.Span.SetAttributes(
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("os", runtime.GOOS),
		attribute.String("version", shared.Version),
		attribute.Int("exit_code", agms_err.GetExitCode(err)),
		attribute.String("error_type", classifyError(err)),
	)
	if err != nil {
		rc.Span.RecordError(err)
	}
	for k, v := range rc.Attributes {
		rc.Span.SetAttributes(attribute.String(k, v))
	}

	_ = logger.Sync()
}

// LogRuntimeExecutionContext records who is running which binary.
func (rc *RuntimeContext) LogRuntimeExecutionContext() {
	if u, err := user.Current(); err == nil {
		rc.Log.Debug("User context",
			zap.String("username", u.Username),
			zap.String("uid", u.Uid),
			zap.String("home", u.HomeDir))
	}
	if exe, err := os.Executable(); err == nil {
		rc.Log.Debug("Executable path", zap.String("path", exe))
	}
	rc.Log.Debug("Install root", zap.String("root", rc.Layout.Root))
}

func resolveComponent(skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return strings.TrimSuffix(parts[0], ".go")
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := agms_err.CategoryOf(err); ok {
		return c.String()
	}
	if agms_err.IsExpectedUserError(err) {
		return "user"
	}
	return "system"
}
