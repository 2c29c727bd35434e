// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options describes one external command invocation. Commands are always
// executed directly; there is no shell mode.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Retries is the total number of attempts; values below 1 mean one.
	Retries int
	Delay   time.Duration
	Timeout time.Duration

	// Echo receives live output in addition to the capture buffer.
	Echo   io.Writer
	Logger *zap.Logger
}

// Run executes a command with structured logging and returns its combined
// output. On failure the output of the last attempt is still returned.
func Run(ctx context.Context, opts Options) (string, error) {
	cmdStr := buildCommandString(opts.Command, opts.Args...)

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	ctx, span := telemetry.Start(ctx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	log.Debug("Starting execution", zap.String("command", cmdStr))

	attempts := max(1, opts.Retries)
	var output string
	var err error

	for i := 1; i <= attempts; i++ {
		cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
		cmd.Dir = opts.Dir
		if len(opts.Env) > 0 {
			cmd.Env = append(cmd.Environ(), opts.Env...)
		}

		var buf bytes.Buffer
		var w io.Writer = &buf
		if opts.Echo != nil {
			w = io.MultiWriter(opts.Echo, &buf)
		}
		cmd.Stdout = w
		cmd.Stderr = w

		err = cmd.Run()
		output = buf.String()
		if err == nil {
			log.Debug("Execution succeeded", zap.String("command", cmdStr), zap.Int("attempt", i))
			return output, nil
		}

		span.RecordError(err)
		log.Debug("Execution failed",
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", agms_err.ExtractSummary(output, 2)),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
		if i < attempts && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
			}
		}
	}

	return output, cerr.Wrapf(err, "%s failed after %d attempt(s)", cmdStr, attempts)
}

// RunSimple executes a command once and discards its output.
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args})
	return err
}
