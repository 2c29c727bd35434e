// pkg/prereq/runner.go

package prereq

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/execute"
	"go.uber.org/zap"
)

// Runner executes the interpreter. It returns combined output and a non-nil
// error for a non-zero exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs real processes through execute.Run.
type ExecRunner struct {
	Logger  *zap.Logger
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return execute.Run(ctx, execute.Options{
		Command: name,
		Args:    args,
		Timeout: timeout,
		Logger:  r.Logger,
	})
}
