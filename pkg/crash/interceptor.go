// pkg/crash/interceptor.go
//
// The interceptor is the single boundary for faults nothing else handled.
// Supervise wraps the whole boot-and-run call; background goroutines defer
// Recover so a panic on any goroutine ends up in the same place. The first
// fault writes one artifact, shows one notice and cancels the supervised
// context; any later fault is only logged.

package crash

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Interceptor struct {
	dir    string
	dialog Dialog
	log    *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	fault  error
	cancel context.CancelCauseFunc
}

// New returns an interceptor writing artifacts into dir. dialog may be nil
// when no display context exists.
func New(dir string, dialog Dialog, log *zap.Logger) *Interceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interceptor{dir: dir, dialog: dialog, log: log, now: time.Now}
}

// Supervise runs fn under the interceptor. It returns fn's own error, the
// unhandled-fault error of the first intercepted panic, or an interrupted
// error when the parent context was cancelled by an operator signal.
func (i *Interceptor) Supervise(rc *agms_io.RuntimeContext, fn func(*agms_io.RuntimeContext) error) error {
	ctx, cancel := context.WithCancelCause(rc.Ctx)
	defer cancel(nil)

	i.mu.Lock()
	i.cancel = cancel
	i.mu.Unlock()

	err := i.run(rc.WithContext(ctx), fn)

	if fault := i.Fault(); fault != nil {
		return fault
	}
	if errors.Is(context.Cause(rc.Ctx), agms_err.ErrInterrupted) {
		i.log.Info("Interrupted by operator")
		return agms_err.NewInterrupted(err)
	}
	return err
}

func (i *Interceptor) run(rc *agms_io.RuntimeContext, fn func(*agms_io.RuntimeContext) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = i.handle("main", r, debug.Stack())
		}
	}()
	return fn(rc)
}

// Recover must be deferred directly at the top of every background
// goroutine: defer interceptor.Recover("health").
func (i *Interceptor) Recover(source string) {
	if r := recover(); r != nil {
		i.handle(source, r, debug.Stack())
	}
}

// Fault returns the first intercepted fault, if any.
func (i *Interceptor) Fault() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fault
}

func (i *Interceptor) handle(source string, r any, stack []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	message := fmt.Sprint(r)
	if i.fault != nil {
		i.log.Error("Further fault while shutting down after an earlier one",
			zap.String("source", source),
			zap.String("fault", message))
		return i.fault
	}

	i.log.DPanic("Unhandled fault",
		zap.String("source", source),
		zap.String("fault", message),
		zap.ByteString("stack", stack))

	artifact := Artifact{
		Timestamp: i.now(),
		Origin:    OriginUnhandled,
		Source:    source,
		Message:   message,
		Stack:     string(stack),
	}
	i.persist(&artifact)
	i.notify(artifact.Path)

	i.fault = agms_err.NewUnhandledFault(artifact.Path, cerr.Newf("%s", message))
	if i.cancel != nil {
		i.cancel(i.fault)
	}
	return i.fault
}

// persist never lets a storage failure turn into a second fault.
func (i *Interceptor) persist(a *Artifact) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("Crash artifact writer panicked", zap.Any("panic", r))
		}
	}()
	if err := a.write(i.dir); err != nil {
		i.log.Error("Failed to write crash artifact", zap.String("dir", i.dir), zap.Error(err))
		return
	}
	i.log.Info("Crash artifact written", zap.String("path", a.Path))
}

func (i *Interceptor) notify(path string) {
	if i.dialog == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			i.log.Warn("Crash notice failed", zap.Any("panic", r))
		}
	}()

	where := i.dir
	if path != "" {
		where = path
	}
	msg := shared.GenericCrashMessage + "\n\nDetails were saved to:\n" + where
	if err := i.dialog.Show(shared.AppName, msg); err != nil {
		i.log.Warn("Crash notice failed", zap.Error(err))
	}
}
