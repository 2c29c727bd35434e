// pkg/boot/orchestrator.go
//
// The orchestrator runs the startup sequence one step at a time on the
// calling goroutine. A critical failure stops the sequence; a non-critical
// failure is logged and the sequence continues with that subsystem absent.
// Panics are not recovered here; they belong to the crash interceptor.

package boot

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Orchestrator struct {
	steps []Step

	// Observe, when set, is called after every step with its entry.
	Observe func(Entry)
}

// New validates the sequence: names are unique, every step has an action,
// and every Needs entry names an earlier critical step.
func New(steps ...Step) (*Orchestrator, error) {
	seen := make(map[string]Step, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, cerr.AssertionFailedf("boot step %d has no name", i)
		}
		if s.Action == nil {
			return nil, cerr.AssertionFailedf("boot step %q has no action", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, cerr.AssertionFailedf("boot step %q declared twice", s.Name)
		}
		for _, need := range s.Needs {
			dep, ok := seen[need]
			if !ok {
				return nil, cerr.AssertionFailedf("boot step %q needs %q, which does not run before it", s.Name, need)
			}
			if !dep.Critical {
				return nil, cerr.AssertionFailedf("boot step %q needs %q, which is not critical", s.Name, need)
			}
		}
		seen[s.Name] = s
	}
	return &Orchestrator{steps: steps}, nil
}

// Steps returns the sequence in execution order.
func (o *Orchestrator) Steps() []Step {
	return append([]Step(nil), o.steps...)
}

// Run executes the sequence. The error is nil when every step was attempted,
// a critical-boot failure when a critical step failed, or the halting cause
// when a step called Halt.
func (o *Orchestrator) Run(rc *agms_io.RuntimeContext) (*Report, error) {
	log := otelzap.Ctx(rc.Ctx)
	report := &Report{Status: StatusRunning}
	outcomes := make(map[string]Outcome, len(o.steps))

	log.Info("Boot sequence starting", zap.Int("steps", len(o.steps)))

	for idx, step := range o.steps {
		if err := rc.Ctx.Err(); err != nil {
			report.Status = StatusHalted
			log.Warn("Boot sequence cancelled", zap.String("next_step", step.Name))
			return report, cerr.Wrap(context.Cause(rc.Ctx), "boot cancelled")
		}

		if missing := unmetNeed(step, outcomes); missing != "" {
			entry := Entry{Step: step.Name, Critical: step.Critical, Outcome: SkippedNonFatal,
				Err: cerr.Newf("dependency %q is not available", missing)}
			o.record(report, outcomes, entry)
			log.Warn("Step skipped, dependency unavailable",
				zap.String("step", step.Name), zap.String("needs", missing))
			continue
		}

		entry := o.runStep(rc, idx, step)
		o.record(report, outcomes, entry)

		switch entry.Outcome {
		case Ok:
			log.Info("Step completed", zap.String("step", step.Name), zap.Duration("duration", entry.Duration))
		case Halted:
			report.Status = StatusHalted
			log.Info("Boot sequence halted", zap.String("step", step.Name), zap.Error(entry.Err))
			cause := haltCause(entry.Err)
			if _, ok := agms_err.AsClassified(cause); !ok {
				cause = agms_err.NewExpectedError(cause)
			}
			return report, cause
		case Fatal:
			report.Status = StatusFatal
			report.FatalStep = step.Name
			log.Error("Critical step failed, aborting boot", zap.String("step", step.Name), zap.Error(entry.Err))
			return report, agms_err.NewCriticalBootFailure(step.Name, entry.Err)
		case SkippedNonFatal:
			log.Warn("Optional step failed, continuing without it", zap.String("step", step.Name), zap.Error(entry.Err))
		}
	}

	report.Status = StatusCompleted
	log.Info("Boot sequence completed", zap.Strings("skipped", report.Skipped()))
	return report, nil
}

func (o *Orchestrator) runStep(rc *agms_io.RuntimeContext, idx int, step Step) Entry {
	ctx, span := telemetry.Start(rc.Ctx, "boot."+step.Name,
		attribute.Int("boot.index", idx),
		attribute.Bool("boot.critical", step.Critical))
	defer span.End()

	otelzap.Ctx(ctx).Debug("Step starting", zap.String("step", step.Name), zap.Bool("critical", step.Critical))

	start := time.Now()
	err := step.Action(rc.WithContext(ctx))
	entry := Entry{Step: step.Name, Critical: step.Critical, Err: err, Duration: time.Since(start)}

	switch {
	case err == nil:
		entry.Outcome = Ok
	case IsHalt(err):
		entry.Outcome = Halted
	case step.Critical:
		entry.Outcome = Fatal
	default:
		entry.Outcome = SkippedNonFatal
	}

	span.SetAttributes(attribute.String("boot.outcome", entry.Outcome.String()))
	if err != nil && entry.Outcome != Halted {
		span.RecordError(err)
	}
	return entry
}

func (o *Orchestrator) record(r *Report, outcomes map[string]Outcome, e Entry) {
	r.Entries = append(r.Entries, e)
	outcomes[e.Step] = e.Outcome
	if o.Observe != nil {
		o.Observe(e)
	}
}

func unmetNeed(step Step, outcomes map[string]Outcome) string {
	for _, need := range step.Needs {
		if outcomes[need] != Ok {
			return need
		}
	}
	return ""
}
