// pkg/boot/report.go

package boot

import (
	"fmt"
	"strings"
	"time"
)

// Status summarizes a whole run.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFatal
	StatusHalted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFatal:
		return "fatal"
	case StatusHalted:
		return "halted"
	default:
		return "running"
	}
}

// Entry records what happened to one step.
type Entry struct {
	Step     string
	Critical bool
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Report is the ordered record of a boot run. Steps after a fatal or
// halting step never appear.
type Report struct {
	Entries   []Entry
	FatalStep string
	Status    Status
}

// Outcome returns the outcome recorded for step, or Pending if it never ran.
func (r *Report) Outcome(step string) Outcome {
	for _, e := range r.Entries {
		if e.Step == step {
			return e.Outcome
		}
	}
	return Pending
}

// Ran reports whether step was attempted.
func (r *Report) Ran(step string) bool {
	return r.Outcome(step) != Pending
}

// Skipped lists the non-critical steps that failed.
func (r *Report) Skipped() []string {
	var out []string
	for _, e := range r.Entries {
		if e.Outcome == SkippedNonFatal {
			out = append(out, e.Step)
		}
	}
	return out
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "boot %s", r.Status)
	for _, e := range r.Entries {
		fmt.Fprintf(&sb, "\n  %-22s %s", e.Step, e.Outcome)
		if e.Err != nil && e.Outcome != Ok {
			fmt.Fprintf(&sb, " (%v)", e.Err)
		}
	}
	return sb.String()
}
