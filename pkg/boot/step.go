// pkg/boot/step.go

package boot

import (
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	cerr "github.com/cockroachdb/errors"
)

// Step is one entry of the startup sequence. Order is significant: an action
// may rely on live objects produced by any earlier critical step it names in
// Needs.
type Step struct {
	Name     string
	Critical bool
	Needs    []string
	Action   func(rc *agms_io.RuntimeContext) error
}

// Outcome is the terminal state of a step.
type Outcome int

const (
	Pending Outcome = iota
	Running
	Ok
	SkippedNonFatal
	Fatal
	Halted
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Ok:
		return "ok"
	case SkippedNonFatal:
		return "skipped-nonfatal"
	case Fatal:
		return "fatal"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

type haltError struct {
	cause error
}

func (h *haltError) Error() string { return "boot halted: " + h.cause.Error() }
func (h *haltError) Unwrap() error { return h.cause }

// Halt marks err as a graceful stop. The orchestrator ends the sequence
// without treating it as a failure, whatever the step's criticality.
func Halt(err error) error {
	if err == nil {
		err = cerr.New("halted")
	}
	return &haltError{cause: err}
}

func haltCause(err error) error {
	var h *haltError
	if cerr.As(err, &h) {
		return h.cause
	}
	return err
}

// IsHalt reports whether err was produced by Halt.
func IsHalt(err error) bool {
	var h *haltError
	return cerr.As(err, &h)
}
