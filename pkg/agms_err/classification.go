// pkg/agms_err/classification.go
//
// Error classification for the boot sequence and its entry points.
// Every failure that leaves a command is mapped to one category, and the
// category alone decides the process exit code.

package agms_err

import (
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategoryCriticalBoot - a critical boot step failed (exit 1)
	CategoryCriticalBoot ErrorCategory = iota
	// CategoryNonCriticalBoot - a non-critical step failed; never reaches the exit path
	CategoryNonCriticalBoot
	// CategoryInstallation - required dependency could not be installed (exit 1)
	CategoryInstallation
	// CategoryLoginCancelled - operator cancelled the login gate (exit 0)
	CategoryLoginCancelled
	// CategoryUnhandledFault - a panic was intercepted (exit 3)
	CategoryUnhandledFault
	// CategoryInterrupted - user interrupt (exit 130)
	CategoryInterrupted
	// CategoryConfig - configuration could not be loaded or validated (exit 2)
	CategoryConfig
)

const (
	ExitOK          = 0
	ExitFatalBoot   = 1
	ExitInstall     = 1
	ExitConfig      = 2
	ExitFault       = 3
	ExitInterrupted = 130
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryCriticalBoot:
		return "critical-boot-failure"
	case CategoryNonCriticalBoot:
		return "non-critical-boot-failure"
	case CategoryInstallation:
		return "installation-failure"
	case CategoryLoginCancelled:
		return "login-cancelled"
	case CategoryUnhandledFault:
		return "unhandled-fault"
	case CategoryInterrupted:
		return "interrupted"
	case CategoryConfig:
		return "config-error"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Report renders the message with remediation steps for an operator-facing notice.
func (e *ClassifiedError) Report() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}
	return sb.String()
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryLoginCancelled, CategoryNonCriticalBoot:
		return ExitOK
	case CategoryInstallation:
		return ExitInstall
	case CategoryUnhandledFault:
		return ExitFault
	case CategoryInterrupted:
		return ExitInterrupted
	case CategoryConfig:
		return ExitConfig
	default:
		return ExitFatalBoot
	}
}

// GetExitCode extracts exit code from any error
// Returns 0 for nil, the category code for classified errors, 1 for others
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if classified, ok := AsClassified(err); ok {
		return classified.ExitCode()
	}
	if IsExpectedUserError(err) {
		return ExitOK
	}
	return ExitFatalBoot
}

// AsClassified finds the outermost ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if cerr.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// CategoryOf returns the category of err, or false when err is unclassified.
func CategoryOf(err error) (ErrorCategory, bool) {
	if c, ok := AsClassified(err); ok {
		return c.Category, true
	}
	return 0, false
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	c, ok := CategoryOf(err)
	return ok && c == category
}

// NewCriticalBootFailure is returned by the orchestrator when a critical step fails.
func NewCriticalBootFailure(step string, cause error) error {
	return &ClassifiedError{
		Category: CategoryCriticalBoot,
		Message:  fmt.Sprintf("critical startup step %q failed", step),
		Cause:    cause,
		Remediation: []string{
			"Check the operational log for the underlying cause",
			"Fix the failing subsystem and start the application again",
		},
	}
}

// NewNonCriticalBootFailure describes a skipped step. It is logged, never returned to main.
func NewNonCriticalBootFailure(step string, cause error) error {
	return &ClassifiedError{
		Category: CategoryNonCriticalBoot,
		Message:  fmt.Sprintf("optional startup step %q skipped", step),
		Cause:    cause,
	}
}

// NewInstallationFailure reports required libraries that could not be installed.
func NewInstallationFailure(libraries []string, remediation string) error {
	return &ClassifiedError{
		Category:    CategoryInstallation,
		Message:     fmt.Sprintf("failed to install required libraries: %s", strings.Join(libraries, ", ")),
		Remediation: []string{"Run manually: " + remediation},
	}
}

// NewPrerequisiteFailure reports a runtime prerequisite that is missing or too old.
func NewPrerequisiteFailure(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryInstallation,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewLoginCancelled marks a graceful stop at the login gate.
func NewLoginCancelled(cause error) error {
	return &ClassifiedError{
		Category: CategoryLoginCancelled,
		Message:  "login cancelled",
		Cause:    cause,
	}
}

// NewUnhandledFault is produced by the crash interceptor after an artifact is written.
func NewUnhandledFault(artifactPath string, cause error) error {
	remediation := []string{"See the crash directory for details"}
	if artifactPath != "" {
		remediation = []string{"Crash report written to " + artifactPath}
	}
	return &ClassifiedError{
		Category:    CategoryUnhandledFault,
		Message:     "unhandled fault",
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewInterrupted marks a user interrupt; no crash artifact accompanies it.
func NewInterrupted(cause error) error {
	return &ClassifiedError{
		Category: CategoryInterrupted,
		Message:  "interrupted",
		Cause:    cause,
	}
}

// NewConfigError reports an unreadable or invalid configuration.
func NewConfigError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryConfig,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}
