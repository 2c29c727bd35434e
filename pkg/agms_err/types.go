// pkg/agms_err/types.go

package agms_err

import (
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// ErrInterrupted is the cancellation cause installed when the operator
// sends SIGINT or SIGTERM.
var ErrInterrupted = cerr.New("interrupted by signal")

// UserError marks an error as expected and recoverable by the user.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}

// NewExpectedError wraps an error for softer UX handling.
func NewExpectedError(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{cause: err}
}

// IsExpectedUserError checks if the error is marked as expected.
func IsExpectedUserError(err error) bool {
	var e *UserError
	return cerr.As(err, &e)
}

// WithRemediation attaches operator hints to err.
func WithRemediation(err error, hints ...string) error {
	for _, h := range hints {
		err = cerr.WithHint(err, h)
	}
	return err
}

// ExtractSummary extracts a concise error summary from full command output.
// Lines mentioning errors win; otherwise the first non-empty line is used.
func ExtractSummary(output string, maxCandidates int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "No output provided."
	}

	lines := strings.Split(trimmed, "\n")
	var candidates []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lowerLine := strings.ToLower(line)
		if strings.Contains(lowerLine, "error") ||
			strings.Contains(lowerLine, "failed") ||
			strings.Contains(lowerLine, "cannot") ||
			strings.Contains(lowerLine, "no matching distribution") {
			candidates = append(candidates, line)
		}
	}

	if len(candidates) > 0 {
		if maxCandidates > 0 && len(candidates) > maxCandidates {
			candidates = candidates[:maxCandidates]
		}
		return strings.Join(candidates, " - ")
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}

	return "Unknown error."
}
