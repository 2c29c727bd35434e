// pkg/prereq/confirm.go

package prereq

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/interaction"
	"go.uber.org/zap"
)

var (
	defaultInteractive = interaction.IsInteractive
	isInteractive      = defaultInteractive
)

// Confirm reports required failures and asks whether to continue anyway.
// It returns nil when there is nothing to confirm or the operator accepts,
// and the installation failure otherwise. Without a terminal the answer is
// no unless assumeYes is set.
func Confirm(rc *agms_io.RuntimeContext, report *Report, assumeYes bool) error {
	failure := report.Err()
	if failure == nil {
		return nil
	}

	var specs []string
	for _, rec := range report.RequiredFailures() {
		specs = append(specs, rec.Spec)
	}
	rc.Log.Info(fmt.Sprintf("terminal prompt: Failed to install: %s", strings.Join(specs, ", ")))
	rc.Log.Info("terminal prompt: Run manually: " + report.Remediation())

	if assumeYes {
		rc.Log.Warn("Continuing without required libraries", zap.Strings("missing", specs))
		return nil
	}
	if !isInteractive(rc) {
		rc.Log.Error("No terminal to confirm continuing without required libraries")
		return failure
	}

	ok, err := interaction.PromptYesNo(rc, "Continue anyway?", false)
	if err != nil || !ok {
		return failure
	}
	rc.Log.Warn("Operator chose to continue without required libraries", zap.Strings("missing", specs))
	return nil
}

// Summarize writes a one-line-per-library summary of optional libraries
// that are not available and the features they unlock.
func Summarize(rc *agms_io.RuntimeContext, report *Report) {
	missing := report.OptionalMissing()
	if len(missing) == 0 {
		return
	}
	rc.Log.Info("terminal prompt: Optional libraries not installed:")
	for _, rec := range missing {
		line := "  " + rec.Spec
		if rec.Feature != "" {
			line += " (" + rec.Feature + ")"
		}
		rc.Log.Info("terminal prompt:" + line)
	}
}
