// pkg/onboarding/wizard.go

package onboarding

import (
	"context"
	"io"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// SettingsWriter persists branch settings.
type SettingsWriter interface {
	SetSetting(ctx context.Context, branch, key, value string) error
}

// Answers are the values collected by the wizard.
type Answers struct {
	BusinessName        string
	BackupIntervalHours int
}

// Wizard runs once, on the first boot of an installation.
type Wizard struct {
	Settings SettingsWriter
	// Interactive reports whether prompts can be shown; nil means
	// interaction.IsInteractive.
	Interactive func(rc *agms_io.RuntimeContext) bool
}

// Run returns (nil, nil) when this is not a first boot. Without a terminal
// the defaults are stored without prompting.
func (w *Wizard) Run(rc *agms_io.RuntimeContext, branch string) (*Answers, error) {
	if !rc.FirstRun {
		rc.Log.Debug("Onboarding already completed")
		return nil, nil
	}

	ans := &Answers{BusinessName: shared.AppOrg, BackupIntervalHours: rc.Config.Recovery.BackupIntervalHours}
	interactive := interaction.IsInteractive
	if w.Interactive != nil {
		interactive = w.Interactive
	}

	if interactive(rc) {
		rc.Log.Info("terminal prompt: Welcome to " + shared.AppName + ". A few questions before you start.")
		if err := w.ask(rc, ans); err != nil {
			return nil, err
		}
	} else {
		rc.Log.Info("No terminal attached; storing onboarding defaults")
	}

	settings := map[string]string{
		"business_name":         ans.BusinessName,
		"backup_interval_hours": strconv.Itoa(ans.BackupIntervalHours),
	}
	for k, v := range settings {
		if err := w.Settings.SetSetting(rc.Ctx, branch, k, v); err != nil {
			return nil, cerr.Wrap(err, "save onboarding answers")
		}
	}
	rc.Log.Info("Onboarding completed",
		zap.String("business_name", ans.BusinessName),
		zap.Int("backup_interval_hours", ans.BackupIntervalHours))
	return ans, nil
}

func (w *Wizard) ask(rc *agms_io.RuntimeContext, ans *Answers) error {
	name, err := interaction.PromptInput(rc, "Business name", ans.BusinessName)
	if err != nil && err != io.EOF {
		return err
	}
	if name != "" {
		ans.BusinessName = name
	}

	for {
		raw, err := interaction.PromptInput(rc, "Hours between automatic backups", strconv.Itoa(ans.BackupIntervalHours))
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		n, convErr := strconv.Atoi(raw)
		if convErr == nil && n > 0 {
			ans.BackupIntervalHours = n
			return nil
		}
		rc.Log.Info("terminal prompt: Please enter a whole number of hours greater than zero.")
	}
}
