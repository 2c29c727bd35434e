// pkg/automation/defaults.go

package automation

import "github.com/CodeMonkeyCybersecurity/agms/pkg/storage"

// Rule actions.
const (
	ActionSweep         = "sweep"
	ActionMessagePrefix = "message:"
)

// DefaultRules are installed for every branch on boot.
func DefaultRules(branch string) []storage.Rule {
	return []storage.Rule{
		{Branch: branch, Name: "morning-sweep", Schedule: "0 8 * * *", Action: ActionSweep, Enabled: true},
		{Branch: branch, Name: "birthday-greetings", Schedule: "0 9 * * *", Action: ActionMessagePrefix + "birthday", Enabled: true},
		{Branch: branch, Name: "weekly-follow-up", Schedule: "0 10 * * MON", Action: ActionMessagePrefix + "weekly_follow_up", Enabled: false},
	}
}

// DefaultTemplates back the default message rules.
func DefaultTemplates(branch string) []storage.Template {
	return []storage.Template{
		{Branch: branch, Name: "birthday", Channel: "webhook", Body: "Happy birthday from all of us at {{business}}!"},
		{Branch: branch, Name: "weekly_follow_up", Channel: "webhook", Body: "Checking in from {{business}}. Reply to book your next visit."},
	}
}
