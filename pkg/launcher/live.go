// pkg/launcher/live.go

package launcher

import (
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/automation"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/cloudsync"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/flags"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/health"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/keystore"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/messaging"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/notify"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/onboarding"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/recovery"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/surface"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/updater"
)

// Live holds the handles produced by the boot steps. A field stays nil when
// its step was skipped; every reader checks before use.
type Live struct {
	Keystore   *keystore.Keystore
	Store      *storage.Store
	State      *appstate.State
	Health     *health.Monitor
	Flags      *flags.Flags
	Recovery   *recovery.Engine
	Updater    *updater.Checker
	Cloud      *cloudsync.Client
	Auth       login.Authenticator
	Onboarding *onboarding.Answers
	Session    *login.Session
	Surface    *surface.Surface
	Notify     *notify.Engine
	Messaging  *messaging.Manager
	Automation *automation.Engine
	Schedulers *scheduler.Registry

	guard      scheduler.Guard
	challenger login.Challenger
	detector   updater.Detector
	headless   bool
}

// branch is the branch of the logged-in operator, or the configured one
// before login.
func (l *Live) branch(fallback string) string {
	if l.State != nil {
		return l.State.Branch()
	}
	return fallback
}

func (l *Live) close() {
	if l.Cloud != nil {
		_ = l.Cloud.Close()
	}
	if l.Store != nil {
		_ = l.Store.Close()
	}
}
