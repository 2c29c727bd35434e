// pkg/launcher/steps.go
//
// The fixed startup sequence. Only encryption, storage, shared state and
// the login gate are critical; every other step may fail and leave its
// handle nil.

package launcher

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/auth"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/automation"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/boot"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/cloudsync"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/flags"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/health"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/keystore"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/messaging"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/notify"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/onboarding"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/recovery"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/surface"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/updater"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Step names, in execution order.
const (
	StepEncryption    = "encryption"
	StepStorage       = "storage"
	StepState         = "state"
	StepMigrations    = "migrations"
	StepSeeding       = "seeding"
	StepHealth        = "health"
	StepFlags         = "flags"
	StepRecovery      = "recovery"
	StepUpdates       = "updates"
	StepCloud         = "cloud"
	StepAuth          = "auth"
	StepOnboarding    = "onboarding"
	StepLogin         = "login"
	StepSurface       = "surface"
	StepNotifications = "notifications"
	StepCloudSync     = "cloud-sync"
	StepMessaging     = "messaging"
	StepAutomation    = "automation"
)

var errNoStore = cerr.New("storage is not connected")

// needStore guards actions that read or write the database.
func needStore(live *Live) error {
	if live.Store == nil {
		return errNoStore
	}
	return nil
}

// Action is a step body with access to the live handles.
type Action func(rc *agms_io.RuntimeContext, live *Live) error

type stepDef struct {
	name     string
	critical bool
	needs    []string
	action   Action
}

func definitions() []stepDef {
	core := []string{StepStorage, StepState}
	return []stepDef{
		{name: StepEncryption, critical: true, action: initEncryption},
		{name: StepStorage, critical: true, action: initStorage},
		{name: StepState, critical: true, action: initState},
		{name: StepMigrations, needs: []string{StepStorage}, action: runMigrations},
		{name: StepSeeding, needs: core, action: seedDefaults},
		{name: StepHealth, needs: core, action: startHealth},
		{name: StepFlags, needs: core, action: loadFlags},
		{name: StepRecovery, needs: core, action: startRecovery},
		{name: StepUpdates, needs: []string{StepState}, action: startUpdates},
		{name: StepCloud, needs: []string{StepEncryption, StepStorage, StepState}, action: startCloud},
		{name: StepAuth, needs: []string{StepStorage}, action: initAuth},
		{name: StepOnboarding, needs: core, action: runOnboarding},
		{name: StepLogin, critical: true, needs: []string{StepState}, action: awaitLogin},
		{name: StepSurface, needs: []string{StepLogin}, action: buildSurface},
		{name: StepNotifications, needs: []string{StepStorage, StepState, StepLogin}, action: fireNotifications},
		{name: StepCloudSync, needs: []string{StepLogin}, action: startCloudSync},
		{name: StepMessaging, needs: []string{StepLogin}, action: initMessaging},
		{name: StepAutomation, needs: []string{StepStorage, StepState, StepLogin}, action: startAutomation},
	}
}

// Steps binds the fixed sequence to live. overrides replaces the action of
// the named steps.
func Steps(live *Live, overrides map[string]Action) []boot.Step {
	defs := definitions()
	steps := make([]boot.Step, len(defs))
	for i, d := range defs {
		action := d.action
		if o, ok := overrides[d.name]; ok {
			action = o
		}
		steps[i] = boot.Step{
			Name:     d.name,
			Critical: d.critical,
			Needs:    d.needs,
			Action:   func(rc *agms_io.RuntimeContext) error { return action(rc, live) },
		}
	}
	return steps
}

func initEncryption(rc *agms_io.RuntimeContext, live *Live) error {
	restoreFromBackup(rc, rc.Layout.KeystoreFile())
	ks, created, err := keystore.Open(rc.Layout.KeystoreFile())
	if err != nil {
		return err
	}
	if created {
		rc.Log.Warn("New encryption key generated", zap.String("path", ks.Path()))
	}
	live.Keystore = ks
	return nil
}

// restoreFromBackup brings path back from the newest backup when it is
// missing. Failures are logged; the caller then regenerates the file.
func restoreFromBackup(rc *agms_io.RuntimeContext, path string) bool {
	ok, err := recovery.New(rc.Layout, rc.Log.Named("recovery")).RestoreFile(rc.Ctx, path)
	if err != nil {
		rc.Log.Warn("Restore from backup failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if ok {
		rc.Log.Warn("Restored from backup before startup", zap.String("path", path))
	}
	return ok
}

func initStorage(rc *agms_io.RuntimeContext, live *Live) error {
	s, err := storage.Open(rc.Ctx, rc.Config.Storage.DSN, rc.Log.Named("storage"))
	if err != nil {
		return err
	}
	live.Store = s
	return nil
}

func initState(rc *agms_io.RuntimeContext, live *Live) error {
	live.State = appstate.New(rc.Config.App.Branch)
	return nil
}

func runMigrations(rc *agms_io.RuntimeContext, live *Live) error {
	if err := needStore(live); err != nil {
		return err
	}
	return live.Store.Migrate(rc.Ctx)
}

func seedDefaults(rc *agms_io.RuntimeContext, live *Live) error {
	if err := needStore(live); err != nil {
		return err
	}
	_, err := live.Store.SeedDefaults(rc.Ctx, live.State.Branch())
	return err
}

func startHealth(rc *agms_io.RuntimeContext, live *Live) error {
	if err := needStore(live); err != nil {
		return err
	}
	m := health.NewMonitor(live.Store, live.State, rc.Log.Named("health"))
	if err := m.Start(live.Schedulers, rc.Config.Health.Interval); err != nil {
		return err
	}
	live.Health = m
	return nil
}

func loadFlags(rc *agms_io.RuntimeContext, live *Live) error {
	if err := needStore(live); err != nil {
		return err
	}
	f, err := flags.Load(rc.Ctx, live.Store, live.State.Branch())
	if err != nil {
		return err
	}
	if off := f.Disabled(); len(off) > 0 {
		rc.Log.Info("Features switched off", zap.Strings("features", off))
	}
	live.Flags = f
	return nil
}

func startRecovery(rc *agms_io.RuntimeContext, live *Live) error {
	e := recovery.New(rc.Layout, rc.Log.Named("recovery"))
	restored, err := e.SelfHeal(rc.Ctx)
	if err != nil {
		return cerr.Wrap(err, "self-heal")
	}
	if len(restored) > 0 {
		live.State.Push(appstate.Notification{
			Kind:  appstate.KindSystem,
			Title: "Restored from backup",
			Body:  strings.Join(restored, ", "),
		})
	}

	hours := rc.Config.Recovery.BackupIntervalHours
	if live.Store != nil {
		hours = live.Store.IntSetting(rc.Ctx, live.State.Branch(), "backup_interval_hours", hours)
	}
	if err := e.Start(live.Schedulers, recovery.Interval(hours)); err != nil {
		return err
	}
	live.Recovery = e
	return nil
}

func startUpdates(rc *agms_io.RuntimeContext, live *Live) error {
	det := live.detector
	if det == nil {
		gh, err := updater.NewGitHubDetector()
		if err != nil {
			return err
		}
		det = gh
	}
	c, err := updater.NewChecker(rc.Config.Updates.Repository, shared.Version, det, live.State, rc.Log.Named("updates"))
	if err != nil {
		return err
	}
	if err := c.Start(live.Schedulers, rc.Config.Updates.Interval); err != nil {
		return err
	}
	live.Updater = c
	return nil
}

func startCloud(rc *agms_io.RuntimeContext, live *Live) error {
	if err := live.Flags.Require(flags.CloudSync); err != nil {
		return err
	}
	if err := needStore(live); err != nil {
		return err
	}
	c, err := cloudsync.Connect(rc.Ctx, rc.Config.Cloud, live.Keystore, live.Store, rc.Log.Named("cloud"))
	if cerr.Is(err, cloudsync.ErrNotConfigured) {
		live.State.SetStatus("cloud", "not configured")
		return err
	}
	if err != nil {
		live.State.SetStatus("cloud", "offline")
		return err
	}
	branch := func() string { return live.branch(rc.Config.App.Branch) }
	if err := c.StartAutoSync(live.Schedulers, rc.Config.Cloud.AutoSyncInterval, branch); err != nil {
		_ = c.Close()
		return err
	}
	live.State.SetStatus("cloud", "ok")
	live.Cloud = c
	return nil
}

func initAuth(rc *agms_io.RuntimeContext, live *Live) error {
	var users auth.UserStore
	if live.Store != nil {
		users = live.Store
	}
	live.Auth = auth.NewManager(users, rc.Log.Named("auth"))
	return nil
}

func runOnboarding(rc *agms_io.RuntimeContext, live *Live) error {
	if err := needStore(live); err != nil {
		return err
	}
	w := &onboarding.Wizard{Settings: live.Store}
	ans, err := w.Run(rc, live.State.Branch())
	if err != nil {
		return err
	}
	live.Onboarding = ans
	return nil
}

func awaitLogin(rc *agms_io.RuntimeContext, live *Live) error {
	gate := &login.Gate{Auth: live.Auth, Challenger: live.challenger}
	if gate.Challenger == nil {
		gate.Challenger = login.TerminalChallenger{}
	}
	if rc.Config.App.DevLogin {
		if rc.Config.IsProduction() {
			rc.Log.Warn("Developer login is not allowed in production; ignoring app.dev_login")
		} else {
			gate.Fallback = login.DevSession(rc.Config.App.Branch)
		}
	}

	sess, err := gate.Await(rc)
	if err != nil {
		if agms_err.IsCategory(err, agms_err.CategoryLoginCancelled) || rc.Ctx.Err() != nil {
			return boot.Halt(err)
		}
		return err
	}
	live.Session = sess
	live.State.SetSession(sess)
	rc.Log.Info("Operator logged in", zap.String("identity", sess.Identity), zap.String("role", sess.Role), zap.String("branch", sess.Branch))
	return nil
}

func buildSurface(rc *agms_io.RuntimeContext, live *Live) error {
	if live.headless {
		rc.Log.Info("Headless mode: interactive surface not built")
		return nil
	}
	s, err := surface.New(live.Session, live.State, live.Schedulers.Handles, rc.In, rc.Out)
	if err != nil {
		return err
	}
	live.Surface = s
	return nil
}

func fireNotifications(rc *agms_io.RuntimeContext, live *Live) error {
	if err := live.Flags.Require(flags.Notifications); err != nil {
		return err
	}
	if err := needStore(live); err != nil {
		return err
	}
	e := notify.NewEngine(live.Store, live.State, rc.Log.Named("notify"))
	live.Notify = e
	_, err := e.Fire(rc.Ctx, live.Session.Branch)
	return err
}

func startCloudSync(rc *agms_io.RuntimeContext, live *Live) error {
	if live.Cloud == nil {
		return cerr.New("cloud sync is not connected")
	}
	branch := func() string { return live.branch(rc.Config.App.Branch) }
	return live.Cloud.StartSyncScheduler(live.Schedulers, rc.Layout.DataDir(), rc.Config.Cloud.SyncInterval, branch)
}

func initMessaging(rc *agms_io.RuntimeContext, live *Live) error {
	if err := live.Flags.Require(flags.Messaging); err != nil {
		return err
	}
	m, err := messaging.NewManager(rc.Config.Messaging.WebhookURL, rc.Config.Messaging.RatePerMinute, rc.Log.Named("messaging"))
	if err != nil {
		return err
	}
	live.Messaging = m
	return nil
}

func startAutomation(rc *agms_io.RuntimeContext, live *Live) error {
	if err := live.Flags.Require(flags.Automation); err != nil {
		return err
	}
	if err := needStore(live); err != nil {
		return err
	}
	var sweeper automation.Sweeper
	if live.Notify != nil {
		sweeper = live.Notify
	}
	var sender automation.Sender
	if live.Messaging != nil {
		sender = live.Messaging
	}

	e := automation.NewEngine(live.Store, sweeper, sender, live.guard, rc.Log.Named("automation"))
	branch := live.Session.Branch
	if _, _, err := e.InstallDefaults(rc.Ctx, branch); err != nil {
		return err
	}
	if _, err := e.Load(rc.Ctx, branch); err != nil {
		return err
	}
	if err := e.Start(live.Schedulers.Context(), live.Schedulers, rc.Config.Automation.ReminderInterval, func() string { return live.branch(branch) }); err != nil {
		return err
	}
	live.Automation = e
	return nil
}
