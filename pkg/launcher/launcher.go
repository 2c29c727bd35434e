// pkg/launcher/launcher.go
//
// Launch is the whole life of one `agms launch`: make sure helper libraries
// are present, prepare the installation directory, then boot and run the
// event loop under the crash interceptor. Background members stop when the
// event loop returns.

package launcher

import (
	"context"
	"os"

	"github.com/CodeMonkeyCybersecurity/agms/config"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appconfig"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/boot"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/crash"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/prereq"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/updater"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Options tune one launch. Zero values give the production behaviour.
type Options struct {
	SkipDeps  bool
	AssumeYes bool
	// Headless runs without the interactive surface; the process then
	// lives until its context ends.
	Headless bool

	// Dialog shows crash and boot-failure notices. Nil falls back to a
	// terminal dialog on stderr when one is attached.
	Dialog crash.Dialog

	Bootstrapper *prereq.Bootstrapper
	Challenger   login.Challenger
	Detector     updater.Detector

	// Overrides replaces the action of the named boot steps.
	Overrides map[string]Action
	// Observe is called after every boot step with its entry.
	Observe func(boot.Entry)
}

// Run launches the application and blocks until it exits. The returned
// error carries the exit category: nil and login-cancelled exit 0.
func Run(rc *agms_io.RuntimeContext, opts Options) error {
	log := rc.Log

	// ASSESS
	if !opts.SkipDeps {
		if err := ensureDeps(rc, opts); err != nil {
			return err
		}
	}

	if err := rc.Layout.EnsureDirs(); err != nil {
		return agms_err.NewConfigError("cannot prepare installation directory", err)
	}
	restored := restoreFromBackup(rc, rc.Layout.ConfigFile())
	created, err := appconfig.EnsureFromTemplate(rc.Ctx, rc.Layout.ConfigTemplate(), rc.Layout.ConfigFile())
	if err != nil {
		return agms_err.NewConfigError("cannot create configuration file", err,
			"Check that "+rc.Layout.ConfigDir()+" is writable")
	}
	if created || restored {
		if created {
			log.Info("Configuration created from template", zap.String("path", rc.Layout.ConfigFile()))
		}
		cfg, err := appconfig.Load(rc.Layout)
		if err != nil {
			return err
		}
		rc.Config = cfg
	}

	if !rc.Layout.IsInstalled() {
		log.Info("No completed setup found here; run `agms setup` to create the database and administrator",
			zap.String("root", rc.Layout.Root))
	}

	rc.FirstRun = rc.Layout.IsFirstRun()
	if rc.FirstRun {
		if err := rc.Layout.MarkSetupDone(); err != nil {
			log.Warn("Could not write setup marker", zap.Error(err))
		}
	}

	// INTERVENE
	dialog := opts.Dialog
	if dialog == nil {
		dialog = crash.NewTerminalDialog(os.Stderr)
	}
	interceptor := crash.New(rc.Layout.CrashDir(), dialog, log.Named("crash"))

	// EVALUATE
	return interceptor.Supervise(rc, func(rc *agms_io.RuntimeContext) error {
		return bootAndServe(rc, interceptor, dialog, opts)
	})
}

func ensureDeps(rc *agms_io.RuntimeContext, opts Options) error {
	manifest, err := config.LoadManifest(rc.Layout.RequirementsFile())
	if err != nil {
		return agms_err.NewConfigError("cannot read helper library manifest", err)
	}
	b := opts.Bootstrapper
	if b == nil {
		b = prereq.New(rc.Config.Deps.Python, rc.Log.Named("deps"))
	}
	report, err := b.Ensure(rc, prereq.FromManifest(manifest), prereq.Options{InstallOptional: rc.Config.Deps.InstallOptional})
	if err != nil {
		return err
	}
	prereq.Summarize(rc, report)
	return prereq.Confirm(rc, report, opts.AssumeYes || rc.Config.Deps.AssumeYes)
}

func bootAndServe(rc *agms_io.RuntimeContext, guard *crash.Interceptor, dialog crash.Dialog, opts Options) error {
	log := rc.Log
	live := &Live{
		guard:      guard,
		challenger: opts.Challenger,
		detector:   opts.Detector,
		headless:   opts.Headless,
	}
	bgCtx, stop := context.WithCancel(rc.Ctx)
	live.Schedulers = scheduler.NewRegistry(bgCtx, log.Named("scheduler"), guard)
	defer func() {
		stop()
		live.Schedulers.Wait()
		live.close()
		log.Info("Background members stopped")
	}()

	orch, err := boot.New(Steps(live, opts.Overrides)...)
	if err != nil {
		return err
	}
	orch.Observe = opts.Observe
	report, err := orch.Run(rc)
	log.Info("Boot report\n" + report.String())
	if err != nil {
		if agms_err.IsCategory(err, agms_err.CategoryCriticalBoot) {
			showBootFailure(rc, dialog, report, err)
		}
		return err
	}

	return serve(rc, live)
}

// serve is the event loop. Background members are stopped by the caller
// once it returns.
func serve(rc *agms_io.RuntimeContext, live *Live) error {
	if live.Surface != nil {
		rc.Log.Info("Surface running", zap.Strings("background", handleNames(live)))
		if err := live.Surface.Run(rc.Ctx); err != nil {
			return cerr.Wrap(err, "surface")
		}
		rc.Log.Info("Surface closed by operator")
		return nil
	}

	rc.Log.Info("Running without surface until stopped", zap.Strings("background", handleNames(live)))
	<-rc.Ctx.Done()
	return nil
}

func handleNames(live *Live) []string {
	var names []string
	for _, h := range live.Schedulers.Handles() {
		names = append(names, h.Name)
	}
	return names
}

func showBootFailure(rc *agms_io.RuntimeContext, dialog crash.Dialog, report *boot.Report, err error) {
	msg := err.Error()
	if c, ok := agms_err.AsClassified(err); ok {
		msg = c.Report()
	}
	rc.Log.Info("terminal prompt: AGMS Enterprise could not start.")
	rc.Log.Info("terminal prompt: " + msg)
	if report != nil && report.FatalStep != "" {
		rc.Log.Info("terminal prompt: Failed step: " + report.FatalStep)
	}
	if dialog == nil {
		return
	}
	if derr := dialog.Show("AGMS Enterprise could not start", msg); derr != nil {
		rc.Log.Warn("Boot failure notice failed", zap.Error(derr))
	}
}
