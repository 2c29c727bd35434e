// pkg/installer/installer.go
//
// First-time installation for `agms setup`: verify the helper runtime,
// install libraries, lay out the installation directory, prepare the
// database and create the first administrator. Every step is idempotent so
// setup can be re-run after a partial failure.

package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/config"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appconfig"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/auth"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/keystore"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/prereq"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Store is the part of the database setup needs.
type Store interface {
	Migrate(ctx context.Context) error
	SeedDefaults(ctx context.Context, branch string) (int, error)
	EnsureUser(ctx context.Context, u *storage.User) (bool, error)
	Close() error
}

// Options tune one setup run.
type Options struct {
	// AdminPassword is used for the first administrator. Empty means ask on
	// the terminal.
	AdminPassword string
	AssumeYes     bool
	SkipDeps      bool

	Bootstrapper *prereq.Bootstrapper
	// OpenStore defaults to storage.Open.
	OpenStore func(ctx context.Context, dsn string, log *zap.Logger) (Store, error)
	// Interactive defaults to interaction.IsInteractive.
	Interactive func(rc *agms_io.RuntimeContext) bool
}

// Result summarizes what setup changed.
type Result struct {
	Installed     []string
	ConfigCreated bool
	KeyCreated    bool
	Seeded        int
	AdminCreated  bool
}

// Run performs the installation.
func Run(rc *agms_io.RuntimeContext, opts Options) (*Result, error) {
	res := &Result{}
	interactive := interaction.IsInteractive
	if opts.Interactive != nil {
		interactive = opts.Interactive
	}

	// ASSESS
	if !opts.SkipDeps {
		installed, err := installDeps(rc, opts, interactive(rc))
		if err != nil {
			return nil, err
		}
		res.Installed = installed
	}

	// INTERVENE
	if err := rc.Layout.EnsureDirs(); err != nil {
		return nil, agms_err.NewConfigError("cannot create installation directories", err)
	}
	created, err := appconfig.EnsureFromTemplate(rc.Ctx, rc.Layout.ConfigTemplate(), rc.Layout.ConfigFile())
	if err != nil {
		return nil, agms_err.NewConfigError("cannot create configuration file", err)
	}
	res.ConfigCreated = created
	if created {
		cfg, err := appconfig.Load(rc.Layout)
		if err != nil {
			return nil, err
		}
		rc.Config = cfg
	}

	_, keyCreated, err := keystore.Open(rc.Layout.KeystoreFile())
	if err != nil {
		return nil, cerr.Wrap(err, "prepare encryption key")
	}
	res.KeyCreated = keyCreated

	if err := prepareDatabase(rc, opts, interactive(rc), res); err != nil {
		return nil, err
	}

	if err := rc.Layout.MarkInstalled(); err != nil {
		return nil, cerr.Wrap(err, "write setup marker")
	}

	// EVALUATE
	rc.Log.Info("Setup completed",
		zap.Strings("installed", res.Installed),
		zap.Bool("config_created", res.ConfigCreated),
		zap.Bool("key_created", res.KeyCreated),
		zap.Int("settings_seeded", res.Seeded),
		zap.Bool("admin_created", res.AdminCreated))
	rc.Log.Info("terminal prompt: Setup complete. Start the application with: agms launch")
	return res, nil
}

// installDeps installs required libraries, then offers each missing
// optional one. Required failures abort setup with the manual command.
func installDeps(rc *agms_io.RuntimeContext, opts Options, interactive bool) ([]string, error) {
	manifest, err := config.LoadManifest(rc.Layout.RequirementsFile())
	if err != nil {
		return nil, agms_err.NewConfigError("cannot read helper library manifest", err)
	}
	b := opts.Bootstrapper
	if b == nil {
		b = prereq.New(rc.Config.Deps.Python, rc.Log.Named("deps"))
	}

	report, err := b.Ensure(rc, prereq.FromManifest(manifest), prereq.Options{})
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		rc.Log.Info("terminal prompt: Run manually: " + report.Remediation())
		return nil, err
	}

	var installed []string
	for _, rec := range report.Installed() {
		installed = append(installed, rec.Spec)
	}

	for _, rec := range report.OptionalMissing() {
		want := opts.AssumeYes || rc.Config.Deps.InstallOptional
		if !want && interactive {
			q := fmt.Sprintf("Install optional %s", rec.Spec)
			if rec.Feature != "" {
				q += " (" + rec.Feature + ")"
			}
			want, err = interaction.PromptYesNo(rc, q+"?", false)
			if err != nil {
				want = false
			}
		}
		if !want {
			continue
		}
		out := b.Install(rc, rec.Requirement)
		if out.Installed {
			installed = append(installed, rec.Spec)
			continue
		}
		rc.Log.Info("terminal prompt: Could not install " + rec.Spec + "; run: pip install " + rec.Spec)
	}
	return installed, nil
}

func prepareDatabase(rc *agms_io.RuntimeContext, opts Options, interactive bool, res *Result) error {
	open := opts.OpenStore
	if open == nil {
		open = func(ctx context.Context, dsn string, log *zap.Logger) (Store, error) {
			return storage.Open(ctx, dsn, log)
		}
	}
	store, err := open(rc.Ctx, rc.Config.Storage.DSN, rc.Log.Named("storage"))
	if err != nil {
		return agms_err.NewConfigError("cannot connect to the database", err,
			"Set storage.dsn in "+rc.Layout.ConfigFile(),
			"Or export "+shared.EnvPrefix+"_STORAGE_DSN")
	}
	defer store.Close()

	if err := store.Migrate(rc.Ctx); err != nil {
		return err
	}
	branch := rc.Config.App.Branch
	seeded, err := store.SeedDefaults(rc.Ctx, branch)
	if err != nil {
		return err
	}
	res.Seeded = seeded

	password := opts.AdminPassword
	if password == "" {
		if !interactive {
			return agms_err.NewConfigError("no administrator password given", nil,
				"Re-run with --admin-password, or run setup from a terminal")
		}
		password, err = askPassword(rc)
		if err != nil {
			return err
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return agms_err.NewConfigError("administrator password rejected", err)
	}

	admin := &storage.User{
		Email:        shared.DefaultAdminEmail,
		Name:         "Administrator",
		Role:         shared.DefaultAdminRole,
		Branch:       branch,
		PasswordHash: hash,
		Active:       true,
	}
	created, err := store.EnsureUser(rc.Ctx, admin)
	if err != nil {
		return err
	}
	res.AdminCreated = created
	if created {
		rc.Log.Info("terminal prompt: Administrator account created: " + admin.Email)
	} else {
		rc.Log.Info("Administrator already exists; password unchanged", zap.String("email", admin.Email))
	}
	return nil
}

func askPassword(rc *agms_io.RuntimeContext) (string, error) {
	for {
		pw, err := interaction.PromptSecret(rc, "Administrator password")
		if err != nil {
			return "", err
		}
		if len([]rune(strings.TrimSpace(pw))) < auth.MinPasswordLength {
			rc.Log.Info(fmt.Sprintf("terminal prompt: Use at least %d characters.", auth.MinPasswordLength))
			continue
		}
		confirm, err := interaction.PromptSecret(rc, "Confirm password")
		if err != nil {
			return "", err
		}
		if confirm != pw {
			rc.Log.Info("terminal prompt: Passwords do not match.")
			continue
		}
		return pw, nil
	}
}
