package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/boot"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/installer"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/prereq"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/recovery"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDialog struct {
	mu    sync.Mutex
	shown []string
}

func (d *recordingDialog) Show(title, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, title+": "+message)
	return nil
}

type fakeAuth struct{ session *login.Session }

func (a fakeAuth) Authenticate(_ context.Context, c login.Credentials) (*login.Session, error) {
	if c.Identity != a.session.Identity {
		return nil, login.ErrInvalidCredentials
	}
	return a.session, nil
}

type fixedChallenger struct {
	creds login.Credentials
	err   error
	block bool
}

func (c fixedChallenger) Challenge(rc *agms_io.RuntimeContext, _ int) (login.Credentials, error) {
	if c.block {
		<-rc.Ctx.Done()
	}
	return c.creds, c.err
}

// trace records which step actions ran, in order.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, name)
}

func (tr *trace) ran() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

// stubbed replaces every step except encryption, state and login with a
// recording no-op. auth installs a fake authenticator.
func stubbed(tr *trace, session *login.Session) map[string]Action {
	out := make(map[string]Action)
	for _, d := range definitions() {
		switch d.name {
		case StepEncryption, StepState, StepLogin:
			continue
		}
		name := d.name
		out[name] = func(*agms_io.RuntimeContext, *Live) error {
			tr.add(name)
			return nil
		}
	}
	out[StepAuth] = func(_ *agms_io.RuntimeContext, live *Live) error {
		tr.add(StepAuth)
		live.Auth = fakeAuth{session: session}
		return nil
	}
	return out
}

func newRC(t *testing.T, ctx context.Context) *agms_io.RuntimeContext {
	t.Helper()
	rc := agms_io.NewContext(ctx, "launch")
	rc.Log = zap.NewNop()
	rc.Layout = shared.Layout{Root: t.TempDir()}
	rc.In = strings.NewReader("")
	rc.Out = &bytes.Buffer{}
	return rc
}

var operator = login.NewSession("a@agms.local", "A", "admin", "north")

func TestStepsOrderAndCriticality(t *testing.T) {
	t.Parallel()

	steps := Steps(&Live{}, nil)
	var names, critical []string
	for _, s := range steps {
		names = append(names, s.Name)
		if s.Critical {
			critical = append(critical, s.Name)
		}
	}
	assert.Equal(t, []string{
		StepEncryption, StepStorage, StepState, StepMigrations, StepSeeding,
		StepHealth, StepFlags, StepRecovery, StepUpdates, StepCloud, StepAuth,
		StepOnboarding, StepLogin, StepSurface, StepNotifications, StepCloudSync,
		StepMessaging, StepAutomation,
	}, names)
	assert.Equal(t, []string{StepEncryption, StepStorage, StepState, StepLogin}, critical)

	_, err := boot.New(steps...)
	require.NoError(t, err)
}

func TestRunLoginCancelExitsZero(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	rc := newRC(t, context.Background())
	err := Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{err: login.ErrCancelled},
		Overrides:  stubbed(tr, operator),
	})

	require.Error(t, err)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
	assert.Equal(t, agms_err.ExitOK, agms_err.GetExitCode(err))
	assert.NotContains(t, tr.ran(), StepSurface)
	assert.NotContains(t, tr.ran(), StepAutomation)
}

func TestRunInterruptDuringLogin(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	rc := newRC(t, ctx)
	tr := &trace{}
	overrides := stubbed(tr, operator)
	overrides[StepOnboarding] = func(*agms_io.RuntimeContext, *Live) error {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel(agms_err.ErrInterrupted)
		}()
		return nil
	}

	err := Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{block: true},
		Overrides:  overrides,
	})

	require.Error(t, err)
	assert.Equal(t, agms_err.ExitInterrupted, agms_err.GetExitCode(err))
	assert.NotContains(t, tr.ran(), StepSurface)
}

func TestRunCriticalFailureStopsBoot(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	overrides := stubbed(tr, operator)
	overrides[StepStorage] = func(*agms_io.RuntimeContext, *Live) error {
		return errors.New("connection refused")
	}
	dialog := &recordingDialog{}
	rc := newRC(t, context.Background())
	out := &bytes.Buffer{}
	rc.Out = out
	rc.Log = logger.WithNotices(rc.Log, out)

	err := Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     dialog,
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	})

	require.Error(t, err)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryCriticalBoot))
	assert.Equal(t, agms_err.ExitFatalBoot, agms_err.GetExitCode(err))
	assert.Empty(t, tr.ran(), "nothing after storage may run")

	require.Len(t, dialog.shown, 1)
	assert.Contains(t, dialog.shown[0], "connection refused")
	assert.Contains(t, out.String(), "AGMS Enterprise could not start.\n")
	assert.Contains(t, out.String(), "Failed step: storage\n")
}

func TestRunContinuesPastOptionalFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &trace{}
	overrides := stubbed(tr, operator)
	overrides[StepHealth] = func(*agms_io.RuntimeContext, *Live) error {
		tr.add(StepHealth)
		return errors.New("ping failed")
	}
	overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
		tr.add(StepAutomation)
		cancel()
		return nil
	}

	err := Run(newRC(t, ctx), Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		StepStorage, StepMigrations, StepSeeding, StepHealth, StepFlags,
		StepRecovery, StepUpdates, StepCloud, StepAuth, StepOnboarding,
		StepSurface, StepNotifications, StepCloudSync, StepMessaging, StepAutomation,
	}, tr.ran())
}

func TestRunSessionVisibleAfterLogin(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &trace{}
	overrides := stubbed(tr, operator)

	var seen *login.Session
	var stateSeen *login.Session
	overrides[StepSurface] = func(_ *agms_io.RuntimeContext, live *Live) error {
		seen = live.Session
		stateSeen = live.State.Session()
		return nil
	}
	overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
		cancel()
		return nil
	}

	err := Run(newRC(t, ctx), Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "A", seen.Name)
	assert.Equal(t, "admin", seen.Role)
	assert.Same(t, seen, stateSeen)
}

func TestRunPanicWritesOneArtifact(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	overrides := stubbed(tr, operator)
	overrides[StepFlags] = func(*agms_io.RuntimeContext, *Live) error {
		panic("X")
	}
	dialog := &recordingDialog{}
	rc := newRC(t, context.Background())

	err := Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     dialog,
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	})

	require.Error(t, err)
	assert.Equal(t, agms_err.ExitFault, agms_err.GetExitCode(err))

	entries, readErr := os.ReadDir(rc.Layout.CrashDir())
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
	require.Len(t, dialog.shown, 1)
	assert.Contains(t, dialog.shown[0], shared.GenericCrashMessage)
	assert.NotContains(t, tr.ran(), StepRecovery)
}

func TestRunMarksFirstRunOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	run := func() bool {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		overrides := stubbed(&trace{}, operator)
		var first bool
		overrides[StepOnboarding] = func(rc *agms_io.RuntimeContext, _ *Live) error {
			first = rc.FirstRun
			return nil
		}
		overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
			cancel()
			return nil
		}
		rc := newRC(t, ctx)
		rc.Layout = shared.Layout{Root: root}
		require.NoError(t, Run(rc, Options{
			SkipDeps:   true,
			Headless:   true,
			Dialog:     &recordingDialog{},
			Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
			Overrides:  overrides,
		}))
		return first
	}

	assert.True(t, run())
	layout := shared.Layout{Root: root}
	assert.FileExists(t, layout.SetupMarker())
	assert.FileExists(t, layout.ConfigFile())
	assert.FileExists(t, layout.KeystoreFile())
	assert.False(t, run())
}

type brokenPip struct{}

func (brokenPip) Run(_ context.Context, _ string, args ...string) (string, error) {
	if len(args) == 1 && args[0] == "--version" {
		return "Python 3.12.4", nil
	}
	return "ERROR: No matching distribution found", errors.New("exit status 1")
}

func TestRunDeclinedDependenciesExitOne(t *testing.T) {
	t.Parallel()

	rc := newRC(t, context.Background())
	tr := &trace{}
	err := Run(rc, Options{
		Dialog:       &recordingDialog{},
		Bootstrapper: &prereq.Bootstrapper{Runner: brokenPip{}, Python: "python3"},
		Overrides:    stubbed(tr, operator),
	})

	require.Error(t, err)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryInstallation))
	assert.Equal(t, agms_err.ExitInstall, agms_err.GetExitCode(err))
	assert.Empty(t, tr.ran())
	assert.NoDirExists(t, rc.Layout.CrashDir())
}

func TestRunRestoresKeyAndConfigFromBackup(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := newRC(t, ctx)
	layout := rc.Layout
	require.NoError(t, layout.EnsureDirs())

	key := bytes.Repeat([]byte{7}, 32)
	require.NoError(t, os.WriteFile(layout.KeystoreFile(), key, 0o600))
	require.NoError(t, os.WriteFile(layout.ConfigFile(), []byte("app:\n  branch: south\n"), 0o600))
	_, err := recovery.New(layout, nil).Backup(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(layout.KeystoreFile()))
	require.NoError(t, os.Remove(layout.ConfigFile()))

	overrides := stubbed(&trace{}, operator)
	overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
		cancel()
		return nil
	}
	require.NoError(t, Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	}))

	got, err := os.ReadFile(layout.KeystoreFile())
	require.NoError(t, err)
	assert.Equal(t, key, got, "the backed-up key comes back, not a fresh one")

	cfg, err := os.ReadFile(layout.ConfigFile())
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "south")
	assert.Equal(t, "south", rc.Config.App.Branch)
}

type setupStore struct{}

func (setupStore) Migrate(context.Context) error                           { return nil }
func (setupStore) SeedDefaults(context.Context, string) (int, error)       { return 0, nil }
func (setupStore) EnsureUser(context.Context, *storage.User) (bool, error) { return true, nil }
func (setupStore) Close() error                                            { return nil }

func TestRunAfterSetupIsStillFirstRun(t *testing.T) {
	t.Parallel()

	setupRC := newRC(t, context.Background())
	_, err := installer.Run(setupRC, installer.Options{
		AdminPassword: "correct horse",
		SkipDeps:      true,
		OpenStore: func(context.Context, string, *zap.Logger) (installer.Store, error) {
			return setupStore{}, nil
		},
		Interactive: func(*agms_io.RuntimeContext) bool { return false },
	})
	require.NoError(t, err)
	assert.True(t, setupRC.Layout.IsInstalled())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := newRC(t, ctx)
	rc.Layout = setupRC.Layout

	overrides := stubbed(&trace{}, operator)
	var first bool
	overrides[StepOnboarding] = func(rc *agms_io.RuntimeContext, _ *Live) error {
		first = rc.FirstRun
		return nil
	}
	overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
		cancel()
		return nil
	}
	require.NoError(t, Run(rc, Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Overrides:  overrides,
	}))
	assert.True(t, first, "onboarding must see the first launch after setup")
}

func TestRunDeveloperLoginWithoutInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		environment string
		wantDev     bool
	}{
		{name: "development", environment: shared.EnvDevelopment, wantDev: true},
		{name: "production", environment: shared.EnvProduction},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			rc := newRC(t, ctx)
			require.NoError(t, rc.Layout.EnsureDirs())
			require.NoError(t, os.WriteFile(rc.Layout.ConfigFile(), []byte("app:\n  dev_login: true\n"), 0o600))
			rc.Config.App.DevLogin = true
			rc.Config.App.Environment = tt.environment

			// real auth step; stdin is empty and no terminal is attached
			overrides := stubbed(&trace{}, operator)
			delete(overrides, StepAuth)
			var seen *login.Session
			overrides[StepSurface] = func(_ *agms_io.RuntimeContext, live *Live) error {
				seen = live.Session
				return nil
			}
			overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
				cancel()
				return nil
			}

			err := Run(rc, Options{
				SkipDeps:  true,
				Headless:  true,
				Dialog:    &recordingDialog{},
				Overrides: overrides,
			})

			if !tt.wantDev {
				require.Error(t, err)
				assert.True(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
				assert.Equal(t, agms_err.ExitOK, agms_err.GetExitCode(err))
				assert.Nil(t, seen)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, seen)
			assert.Equal(t, login.DevSession(rc.Config.App.Branch).Identity, seen.Identity)
		})
	}
}

// wrongUntil rejects attempts up to n with an unknown identity.
type wrongUntil struct{ n int }

func (c wrongUntil) Challenge(_ *agms_io.RuntimeContext, attempt int) (login.Credentials, error) {
	if attempt <= c.n {
		return login.Credentials{Identity: "nobody@agms.local"}, nil
	}
	return login.Credentials{Identity: operator.Identity}, nil
}

func TestRunKeepsAskingAfterWrongCredentials(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	overrides := stubbed(&trace{}, operator)
	var seen *login.Session
	overrides[StepSurface] = func(_ *agms_io.RuntimeContext, live *Live) error {
		seen = live.Session
		return nil
	}
	overrides[StepAutomation] = func(*agms_io.RuntimeContext, *Live) error {
		cancel()
		return nil
	}

	require.NoError(t, Run(newRC(t, ctx), Options{
		SkipDeps:   true,
		Headless:   true,
		Dialog:     &recordingDialog{},
		Challenger: wrongUntil{n: 9},
		Overrides:  overrides,
	}))
	require.NotNil(t, seen)
	assert.Equal(t, operator.Identity, seen.Identity)
}
