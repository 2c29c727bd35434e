package launcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/boot"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/updater"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStepBroke = errors.New("step broke")

type noReleases struct{}

func (noReleases) Latest(context.Context, string) (*updater.Release, bool, error) {
	return nil, false, nil
}

// entries collects boot entries as the orchestrator records them.
type entries struct {
	mu  sync.Mutex
	all []boot.Entry
}

func (e *entries) add(entry boot.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, entry)
}

func (e *entries) outcome(step string) boot.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.all {
		if entry.Step == step {
			return entry.Outcome
		}
	}
	return boot.Pending
}

func (e *entries) last() boot.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.all[len(e.all)-1]
}

// withoutDatabase keeps every real action except the two that need a
// Postgres server: storage succeeds without a handle and auth accepts the
// operator.
func withoutDatabase(session *login.Session) map[string]Action {
	return map[string]Action{
		StepStorage: func(*agms_io.RuntimeContext, *Live) error { return nil },
		StepAuth: func(_ *agms_io.RuntimeContext, live *Live) error {
			live.Auth = fakeAuth{session: session}
			return nil
		},
	}
}

func TestRunWithEachStepFailing(t *testing.T) {
	t.Parallel()

	defs := definitions()
	for i, d := range defs {
		i, d := i, d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			rec := &entries{}
			overrides := withoutDatabase(operator)
			overrides[d.name] = func(*agms_io.RuntimeContext, *Live) error { return errStepBroke }

			err := Run(newRC(t, ctx), Options{
				SkipDeps:   true,
				Dialog:     &recordingDialog{},
				Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
				Detector:   noReleases{},
				Overrides:  overrides,
				Observe: func(e boot.Entry) {
					rec.add(e)
					if e.Step == StepAutomation {
						cancel()
					}
				},
			})

			// without an authenticator the login gate has nothing to ask
			fatal := ""
			switch {
			case d.critical:
				fatal = d.name
			case d.name == StepAuth:
				fatal = StepLogin
			}

			if fatal != "" {
				require.Error(t, err)
				assert.True(t, agms_err.IsCategory(err, agms_err.CategoryCriticalBoot))
				assert.Equal(t, agms_err.ExitFatalBoot, agms_err.GetExitCode(err))
				assert.Equal(t, boot.Fatal, rec.outcome(fatal))
				assert.Equal(t, fatal, rec.last().Step, "nothing runs after %s", fatal)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, boot.SkippedNonFatal, rec.outcome(d.name))
			assert.Equal(t, boot.Ok, rec.outcome(StepLogin))
			for _, later := range defs[i+1:] {
				assert.NotEqual(t, boot.Pending, rec.outcome(later.name), "%s must still be attempted", later.name)
			}
		})
	}
}

func TestRealActionsTolerateMissingHandles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &entries{}
	err := Run(newRC(t, ctx), Options{
		SkipDeps:   true,
		Dialog:     &recordingDialog{},
		Challenger: fixedChallenger{creds: login.Credentials{Identity: operator.Identity}},
		Detector:   noReleases{},
		Overrides:  withoutDatabase(operator),
		Observe: func(e boot.Entry) {
			rec.add(e)
			if e.Step == StepAutomation {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	tests := []struct {
		step string
		want boot.Outcome
	}{
		{StepEncryption, boot.Ok},
		{StepState, boot.Ok},
		{StepMigrations, boot.SkippedNonFatal},
		{StepFlags, boot.SkippedNonFatal},
		{StepRecovery, boot.Ok},
		{StepLogin, boot.Ok},
		{StepSurface, boot.SkippedNonFatal},
		{StepNotifications, boot.SkippedNonFatal},
		{StepCloudSync, boot.SkippedNonFatal},
		{StepMessaging, boot.SkippedNonFatal},
		{StepAutomation, boot.SkippedNonFatal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rec.outcome(tt.step), tt.step)
	}
}
