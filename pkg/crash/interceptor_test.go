package crash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingDialog struct {
	mu    sync.Mutex
	shown []string
}

func (d *recordingDialog) Show(title, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, message)
	return nil
}

func newRC(ctx context.Context) *agms_io.RuntimeContext {
	rc := agms_io.NewContext(ctx, "test")
	rc.Log = zap.NewNop()
	return rc
}

func fixedClock(ts time.Time) func() time.Time { return func() time.Time { return ts } }

func TestSuperviseWritesOneArtifactForPanic(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs", "crashes")
	core, logs := observer.New(zapcore.DebugLevel)
	dialog := &recordingDialog{}
	i := New(dir, dialog, zap.New(core))
	now := time.Date(2026, 10, 17, 9, 30, 5, 0, time.Local)
	i.now = fixedClock(now)

	err := i.Supervise(newRC(context.Background()), func(rc *agms_io.RuntimeContext) error {
		panic("X")
	})

	require.Error(t, err)
	assert.Equal(t, agms_err.ExitFault, agms_err.GetExitCode(err))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "crash_20261017_093005.log", entries[0].Name())

	body, readErr := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, readErr)
	assert.Contains(t, string(body), "fault: X")
	assert.Contains(t, string(body), "origin: unhandled")
	assert.Contains(t, string(body), "goroutine")

	require.Len(t, dialog.shown, 1)
	assert.Contains(t, dialog.shown[0], shared.GenericCrashMessage)
	assert.Contains(t, dialog.shown[0], dir)
	assert.NotContains(t, dialog.shown[0], "fault: X")

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DPanicLevel).Len())
}

func TestSuperviseBackgroundPanicCancelsRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	i := New(dir, nil, zap.NewNop())

	err := i.Supervise(newRC(context.Background()), func(rc *agms_io.RuntimeContext) error {
		go func() {
			defer i.Recover("scheduler:health")
			panic("X in background")
		}()
		select {
		case <-rc.Ctx.Done():
			return rc.Ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("not cancelled")
		}
	})

	require.Error(t, err)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryUnhandledFault))

	artifacts, listErr := List(dir)
	require.NoError(t, listErr)
	require.Len(t, artifacts, 1)
	body, _ := os.ReadFile(artifacts[0].Path)
	assert.Contains(t, string(body), "source: scheduler:health")
	assert.Contains(t, string(body), "X in background")
}

func TestSecondFaultIsNotPersisted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dialog := &recordingDialog{}
	i := New(dir, dialog, zap.NewNop())

	err := i.Supervise(newRC(context.Background()), func(rc *agms_io.RuntimeContext) error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer i.Recover("first")
			panic("X")
		}()
		<-done
		panic("Y")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "X")

	artifacts, listErr := List(dir)
	require.NoError(t, listErr)
	assert.Len(t, artifacts, 1)
	assert.Len(t, dialog.shown, 1)
}

func TestInterruptLeavesNoArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	i := New(dir, nil, zap.NewNop())
	parent, cancel := context.WithCancelCause(context.Background())

	err := i.Supervise(newRC(parent), func(rc *agms_io.RuntimeContext) error {
		cancel(agms_err.ErrInterrupted)
		<-rc.Ctx.Done()
		return nil
	})

	assert.Equal(t, agms_err.ExitInterrupted, agms_err.GetExitCode(err))
	artifacts, listErr := List(dir)
	require.NoError(t, listErr)
	assert.Empty(t, artifacts)
}

func TestSupervisePassesThroughErrors(t *testing.T) {
	t.Parallel()

	i := New(t.TempDir(), nil, nil)
	want := agms_err.NewCriticalBootFailure("storage", errors.New("dial"))

	err := i.Supervise(newRC(context.Background()), func(rc *agms_io.RuntimeContext) error { return want })
	assert.Same(t, want, err)
	assert.NoError(t, i.Fault())
}

func TestUnwritableCrashDirStillReportsFault(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0600))
	i := New(filepath.Join(blocker, "crashes"), nil, zap.NewNop())

	err := i.Supervise(newRC(context.Background()), func(rc *agms_io.RuntimeContext) error { panic("X") })
	require.Error(t, err)
	assert.Equal(t, agms_err.ExitFault, agms_err.GetExitCode(err))
}

func TestSameSecondArtifactsGetSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	first := Artifact{Timestamp: ts, Origin: OriginUnhandled, Message: "a", Stack: "s"}
	second := Artifact{Timestamp: ts, Origin: OriginUnhandled, Message: "b", Stack: "s"}

	require.NoError(t, first.write(dir))
	require.NoError(t, second.write(dir))

	assert.Equal(t, "crash_20260102_030405.log", filepath.Base(first.Path))
	assert.Equal(t, "crash_20260102_030405_1.log", filepath.Base(second.Path))

	later := Artifact{Timestamp: ts.Add(time.Hour), Origin: OriginUnhandled, Message: "c", Stack: "s"}
	require.NoError(t, later.write(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	listed, err := List(dir)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, later.Path, listed[0].Path)
	assert.True(t, strings.HasSuffix(listed[1].Path, "_1.log"))
}

func TestListMissingDir(t *testing.T) {
	t.Parallel()

	listed, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, listed)
}
