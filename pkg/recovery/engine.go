// pkg/recovery/engine.go
//
// Disaster recovery for the files that cannot be regenerated: the keystore,
// the configuration and the environment file. Backups are zstd-compressed
// tarballs in backups/, newest kept, oldest pruned. SelfHeal runs once at
// startup and restores any protected file that is missing or empty from
// the newest archive holding it; the launcher also restores the keystore
// and configuration individually before either could be regenerated.

package recovery

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	// SchedulerName is the registry name of the periodic backup member.
	SchedulerName = "recovery-backup"
	// DefaultKeep is how many archives survive pruning.
	DefaultKeep = 10
)

type Engine struct {
	layout shared.Layout
	keep   int
	log    *zap.Logger
	now    func() time.Time
}

func New(layout shared.Layout, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{layout: layout, keep: DefaultKeep, log: log, now: time.Now}
}

// Protected returns the files covered by backups, relative to the root.
func (e *Engine) Protected() []string {
	var out []string
	for _, p := range []string{e.layout.KeystoreFile(), e.layout.ConfigFile(), e.layout.EnvFile()} {
		rel, err := filepath.Rel(e.layout.Root, p)
		if err == nil {
			out = append(out, filepath.ToSlash(rel))
		}
	}
	return out
}

// Interval converts a backup_interval_hours value, falling back to 24h.
func Interval(hours int) time.Duration {
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Backup writes a new archive of every protected file that exists and
// prunes old archives. It returns the archive path.
func (e *Engine) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.layout.BackupDir(), shared.FilePermOwnerRWX); err != nil {
		return "", cerr.Wrap(err, "create backup directory")
	}

	name := shared.BackupFilePrefix + e.now().Format(shared.CrashTimeLayout) + shared.BackupFileExt
	path := filepath.Join(e.layout.BackupDir(), name)
	tmp := path + ".partial"

	if err := e.writeArchive(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", cerr.Wrap(err, "finalize backup")
	}
	e.log.Info("Backup written", zap.String("path", path))

	if err := e.prune(); err != nil {
		e.log.Warn("Pruning old backups failed", zap.Error(err))
	}
	return path, nil
}

func (e *Engine) writeArchive(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, shared.FilePermOwnerReadWrite)
	if err != nil {
		return cerr.Wrap(err, "create backup")
	}
	defer func() { _ = f.Close() }()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return cerr.Wrap(err, "init compressor")
	}
	tw := tar.NewWriter(zw)

	for _, rel := range e.Protected() {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return err
		}
		if err := addFile(tw, e.layout.Root, rel); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return cerr.Wrap(err, "close archive")
	}
	if err := zw.Close(); err != nil {
		return cerr.Wrap(err, "close compressor")
	}
	return f.Sync()
}

func addFile(tw *tar.Writer, root, rel string) error {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerr.Wrapf(err, "read %s", rel)
	}
	hdr := &tar.Header{Name: rel, Mode: shared.FilePermOwnerReadWrite, Size: int64(len(data)), ModTime: time.Now()}
	if err := tw.WriteHeader(hdr); err != nil {
		return cerr.Wrapf(err, "archive %s", rel)
	}
	_, err = tw.Write(data)
	return cerr.Wrapf(err, "archive %s", rel)
}

// Backups lists archive paths, newest first.
func (e *Engine) Backups() ([]string, error) {
	entries, err := os.ReadDir(e.layout.BackupDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cerr.Wrap(err, "list backups")
	}
	var out []string
	for _, ent := range entries {
		n := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(n, shared.BackupFilePrefix) || !strings.HasSuffix(n, shared.BackupFileExt) {
			continue
		}
		out = append(out, filepath.Join(e.layout.BackupDir(), n))
	}
	// timestamped names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (e *Engine) prune() error {
	all, err := e.Backups()
	if err != nil || len(all) <= e.keep {
		return err
	}
	for _, p := range all[e.keep:] {
		if err := os.Remove(p); err != nil {
			return cerr.Wrapf(err, "remove %s", p)
		}
		e.log.Debug("Old backup removed", zap.String("path", p))
	}
	return nil
}

// SelfHeal restores protected files that are missing or empty. It returns
// the relative paths it restored.
func (e *Engine) SelfHeal(ctx context.Context) ([]string, error) {
	return e.Restore(ctx, e.Protected()...)
}

// Restore brings back the named files, relative to the root, when they are
// missing or empty. It runs before anything regenerates them, so a fresh
// key or template config never shadows the operator's own.
func (e *Engine) Restore(ctx context.Context, rels ...string) ([]string, error) {
	want := map[string]bool{}
	for _, rel := range rels {
		info, err := os.Stat(filepath.Join(e.layout.Root, filepath.FromSlash(rel)))
		if err != nil || info.Size() == 0 {
			want[rel] = true
		}
	}
	if len(want) == 0 {
		e.log.Debug("Self-heal: all protected files present")
		return nil, nil
	}

	archives, err := e.Backups()
	if err != nil {
		return nil, err
	}

	var restored []string
	for _, archive := range archives {
		if len(want) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		got, err := e.extract(archive, want)
		if err != nil {
			e.log.Warn("Skipping unreadable backup", zap.String("path", archive), zap.Error(err))
			continue
		}
		for _, rel := range got {
			delete(want, rel)
			restored = append(restored, rel)
			e.log.Warn("Self-heal restored file", zap.String("file", rel), zap.String("from", archive))
		}
	}
	sort.Strings(restored)
	return restored, nil
}

// RestoreFile is Restore for one absolute path under the root. It reports
// whether the file was brought back.
func (e *Engine) RestoreFile(ctx context.Context, path string) (bool, error) {
	rel, err := filepath.Rel(e.layout.Root, path)
	if err != nil {
		return false, cerr.Wrapf(err, "%s is outside %s", path, e.layout.Root)
	}
	got, err := e.Restore(ctx, filepath.ToSlash(rel))
	return len(got) > 0, err
}

func (e *Engine) extract(archive string, want map[string]bool) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var got []string
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		if !want[hdr.Name] {
			continue
		}
		dst := filepath.Join(e.layout.Root, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dst), shared.FilePermOwnerRWX); err != nil {
			return got, err
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return got, err
		}
		if err := os.WriteFile(dst, data, shared.FilePermOwnerReadWrite); err != nil {
			return got, err
		}
		got = append(got, hdr.Name)
	}
}

// Start registers periodic backups every interval.
func (e *Engine) Start(reg *scheduler.Registry, interval time.Duration) error {
	return reg.Every(SchedulerName, interval, func(ctx context.Context) error {
		_, err := e.Backup(ctx)
		return err
	})
}
