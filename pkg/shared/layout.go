// pkg/shared/layout.go

package shared

import (
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
)

// Layout is the on-disk directory layout of an installation, rooted at Root.
type Layout struct {
	Root string
}

// NewLayout resolves root to an absolute path. An empty root means the
// directory holding the running executable.
func NewLayout(root string) (Layout, error) {
	if root == "" {
		exe, err := os.Executable()
		if err != nil {
			return Layout{}, cerr.Wrap(err, "resolve executable path")
		}
		root = filepath.Dir(exe)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, cerr.Wrapf(err, "resolve root %s", root)
	}
	return Layout{Root: abs}, nil
}

func (l Layout) DataDir() string      { return filepath.Join(l.Root, "data") }
func (l Layout) MarketingDir() string { return filepath.Join(l.DataDir(), "marketing") }
func (l Layout) LogsDir() string      { return filepath.Join(l.Root, "logs") }
func (l Layout) CrashDir() string     { return filepath.Join(l.LogsDir(), "crashes") }
func (l Layout) AuditDir() string     { return filepath.Join(l.LogsDir(), "audit") }
func (l Layout) BackupDir() string    { return filepath.Join(l.Root, "backups") }
func (l Layout) ConfigDir() string    { return filepath.Join(l.Root, "config") }

func (l Layout) LogFile() string       { return filepath.Join(l.LogsDir(), LogFileName) }
func (l Layout) TelemetryFile() string { return filepath.Join(l.LogsDir(), TelemetryFileName) }
func (l Layout) ConfigFile() string    { return filepath.Join(l.ConfigDir(), ConfigFileName) }
func (l Layout) ConfigTemplate() string {
	return filepath.Join(l.ConfigDir(), ConfigTemplateName)
}
func (l Layout) RequirementsFile() string { return filepath.Join(l.ConfigDir(), RequirementsName) }
func (l Layout) EnvFile() string          { return filepath.Join(l.Root, EnvFileName) }
func (l Layout) SetupMarker() string      { return filepath.Join(l.DataDir(), SetupMarkerName) }
func (l Layout) InstallMarker() string    { return filepath.Join(l.Root, SetupMarkerName) }
func (l Layout) KeystoreFile() string     { return filepath.Join(l.DataDir(), KeystoreName) }

// Dirs lists every directory the installer creates, parents first.
func (l Layout) Dirs() []string {
	return []string{
		l.DataDir(),
		l.MarketingDir(),
		l.LogsDir(),
		l.CrashDir(),
		l.AuditDir(),
		l.BackupDir(),
		l.ConfigDir(),
	}
}

// EnsureDirs creates the full layout. Existing directories are left alone.
func (l Layout) EnsureDirs() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, DirPermStandard); err != nil {
			return cerr.Wrapf(err, "create directory %s", dir)
		}
	}
	return nil
}

// IsFirstRun reports whether the launcher's marker is absent. It is
// independent of the installer's marker so the first launch after
// `agms setup` still counts as a first boot.
func (l Layout) IsFirstRun() bool {
	_, err := os.Stat(l.SetupMarker())
	return os.IsNotExist(err)
}

// MarkSetupDone writes the setup marker. It is never removed by agms.
func (l Layout) MarkSetupDone() error {
	if err := os.MkdirAll(filepath.Dir(l.SetupMarker()), DirPermStandard); err != nil {
		return cerr.Wrap(err, "create data directory")
	}
	return os.WriteFile(l.SetupMarker(), []byte(SetupMarkerContents), FilePermStandard)
}

// IsInstalled reports whether `agms setup` has completed here.
func (l Layout) IsInstalled() bool {
	_, err := os.Stat(l.InstallMarker())
	return err == nil
}

// MarkInstalled writes the installer's marker at the root.
func (l Layout) MarkInstalled() error {
	if err := os.MkdirAll(l.Root, DirPermStandard); err != nil {
		return cerr.Wrap(err, "create installation root")
	}
	return os.WriteFile(l.InstallMarker(), []byte(SetupMarkerContents), FilePermStandard)
}
