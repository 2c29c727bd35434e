// pkg/crash/artifact.go

package crash

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
)

// OriginUnhandled marks artifacts written for faults nothing else caught.
const OriginUnhandled = "unhandled"

// Artifact is one crash report on disk. Artifacts are written once and never
// modified.
type Artifact struct {
	Path      string
	Timestamp time.Time
	Origin    string
	Source    string
	Message   string
	Stack     string
}

func (a Artifact) render() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "timestamp: %s\n", a.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "origin: %s\n", a.Origin)
	if a.Source != "" {
		fmt.Fprintf(&sb, "source: %s\n", a.Source)
	}
	fmt.Fprintf(&sb, "fault: %s\n\n", a.Message)
	sb.WriteString(a.Stack)
	if !strings.HasSuffix(a.Stack, "\n") {
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// write persists a under dir using the incident timestamp as the file name.
// A second incident in the same second gets a numeric suffix instead of
// overwriting the first.
func (a *Artifact) write(dir string) error {
	if err := os.MkdirAll(dir, shared.DirPermStandard); err != nil {
		return cerr.Wrapf(err, "create crash directory %s", dir)
	}

	base := shared.CrashFilePrefix + a.Timestamp.Format(shared.CrashTimeLayout)
	data := a.render()
	for n := 0; n < 100; n++ {
		name := base + shared.CrashFileExt
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, shared.CrashFileExt)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, shared.FilePermOwnerReadWrite)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return cerr.Wrapf(err, "create crash artifact %s", path)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return cerr.Wrapf(err, "write crash artifact %s", path)
		}
		if err := f.Close(); err != nil {
			return cerr.Wrapf(err, "close crash artifact %s", path)
		}
		a.Path = path
		return nil
	}
	return cerr.Newf("too many crash artifacts for %s", base)
}

// List returns the crash artifacts in dir, newest first. Only the file
// metadata is read; use os.ReadFile on Path for the report body.
func List(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cerr.Wrapf(err, "read crash directory %s", dir)
	}

	var out []Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, shared.CrashFilePrefix) || !strings.HasSuffix(name, shared.CrashFileExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, shared.CrashFilePrefix), shared.CrashFileExt)
		if len(stamp) > len(shared.CrashTimeLayout) {
			stamp = stamp[:len(shared.CrashTimeLayout)]
		}
		ts, err := time.ParseInLocation(shared.CrashTimeLayout, stamp, time.Local)
		if err != nil {
			continue
		}
		out = append(out, Artifact{Path: filepath.Join(dir, name), Timestamp: ts, Origin: OriginUnhandled})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Path > out[j].Path
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
