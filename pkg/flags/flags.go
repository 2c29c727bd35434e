// pkg/flags/flags.go

package flags

import (
	"context"
	"sort"
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

const prefix = "feature."

// Known features. A feature absent from the settings is enabled.
const (
	Notifications = "notifications"
	CloudSync     = "cloud_sync"
	Messaging     = "messaging"
	Automation    = "automation"
)

// ErrDisabled is returned by Require for a switched-off feature.
var ErrDisabled = cerr.New("feature disabled")

// Source returns the settings of one branch.
type Source interface {
	Settings(ctx context.Context, branch string) (map[string]string, error)
}

// Flags is an immutable snapshot of feature switches.
type Flags struct {
	values map[string]bool
}

// Load reads every feature.* setting of branch.
func Load(ctx context.Context, src Source, branch string) (*Flags, error) {
	settings, err := src.Settings(ctx, branch)
	if err != nil {
		return nil, cerr.Wrap(err, "load feature flags")
	}
	return FromSettings(settings), nil
}

// FromSettings builds flags from a settings map. Unparseable values count
// as enabled.
func FromSettings(settings map[string]string) *Flags {
	f := &Flags{values: make(map[string]bool)}
	for k, v := range settings {
		name, ok := strings.CutPrefix(k, prefix)
		if !ok || name == "" {
			continue
		}
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		f.values[name] = err != nil || on
	}
	return f
}

// Enabled reports whether name is switched on. A nil *Flags enables
// everything, so callers need not check whether flags loaded.
func (f *Flags) Enabled(name string) bool {
	if f == nil {
		return true
	}
	on, ok := f.values[name]
	return !ok || on
}

// Require returns ErrDisabled when name is switched off.
func (f *Flags) Require(name string) error {
	if f.Enabled(name) {
		return nil
	}
	return cerr.Wrapf(ErrDisabled, "%s", name)
}

// Disabled lists switched-off features in sorted order.
func (f *Flags) Disabled() []string {
	if f == nil {
		return nil
	}
	var out []string
	for k, on := range f.values {
		if !on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
