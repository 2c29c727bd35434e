// pkg/updater/checker.go

package updater

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	cerr "github.com/cockroachdb/errors"
	"github.com/creativeprojects/go-selfupdate"
	version "github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// SchedulerName is the registry name of the periodic check.
const SchedulerName = "update-check"

// Release is the newest published version.
type Release struct {
	Version string
	URL     string
	Notes   string
}

// Detector finds the latest release of a repository.
type Detector interface {
	Latest(ctx context.Context, repository string) (*Release, bool, error)
}

// GitHubDetector queries GitHub releases through go-selfupdate.
type GitHubDetector struct {
	updater *selfupdate.Updater
}

func NewGitHubDetector() (*GitHubDetector, error) {
	u, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return nil, cerr.Wrap(err, "create release detector")
	}
	return &GitHubDetector{updater: u}, nil
}

func (d *GitHubDetector) Latest(ctx context.Context, repository string) (*Release, bool, error) {
	latest, found, err := d.updater.DetectLatest(ctx, selfupdate.ParseSlug(repository))
	if err != nil || !found {
		return nil, found, err
	}
	return &Release{Version: latest.Version(), URL: latest.URL, Notes: latest.ReleaseNotes}, true, nil
}

// Notifier receives update notices.
type Notifier interface {
	Push(n appstate.Notification)
}

// Checker compares the running version with the latest release and raises
// one notice per newer version.
type Checker struct {
	repository string
	current    *version.Version
	detector   Detector
	notifier   Notifier
	log        *zap.Logger

	mu        sync.Mutex
	announced string
}

// NewChecker fails when no repository is configured or the running version
// is not a release version.
func NewChecker(repository, current string, d Detector, n Notifier, log *zap.Logger) (*Checker, error) {
	if repository == "" {
		return nil, cerr.New("updates.repository is not set")
	}
	cur, err := version.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return nil, cerr.Wrapf(err, "running version %q is not a release", current)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{repository: repository, current: cur, detector: d, notifier: n, log: log}, nil
}

// Check looks for a newer release. It returns the release when one exists.
func (c *Checker) Check(ctx context.Context) (*Release, error) {
	rel, found, err := c.detector.Latest(ctx, c.repository)
	if err != nil {
		return nil, cerr.Wrap(err, "detect latest release")
	}
	if !found {
		c.log.Debug("No releases published", zap.String("repository", c.repository))
		return nil, nil
	}

	latest, err := version.NewVersion(strings.TrimPrefix(rel.Version, "v"))
	if err != nil {
		return nil, cerr.Wrapf(err, "release version %q", rel.Version)
	}
	if !latest.GreaterThan(c.current) {
		c.log.Debug("Running the latest version", zap.String("version", c.current.String()))
		return nil, nil
	}

	c.mu.Lock()
	first := c.announced != latest.String()
	c.announced = latest.String()
	c.mu.Unlock()

	if first {
		c.log.Info("Update available", zap.String("current", c.current.String()), zap.String("latest", latest.String()))
		if c.notifier != nil {
			c.notifier.Push(appstate.Notification{
				Kind:  appstate.KindUpdate,
				Title: "Update available: " + latest.String(),
				Body:  rel.URL,
			})
		}
	}
	return rel, nil
}

// Start registers the periodic check.
func (c *Checker) Start(reg *scheduler.Registry, interval time.Duration) error {
	return reg.Every(SchedulerName, interval, func(ctx context.Context) error {
		_, err := c.Check(ctx)
		return err
	})
}
