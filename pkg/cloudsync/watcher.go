// pkg/cloudsync/watcher.go

package cloudsync

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncSchedulerName is the registry name of the change-driven push.
const SyncSchedulerName = "cloud-sync"

// DefaultDebounce is how long the data directory must be quiet before a
// change-driven push.
const DefaultDebounce = 2 * time.Second

// StartSyncScheduler pushes whenever files under dir change, and at least
// once every interval.
func (c *Client) StartSyncScheduler(reg *scheduler.Registry, dir string, interval time.Duration, branch func() string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return cerr.Wrap(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return cerr.Wrapf(err, "watch %s", dir)
	}

	err = reg.Spawn(SyncSchedulerName, interval, func(ctx context.Context) {
		c.watch(ctx, w, interval, branch)
	})
	if err != nil {
		_ = w.Close()
	}
	return err
}

func (c *Client) watch(ctx context.Context, w *fsnotify.Watcher, interval time.Duration, branch func() string) {
	defer func() { _ = w.Close() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	debounce := time.NewTimer(c.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	push := func(reason string) {
		if err := c.Push(ctx, branch()); err != nil && ctx.Err() == nil {
			c.log.Warn("Cloud sync push failed", zap.String("reason", reason), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				debounce.Reset(c.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warn("Data directory watch error", zap.Error(err))
		case <-debounce.C:
			push("change")
		case <-ticker.C:
			push("interval")
		}
	}
}
