// pkg/cloudsync/client.go
//
// Cloud sync pushes a sealed snapshot of one branch to a remote store.
// Snapshots are sealed with the local keystore, with the branch name bound
// as additional data, so the remote never sees plaintext.

package cloudsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appconfig"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// AutoSyncName is the registry name of the periodic push.
const AutoSyncName = "cloud-auto-sync"

// ErrNotConfigured means no cloud endpoint was provided.
var ErrNotConfigured = cerr.New("cloud sync is not configured")

// Sealer encrypts and decrypts snapshot payloads.
type Sealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(sealed, additional []byte) ([]byte, error)
}

// SnapshotSource produces the data to push.
type SnapshotSource interface {
	Snapshot(ctx context.Context, branch string) (*storage.Snapshot, error)
}

type Client struct {
	backend Backend
	sealer  Sealer
	source  SnapshotSource
	log     *zap.Logger

	debounce time.Duration

	mu       sync.Mutex
	lastPush time.Time
}

// Connect dials the configured endpoint and verifies it answers.
func Connect(ctx context.Context, cfg appconfig.CloudConfig, sealer Sealer, source SnapshotSource, log *zap.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	backend := NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword)
	c := New(backend, sealer, source, log)
	if err := backend.Ping(ctx); err != nil {
		_ = backend.Close()
		return nil, cerr.Wrapf(err, "connect to %s", cfg.RedisAddr)
	}
	c.log.Info("Cloud sync connected", zap.String("addr", cfg.RedisAddr))
	return c, nil
}

// New wraps an existing backend.
func New(backend Backend, sealer Sealer, source SnapshotSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{backend: backend, sealer: sealer, source: source, log: log, debounce: DefaultDebounce}
}

func snapshotKey(branch string) string { return "agms:" + branch + ":snapshot" }

// Push seals the current snapshot of branch and stores it remotely.
func (c *Client) Push(ctx context.Context, branch string) error {
	snap, err := c.source.Snapshot(ctx, branch)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return cerr.Wrap(err, "encode snapshot")
	}
	sealed, err := c.sealer.Seal(payload, []byte(branch))
	if err != nil {
		return cerr.Wrap(err, "seal snapshot")
	}
	if err := c.backend.Put(ctx, snapshotKey(branch), sealed); err != nil {
		return cerr.Wrap(err, "push snapshot")
	}

	c.mu.Lock()
	c.lastPush = time.Now()
	c.mu.Unlock()
	c.log.Info("Snapshot pushed",
		zap.String("branch", branch),
		zap.Int("contacts", len(snap.Contacts)),
		zap.Int("bytes", len(sealed)))
	return nil
}

// Pull fetches and opens the remote snapshot of branch.
func (c *Client) Pull(ctx context.Context, branch string) (*storage.Snapshot, error) {
	sealed, err := c.backend.Get(ctx, snapshotKey(branch))
	if err != nil {
		return nil, err
	}
	payload, err := c.sealer.Open(sealed, []byte(branch))
	if err != nil {
		return nil, cerr.Wrap(err, "open snapshot")
	}
	var snap storage.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, cerr.Wrap(err, "decode snapshot")
	}
	return &snap, nil
}

// LastPush returns when the last successful push finished.
func (c *Client) LastPush() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPush
}

func (c *Client) Close() error {
	return c.backend.Close()
}

// StartAutoSync pushes the branch returned by branch every interval.
func (c *Client) StartAutoSync(reg *scheduler.Registry, interval time.Duration, branch func() string) error {
	return reg.Every(AutoSyncName, interval, func(ctx context.Context) error {
		return c.Push(ctx, branch())
	})
}
