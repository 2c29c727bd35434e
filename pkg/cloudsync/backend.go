// pkg/cloudsync/backend.go

package cloudsync

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNoData is returned by Get for a key that does not exist.
var ErrNoData = cerr.New("no cloud data")

// Backend is the remote key/value store holding sealed snapshots.
type Backend interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type redisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend returns a backend for addr. No connection is made until
// the first command.
func NewRedisBackend(addr, password string) Backend {
	return &redisBackend{rdb: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})}
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *redisBackend) Put(ctx context.Context, key string, value []byte) error {
	return b.rdb.Set(ctx, key, value, 0).Err()
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoData
	}
	return v, err
}

func (b *redisBackend) Close() error {
	return b.rdb.Close()
}
