package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("storage: key not found")

// KeyValueStore is the persisted client-side storage. Values are opaque strings.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a driver for New.
type Options struct {
	Driver    string
	StateDir  string
	RedisURL  string
	KeyPrefix string
}

func New(ctx context.Context, opts Options) (KeyValueStore, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(filepath.Join(opts.StateDir, "state.json"))
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		opt, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			opt = &redis.Options{Addr: opts.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return NewRedisStore(rdb, opts.KeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
