// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/astrovoice/internal/domain"
)

// SessionStore persists one SessionContext per (user, platform) pair.
type SessionStore interface {
	// Load returns the stored context, or nil, nil when none exists.
	Load(ctx context.Context, userID, platform string) (*domain.SessionContext, error)

	// Save upserts the context. Concurrent saves for the same key are last-write-wins.
	Save(ctx context.Context, sc *domain.SessionContext) error

	// SweepExpired marks sessions whose last activity is before the cutoff as ENDED.
	SweepExpired(ctx context.Context, before time.Time) (int64, error)

	// PurgeEnded deletes ENDED sessions whose last activity is before the cutoff.
	PurgeEnded(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Kind names a SessionStore driver.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindSQLite   Kind = "sqlite"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

var (
	ErrInvalidKind   = errors.New("invalid session store kind")
	ErrInvalidConfig = errors.New("invalid session store configuration")
)

// New creates a SessionStore of the given kind.
// sqlite requires WithSQLitePath, redis WithRedisClient, postgres WithPostgresPool.
func New(ctx context.Context, kind Kind, opts ...Option) (SessionStore, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch kind {
	case KindMemory:
		return NewMemory(), nil

	case KindSQLite:
		if cfg.sqlitePath == "" {
			return nil, fmt.Errorf("%w: sqlite path is empty", ErrInvalidConfig)
		}
		return NewSQLite(cfg.sqlitePath)

	case KindRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidConfig)
		}
		return NewRedis(cfg.redisClient, cfg.redisTTL), nil

	case KindPostgres:
		if cfg.pgPool == nil {
			return nil, fmt.Errorf("%w: postgres pool is nil", ErrInvalidConfig)
		}
		return NewPostgres(ctx, cfg.pgPool)

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}
