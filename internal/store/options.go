package store

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Option configures a store created by New.
type Option func(*storeConfig)

type storeConfig struct {
	sqlitePath  string
	redisClient *redis.Client
	redisTTL    time.Duration
	pgPool      *pgxpool.Pool
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the key expiry for the redis driver.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithPostgresPool sets the connection pool for the postgres driver.
func WithPostgresPool(pool *pgxpool.Pool) Option {
	return func(c *storeConfig) {
		c.pgPool = pool
	}
}
