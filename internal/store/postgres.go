package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashureev/astrovoice/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	platform       TEXT        NOT NULL,
	user_id        TEXT        NOT NULL,
	session_id     TEXT        NOT NULL DEFAULT '',
	state          TEXT        NOT NULL,
	pending_intent TEXT        NOT NULL DEFAULT '',
	entities       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	turn_count     INTEGER     NOT NULL DEFAULT 0,
	last_activity  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (platform, user_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_state_activity ON sessions (state, last_activity);
`

var sessionColumns = []string{
	"user_id", "platform", "session_id", "state", "pending_intent",
	"entities", "turn_count", "last_activity", "created_at",
}

// NewPool creates a PostgreSQL connection pool from dsn and pings it.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresStore implements SessionStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

// NewPostgres wraps pool and bootstraps the schema.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Load implements SessionStore.
func (s *PostgresStore) Load(ctx context.Context, userID, platform string) (*domain.SessionContext, error) {
	query, args, err := s.psql.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"platform": platform, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	var sc domain.SessionContext
	var state, pending string
	var entities []byte
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&sc.UserID, &sc.Platform, &sc.SessionID, &state, &pending,
		&entities, &sc.TurnCount, &sc.LastActivity, &sc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sc.State = domain.State(state)
	sc.PendingIntent = domain.Intent(pending)
	if err := json.Unmarshal(entities, &sc.Entities); err != nil {
		return nil, fmt.Errorf("decode session entities: %w", err)
	}
	if sc.Entities == nil {
		sc.Entities = make(map[domain.EntityKind]string)
	}
	return &sc, nil
}

// Save implements SessionStore.
func (s *PostgresStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	entities, err := json.Marshal(sc.Entities)
	if err != nil {
		return fmt.Errorf("encode session entities: %w", err)
	}

	query, args, err := s.psql.
		Insert("sessions").
		Columns(sessionColumns...).
		Values(sc.UserID, sc.Platform, sc.SessionID, string(sc.State), string(sc.PendingIntent),
			entities, sc.TurnCount, sc.LastActivity, sc.CreatedAt).
		Suffix(`ON CONFLICT (platform, user_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			state = EXCLUDED.state,
			pending_intent = EXCLUDED.pending_intent,
			entities = EXCLUDED.entities,
			turn_count = EXCLUDED.turn_count,
			last_activity = EXCLUDED.last_activity,
			created_at = EXCLUDED.created_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert session %s: %w", sc.Key(), err)
	}
	return nil
}

// SweepExpired implements SessionStore.
func (s *PostgresStore) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.psql.
		Update("sessions").
		Set("state", string(domain.StateEnded)).
		Where(squirrel.NotEq{"state": string(domain.StateEnded)}).
		Where(squirrel.Lt{"last_activity": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sweep query: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeEnded implements SessionStore.
func (s *PostgresStore) PurgeEnded(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.psql.
		Delete("sessions").
		Where(squirrel.Eq{"state": string(domain.StateEnded)}).
		Where(squirrel.Lt{"last_activity": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge query: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge ended sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping implements SessionStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements SessionStore.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
