package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	sqliteRetries   = 3
	sqliteBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and bootstraps the schema.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		platform TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		pending_intent TEXT NOT NULL DEFAULT '',
		entities_json TEXT NOT NULL DEFAULT '{}',
		turn_count INTEGER NOT NULL DEFAULT 0,
		last_activity INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (platform, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity);
	CREATE INDEX IF NOT EXISTS idx_sessions_state_activity ON sessions(state, last_activity);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load retrieves the session for a (user, platform) pair.
func (s *SQLiteStore) Load(ctx context.Context, userID, platform string) (*domain.SessionContext, error) {
	query := `
		SELECT user_id, platform, session_id, state, pending_intent,
		       entities_json, turn_count, last_activity, created_at
		FROM sessions WHERE platform = ? AND user_id = ?`

	row := s.db.QueryRowContext(ctx, query, platform, userID)

	var sc domain.SessionContext
	var state, pending, entitiesJSON string
	var lastActivity, createdAt int64

	err := row.Scan(
		&sc.UserID, &sc.Platform, &sc.SessionID, &state, &pending,
		&entitiesJSON, &sc.TurnCount, &lastActivity, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sc.State = domain.State(state)
	sc.PendingIntent = domain.Intent(pending)
	sc.LastActivity = time.UnixMilli(lastActivity)
	sc.CreatedAt = time.UnixMilli(createdAt)
	if err := json.Unmarshal([]byte(entitiesJSON), &sc.Entities); err != nil {
		return nil, fmt.Errorf("decode session entities: %w", err)
	}
	if sc.Entities == nil {
		sc.Entities = make(map[domain.EntityKind]string)
	}

	return &sc, nil
}

// Save upserts the session. SQLITE_BUSY is retried with exponential backoff.
func (s *SQLiteStore) Save(ctx context.Context, sc *domain.SessionContext) error {
	entities, err := json.Marshal(sc.Entities)
	if err != nil {
		return fmt.Errorf("encode session entities: %w", err)
	}

	query := `
	INSERT INTO sessions (
		platform, user_id, session_id, state, pending_intent,
		entities_json, turn_count, last_activity, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(platform, user_id) DO UPDATE SET
		session_id = excluded.session_id,
		state = excluded.state,
		pending_intent = excluded.pending_intent,
		entities_json = excluded.entities_json,
		turn_count = excluded.turn_count,
		last_activity = excluded.last_activity,
		created_at = excluded.created_at`

	attempt := 0
	err = shared.RetryOnConflict(ctx, sqliteRetries, sqliteBaseDelay, func() error {
		attempt++
		_, execErr := s.db.ExecContext(ctx, query,
			sc.Platform, sc.UserID, sc.SessionID, string(sc.State), string(sc.PendingIntent),
			string(entities), sc.TurnCount, sc.LastActivity.UnixMilli(), sc.CreatedAt.UnixMilli(),
		)
		if execErr != nil && shared.IsSQLiteConflictError(execErr) {
			slog.Debug("session save hit SQLITE_BUSY, retrying",
				"key", sc.Key(),
				"attempt", attempt)
		}
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert session %s after %d attempts: %w", sc.Key(), attempt, err)
	}
	return nil
}

// SweepExpired marks sessions inactive since before as ENDED.
func (s *SQLiteStore) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `UPDATE sessions SET state = ? WHERE state != ? AND last_activity < ?`
	var affected int64
	err := shared.RetryOnConflict(ctx, sqliteRetries, sqliteBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, string(domain.StateEnded), string(domain.StateEnded), before.UnixMilli())
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return affected, nil
}

// PurgeEnded hard-deletes ENDED sessions inactive since before.
func (s *SQLiteStore) PurgeEnded(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE state = ? AND last_activity < ?`
	var affected int64
	err := shared.RetryOnConflict(ctx, sqliteRetries, sqliteBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, string(domain.StateEnded), before.UnixMilli())
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge ended sessions: %w", err)
	}
	return affected, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
