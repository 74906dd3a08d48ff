package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/astrovoice/internal/domain"
)

// runContract exercises the SessionStore behaviour every driver must share.
func runContract(t *testing.T, newStore func(t *testing.T) SessionStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("load missing returns nil", func(t *testing.T) {
		s := newStore(t)
		sc, err := s.Load(ctx, "nobody", domain.PlatformAlice)
		require.NoError(t, err)
		assert.Nil(t, sc)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		s := newStore(t)
		sc := domain.NewSessionContext("u1", domain.PlatformAlice, base)
		sc.SessionID = "sess-1"
		sc.State = domain.StateAwaitingPartnerSign
		sc.PendingIntent = domain.IntentCompatibility
		sc.Entities[domain.EntitySign] = "leo"
		sc.TurnCount = 2
		require.NoError(t, s.Save(ctx, sc))

		got, err := s.Load(ctx, "u1", domain.PlatformAlice)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "sess-1", got.SessionID)
		assert.Equal(t, domain.StateAwaitingPartnerSign, got.State)
		assert.Equal(t, domain.IntentCompatibility, got.PendingIntent)
		assert.Equal(t, "leo", got.Entities[domain.EntitySign])
		assert.Equal(t, 2, got.TurnCount)
		assert.True(t, got.LastActivity.Equal(base), "last activity %v != %v", got.LastActivity, base)

		other, err := s.Load(ctx, "u1", domain.PlatformMarusya)
		require.NoError(t, err)
		assert.Nil(t, other, "sessions are keyed by platform too")
	})

	t.Run("save is last write wins", func(t *testing.T) {
		s := newStore(t)
		sc := domain.NewSessionContext("u2", domain.PlatformWeb, base)
		require.NoError(t, s.Save(ctx, sc))
		sc.TurnCount = 5
		sc.State = domain.StateReady
		require.NoError(t, s.Save(ctx, sc))

		got, err := s.Load(ctx, "u2", domain.PlatformWeb)
		require.NoError(t, err)
		assert.Equal(t, 5, got.TurnCount)
		assert.Equal(t, domain.StateReady, got.State)
	})

	t.Run("sweep then purge", func(t *testing.T) {
		s := newStore(t)
		old := domain.NewSessionContext("old", domain.PlatformAlice, base.Add(-time.Hour))
		old.State = domain.StateReady
		fresh := domain.NewSessionContext("fresh", domain.PlatformAlice, base)
		fresh.State = domain.StateReady
		require.NoError(t, s.Save(ctx, old))
		require.NoError(t, s.Save(ctx, fresh))

		n, err := s.SweepExpired(ctx, base.Add(-10*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := s.Load(ctx, "old", domain.PlatformAlice)
		require.NoError(t, err)
		assert.Equal(t, domain.StateEnded, got.State)

		n, err = s.SweepExpired(ctx, base.Add(-10*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n, "already ended sessions are not swept twice")

		n, err = s.PurgeEnded(ctx, base.Add(-30*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err = s.Load(ctx, "old", domain.PlatformAlice)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = s.Load(ctx, "fresh", domain.PlatformAlice)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.StateReady, got.State)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) SessionStore {
		return NewMemory()
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemory()
	sc := domain.NewSessionContext("u1", domain.PlatformAlice, time.Now())
	require.NoError(t, s.Save(context.Background(), sc))
	sc.Entities[domain.EntitySign] = "leo"

	got, err := s.Load(context.Background(), "u1", domain.PlatformAlice)
	require.NoError(t, err)
	assert.Empty(t, got.Entities, "mutating the saved value must not leak into the store")
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) SessionStore {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	runContract(t, func(t *testing.T) SessionStore {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
		require.NoError(t, client.FlushDB(context.Background()).Err())
		s := NewRedis(client, time.Hour)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisSweepRechecksActivity(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(ctx).Err())
	s := NewRedis(client, time.Hour)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sc := domain.NewSessionContext("u1", domain.PlatformAlice, now)
	sc.State = domain.StateReady
	sc.TurnCount = 3
	require.NoError(t, s.Save(ctx, sc))

	// The index still carries the score read before the latest turn saved.
	key := s.key(sc.Platform, sc.UserID)
	stale := float64(now.Add(-time.Hour).UnixMilli())
	require.NoError(t, client.ZAdd(ctx, activityKey, redis.Z{Score: stale, Member: key}).Err())

	n, err := s.SweepExpired(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.PurgeEnded(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := s.Load(ctx, "u1", domain.PlatformAlice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StateReady, got.State)
	assert.Equal(t, 3, got.TurnCount)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	runContract(t, func(t *testing.T) SessionStore {
		ctx := context.Background()
		pool, err := NewPool(ctx, dsn, 4)
		require.NoError(t, err)
		s, err := NewPostgres(ctx, pool)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, "TRUNCATE sessions")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, KindMemory)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, KindSQLite, WithSQLitePath(filepath.Join(t.TempDir(), "x.db")))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, KindSQLite)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(ctx, KindRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(ctx, KindPostgres)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(ctx, Kind("mongo"))
	assert.ErrorIs(t, err, ErrInvalidKind)
}
