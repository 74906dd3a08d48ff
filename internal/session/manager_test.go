package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// failingStore fails every call.
type failingStore struct{ store.SessionStore }

var errDown = errors.New("connection refused")

func (failingStore) Load(context.Context, string, string) (*domain.SessionContext, error) {
	return nil, errDown
}

func (failingStore) Save(context.Context, *domain.SessionContext) error { return errDown }

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	st := store.NewMemory()
	return NewManager(st, 10*time.Minute, nil, WithClock(clock.Now)), st, clock
}

func match(i domain.Intent) domain.IntentMatch {
	return domain.IntentMatch{Intent: i, Confidence: 0.9, Basis: domain.BasisPattern}
}

func entities(kv ...string) domain.EntitySet {
	es := domain.NewEntitySet()
	for i := 0; i+1 < len(kv); i += 2 {
		es.Set(domain.EntityKind(kv[i]), kv[i+1])
	}
	return es
}

func TestCompatibilityCollectsBothSigns(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sc := m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	require.Equal(t, domain.StateInitial, sc.State)

	sc, intent, _ := m.Advance(sc, match(domain.IntentCompatibility), entities())
	assert.Equal(t, domain.StateAwaitingSign, sc.State)
	assert.Equal(t, domain.IntentCompatibility, intent)
	assert.Equal(t, domain.IntentCompatibility, sc.PendingIntent)
	m.EndTurn(ctx, sc)

	sc = m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	sc, intent, es := m.Advance(sc, domain.UnknownMatch(), entities("sign", "leo"))
	assert.Equal(t, domain.StateAwaitingPartnerSign, sc.State)
	assert.Equal(t, domain.IntentCompatibility, intent)
	assert.Equal(t, "leo", sc.Entities[domain.EntitySign])
	assert.Equal(t, "leo", es.Get(domain.EntitySign))
	m.EndTurn(ctx, sc)

	sc = m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	sc, intent, es = m.Advance(sc, domain.UnknownMatch(), entities("sign", "cancer"))
	assert.Equal(t, domain.StateReady, sc.State)
	assert.Equal(t, domain.IntentCompatibility, intent)
	assert.Empty(t, sc.PendingIntent)
	assert.Equal(t, "leo", es.Get(domain.EntitySign))
	assert.Equal(t, domain.ProvenanceContext, es[domain.EntitySign].Provenance)
	assert.Equal(t, "cancer", es.Get(domain.EntityPartnerSign))
	assert.Equal(t, domain.ProvenanceExplicit, es[domain.EntityPartnerSign].Provenance)
}

func TestHoroscopeWithSignIsReady(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	next, intent, es := m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))

	assert.Equal(t, domain.StateReady, next.State)
	assert.Equal(t, domain.IntentHoroscope, intent)
	assert.Equal(t, "leo", es.Get(domain.EntitySign))
	assert.Equal(t, domain.StateInitial, sc.State, "Advance must not mutate its input")
	assert.Equal(t, 0, sc.TurnCount)
}

func TestExplicitEntitiesOverrideRemembered(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	sc, _, es := m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "virgo"))

	assert.Equal(t, "virgo", es.Get(domain.EntitySign))
	assert.Equal(t, "virgo", sc.Entities[domain.EntitySign])

	_, _, es = m.Advance(sc, match(domain.IntentHoroscope), entities())
	assert.Equal(t, "virgo", es.Get(domain.EntitySign))
	assert.Equal(t, domain.ProvenanceContext, es[domain.EntitySign].Provenance)
}

func TestCompatibilityWithRememberedSignTreatsNewSignAsPartner(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	sc, _, es := m.Advance(sc, match(domain.IntentCompatibility), entities("sign", "cancer"))

	assert.Equal(t, domain.StateReady, sc.State)
	assert.Equal(t, "leo", es.Get(domain.EntitySign))
	assert.Equal(t, "cancer", es.Get(domain.EntityPartnerSign))
}

func TestNatalChartAwaitsBirthData(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentNatalChart), entities())
	require.Equal(t, domain.StateAwaitingBirthData, sc.State)

	birth := entities("date", "1990-05-12")
	birth.SetWith(domain.EntitySign, "taurus", domain.ProvenanceDefault)
	sc, intent, es := m.Advance(sc, domain.UnknownMatch(), birth)

	assert.Equal(t, domain.StateReady, sc.State)
	assert.Equal(t, domain.IntentNatalChart, intent)
	assert.Equal(t, "1990-05-12", sc.Entities[domain.EntityDate])
	assert.Equal(t, "taurus", sc.Entities[domain.EntitySign])
	assert.Equal(t, "taurus", es.Get(domain.EntitySign))
}

func TestDateDerivedSignIgnoredOutsideNatal(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	es := entities("date", "2026-05-12")
	es.SetWith(domain.EntitySign, "taurus", domain.ProvenanceDefault)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), es)

	assert.Equal(t, domain.StateAwaitingSign, sc.State)
	assert.Empty(t, sc.Entities[domain.EntitySign])
}

func TestNewIntentWhileAwaitingReplacesPending(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	sc, _, _ = m.Advance(sc, match(domain.IntentCompatibility), entities())
	require.Equal(t, domain.StateAwaitingPartnerSign, sc.State)

	// AWAITING_PARTNER_SIGN has no edge to AWAITING_BIRTH_DATA; the sub-flow
	// is abandoned through READY.
	sc, intent, _ := m.Advance(sc, match(domain.IntentNatalChart), entities())
	assert.Equal(t, domain.StateAwaitingBirthData, sc.State)
	assert.Equal(t, domain.IntentNatalChart, intent)
	assert.Equal(t, domain.IntentNatalChart, sc.PendingIntent)
}

func TestExitAndReset(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentCompatibility), entities("sign", "leo"))

	reset, intent, _ := m.Advance(sc, match(domain.IntentReset), entities())
	assert.Equal(t, domain.IntentReset, intent)
	assert.Equal(t, domain.StateInitial, reset.State)
	assert.Empty(t, reset.Entities)
	assert.Empty(t, reset.PendingIntent)

	ended, intent, _ := m.Advance(sc, match(domain.IntentExit), entities())
	assert.Equal(t, domain.IntentExit, intent)
	assert.Equal(t, domain.StateEnded, ended.State)
}

func TestEndedSessionStartsFresh(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sc := m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	sc, _, _ = m.Advance(sc, match(domain.IntentExit), entities())
	m.EndTurn(ctx, sc)

	sc = m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	assert.Equal(t, domain.StateInitial, sc.State)
	assert.Empty(t, sc.Entities)
	assert.Equal(t, 0, sc.TurnCount)
}

func TestTimeoutExpiry(t *testing.T) {
	t.Parallel()
	m, st, clock := newTestManager(t)
	ctx := context.Background()

	start := clock.Now()
	prev := domain.NewSessionContext("u1", domain.PlatformAlice, start)
	prev.State = domain.StateAwaitingPartnerSign
	prev.PendingIntent = domain.IntentCompatibility
	prev.Entities[domain.EntitySign] = "leo"
	prev.TurnCount = 4
	require.NoError(t, st.Save(ctx, prev))

	clock.Set(start.Add(11 * time.Minute))
	sc := m.BeginTurn(ctx, "u1", domain.PlatformAlice)

	assert.Equal(t, domain.StateInitial, sc.State)
	assert.Empty(t, sc.Entities, "prior entities must be ignored")
	assert.Empty(t, sc.PendingIntent)
	assert.Equal(t, 0, sc.TurnCount)

	clock.Set(start.Add(9 * time.Minute))
	sc = m.BeginTurn(ctx, "u1", domain.PlatformAlice)
	assert.Equal(t, domain.StateAwaitingPartnerSign, sc.State, "a session inside the window is kept")
}

func TestMonotonicity(t *testing.T) {
	t.Parallel()
	m, _, clock := newTestManager(t)

	start := clock.Now()
	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)

	steps := []time.Duration{time.Minute, 30 * time.Second, 2 * time.Minute, 0}
	for _, d := range steps {
		clock.Set(start.Add(d))
		next, _, _ := m.Advance(sc, match(domain.IntentHelp), entities())
		assert.Greater(t, next.TurnCount, sc.TurnCount)
		assert.False(t, next.LastActivity.Before(sc.LastActivity),
			"last activity went back from %v to %v", sc.LastActivity, next.LastActivity)
		sc = next
	}
}

func TestStoreFailureIsStateless(t *testing.T) {
	t.Parallel()
	m := NewManager(failingStore{}, 10*time.Minute, nil)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	require.NotNil(t, sc)
	assert.True(t, sc.Stateless)
	assert.Equal(t, domain.StateInitial, sc.State)

	next, _, _ := m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	assert.True(t, next.Stateless)
	assert.NotPanics(t, func() { m.EndTurn(context.Background(), next) })
}

func TestCancelledTurnDoesNotCommit(t *testing.T) {
	t.Parallel()
	m, st, _ := newTestManager(t)

	sc := m.BeginTurn(context.Background(), "u1", domain.PlatformAlice)
	sc, _, _ = m.Advance(sc, match(domain.IntentHoroscope), entities("sign", "leo"))
	m.EndTurn(context.Background(), sc)

	ctx, cancel := context.WithCancel(context.Background())
	next, _, _ := m.Advance(sc, match(domain.IntentCompatibility), entities())
	cancel()
	m.EndTurn(ctx, next)

	got, err := st.Load(context.Background(), "u1", domain.PlatformAlice)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, got.State, "previous persisted state must be kept")
	assert.Equal(t, 1, got.TurnCount)
}

func TestSweep(t *testing.T) {
	t.Parallel()
	m, st, clock := newTestManager(t)
	ctx := context.Background()
	now := clock.Now()

	idle := domain.NewSessionContext("idle", domain.PlatformAlice, now.Add(-20*time.Minute))
	idle.State = domain.StateReady
	live := domain.NewSessionContext("live", domain.PlatformAlice, now.Add(-time.Minute))
	live.State = domain.StateReady
	ancient := domain.NewSessionContext("ancient", domain.PlatformAlice, now.Add(-8*24*time.Hour))
	ancient.State = domain.StateEnded
	for _, sc := range []*domain.SessionContext{idle, live, ancient} {
		require.NoError(t, st.Save(ctx, sc))
	}

	swept, purged, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)
	assert.EqualValues(t, 1, purged)
	assert.Equal(t, 2, st.Len())

	got, err := st.Load(ctx, "idle", domain.PlatformAlice)
	require.NoError(t, err)
	assert.Equal(t, domain.StateEnded, got.State)
}

func TestSweepWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()
	m, st, clock := newTestManager(t)

	idle := domain.NewSessionContext("idle", domain.PlatformAlice, clock.Now().Add(-time.Hour))
	idle.State = domain.StateReady
	require.NoError(t, st.Save(context.Background(), idle))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartSweepWorker(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := st.Load(context.Background(), "idle", domain.PlatformAlice)
		return err == nil && got != nil && got.State == domain.StateEnded
	}, time.Second, 5*time.Millisecond)
}
