package calc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name      string
	kinds     KindSet
	down      bool
	fail      error
	hang      bool // ignores ctx and blocks until release is closed
	release   chan struct{}
	calls     atomic.Int32
	liveCalls atomic.Int32
}

func (f *fakeBackend) Name() string                     { return f.name }
func (f *fakeBackend) Supports(k OperationKind) bool    { return f.kinds == nil || f.kinds.Has(k) }
func (f *fakeBackend) Available(_ context.Context) bool { f.liveCalls.Add(1); return !f.down }

func (f *fakeBackend) Execute(_ context.Context, req Request) (*Payload, error) {
	f.calls.Add(1)
	if f.hang {
		<-f.release
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return &Payload{Text: f.name + ":" + req.Sign}, nil
}

func testConfig() Config {
	return Config{CallTimeout: 50 * time.Millisecond, AvailabilityTTL: time.Minute, CacheSize: 16}
}

func horoscope(sign string) Request {
	return Request{Kind: KindHoroscope, Sign: sign, Date: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)}
}

func TestCalculate_IdempotentCaching(t *testing.T) {
	t.Parallel()
	b := &fakeBackend{name: "one"}
	g := NewGateway([]Backend{b}, testConfig(), nil)

	first, err := g.Calculate(context.Background(), horoscope("leo"))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Calculate(context.Background(), horoscope("LEO"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, "one", second.Backend)
	assert.EqualValues(t, 1, b.calls.Load(), "second call must be served from cache")
}

func TestCalculate_FallbackCorrectness(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)

	failing := &fakeBackend{name: "failing", fail: errors.New("boom")}
	slow := &fakeBackend{name: "slow", hang: true, release: release}
	down := &fakeBackend{name: "down", down: true}
	good := &fakeBackend{name: "good"}
	after := &fakeBackend{name: "after"}

	g := NewGateway([]Backend{failing, slow, down, good, after}, testConfig(), nil)

	start := time.Now()
	res, err := g.Calculate(context.Background(), horoscope("leo"))
	require.NoError(t, err)
	assert.Equal(t, "good", res.Backend)
	assert.Equal(t, "good:leo", res.Payload.Text)
	assert.Less(t, time.Since(start), time.Second, "hung backend must be abandoned at the call timeout")

	assert.EqualValues(t, 1, failing.calls.Load())
	assert.EqualValues(t, 1, slow.calls.Load())
	assert.EqualValues(t, 0, down.calls.Load())
	assert.EqualValues(t, 1, good.calls.Load())
	assert.EqualValues(t, 0, after.calls.Load(), "nothing after the first success is invoked")
}

func TestCalculate_SkipsUnsupportedKinds(t *testing.T) {
	t.Parallel()
	natalOnly := &fakeBackend{name: "natal", kinds: NewKindSet("natal_chart")}
	all := &fakeBackend{name: "all"}
	g := NewGateway([]Backend{natalOnly, all}, testConfig(), nil)

	res, err := g.Calculate(context.Background(), horoscope("leo"))
	require.NoError(t, err)
	assert.Equal(t, "all", res.Backend)
	assert.EqualValues(t, 0, natalOnly.calls.Load())
}

func TestCalculate_Exhausted(t *testing.T) {
	t.Parallel()
	a := &fakeBackend{name: "a", fail: errors.New("a failed")}
	b := &fakeBackend{name: "b", fail: errors.New("b failed")}
	g := NewGateway([]Backend{a, b}, testConfig(), nil)

	res, err := g.Calculate(context.Background(), horoscope("leo"))
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrAllBackendsExhausted)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, KindHoroscope, ex.Kind)
	require.Len(t, ex.Attempts, 2)
	assert.Equal(t, "a", ex.Attempts[0].Backend)
	assert.Contains(t, err.Error(), "b failed")

	// Failures are never cached.
	_, err = g.Calculate(context.Background(), horoscope("leo"))
	require.Error(t, err)
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestCalculate_NoBackends(t *testing.T) {
	t.Parallel()
	g := NewGateway(nil, testConfig(), nil)
	_, err := g.Calculate(context.Background(), horoscope("leo"))
	assert.ErrorIs(t, err, ErrAllBackendsExhausted)
}

func TestCalculate_CancelledContext(t *testing.T) {
	t.Parallel()
	b := &fakeBackend{name: "one"}
	g := NewGateway([]Backend{b}, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Calculate(ctx, horoscope("leo"))
	assert.ErrorIs(t, err, ErrAllBackendsExhausted)
	assert.EqualValues(t, 0, b.calls.Load())
}

func TestAvailabilityIsCached(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	b := &fakeBackend{name: "one"}
	cfg := testConfig()
	cfg.TTLs = map[OperationKind]time.Duration{} // no result caching
	g := NewGateway([]Backend{b}, cfg, nil, WithClock(clock))

	for i := 0; i < 3; i++ {
		_, err := g.Calculate(context.Background(), horoscope("leo"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, b.liveCalls.Load())
	assert.EqualValues(t, 3, b.calls.Load())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	_, err := g.Calculate(context.Background(), horoscope("leo"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.liveCalls.Load(), "stale availability is re-checked")

	st := g.Status(context.Background())
	require.Len(t, st, 1)
	assert.True(t, st[0].Available)
}

func TestCalculate_PanickingBackend(t *testing.T) {
	t.Parallel()
	g := NewGateway([]Backend{panicBackend{}, &fakeBackend{name: "good"}}, testConfig(), nil)

	res, err := g.Calculate(context.Background(), horoscope("leo"))
	require.NoError(t, err)
	assert.Equal(t, "good", res.Backend)
}

type panicBackend struct{}

func (panicBackend) Name() string                  { return "panic" }
func (panicBackend) Supports(OperationKind) bool   { return true }
func (panicBackend) Available(context.Context) bool { return true }
func (panicBackend) Execute(context.Context, Request) (*Payload, error) {
	panic("ephemeris table missing")
}

func TestRequestNormalize(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 10, 11, 12, 0, time.UTC)

	a := Request{Kind: KindHoroscope, Sign: " Leo ", Date: time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)}.Normalize(now)
	b := Request{Kind: KindHoroscope, Sign: "leo", Date: time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)}.Normalize(now)
	assert.Equal(t, a.CacheKey(), b.CacheKey(), "same day shares a key")

	tr := Request{Kind: KindTransits}.Normalize(now)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 11, 0, 0, time.UTC), tr.Date)

	c1 := Request{Kind: KindCompatibility, Sign: "virgo", PartnerSign: "aries"}.Normalize(now)
	c2 := Request{Kind: KindCompatibility, Sign: "aries", PartnerSign: "virgo"}.Normalize(now.Add(time.Hour))
	assert.Equal(t, c1.CacheKey(), c2.CacheKey(), "compatibility is symmetric")

	o1 := Request{Kind: KindNatalChart, Options: map[string]string{"House": "placidus", "zodiac": "tropical"}}.Normalize(now)
	o2 := Request{Kind: KindNatalChart, Options: map[string]string{"zodiac": "tropical", "house": "placidus"}}.Normalize(now)
	assert.Equal(t, o1.CacheKey(), o2.CacheKey())

	other := Request{Kind: KindHoroscope, Sign: "virgo"}.Normalize(now)
	assert.NotEqual(t, a.CacheKey(), other.CacheKey())
}

// stalledBackend answers its health check after checkDelay and never
// finishes a call before its context ends.
type stalledBackend struct {
	name       string
	checkDelay time.Duration
	calls      atomic.Int32
}

func (s *stalledBackend) Name() string                { return s.name }
func (s *stalledBackend) Supports(OperationKind) bool { return true }

func (s *stalledBackend) Available(ctx context.Context) bool {
	select {
	case <-time.After(s.checkDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *stalledBackend) Execute(ctx context.Context, _ Request) (*Payload, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCalculate_ReservesDeadlineForLastBackend(t *testing.T) {
	t.Parallel()
	first := &stalledBackend{name: "first", checkDelay: 250 * time.Millisecond}
	second := &stalledBackend{name: "second", checkDelay: 250 * time.Millisecond}
	local := &fakeBackend{name: "local"}

	cfg := Config{CallTimeout: 300 * time.Millisecond, FallbackReserve: 150 * time.Millisecond, CacheSize: 16}
	g := NewGateway([]Backend{first, second, local}, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	res, err := g.Calculate(ctx, horoscope("leo"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Backend)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, local.calls.Load())
	assert.EqualValues(t, 1, first.calls.Load())
}

func TestCalculate_SkipsBackendWhenOnlyReserveIsLeft(t *testing.T) {
	t.Parallel()
	remote := &fakeBackend{name: "remote"}
	local := &fakeBackend{name: "local"}

	cfg := Config{CallTimeout: time.Second, FallbackReserve: time.Second, CacheSize: 16}
	g := NewGateway([]Backend{remote, local}, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	res, err := g.Calculate(ctx, horoscope("leo"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Backend)
	assert.Zero(t, remote.calls.Load())
	assert.Zero(t, remote.liveCalls.Load())
}
