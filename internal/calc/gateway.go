package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config holds gateway tuning.
type Config struct {
	// CallTimeout bounds one backend Execute call.
	CallTimeout time.Duration
	// FallbackReserve is the share of the caller's deadline kept back for the
	// last eligible backend. Zero selects DefaultFallbackReserve.
	FallbackReserve time.Duration
	// AvailabilityTTL is how long an Available answer is reused.
	AvailabilityTTL time.Duration
	// CacheSize bounds the result cache of each operation kind.
	CacheSize int
	// TTLs are per-kind result cache lifetimes. A missing or non-positive
	// entry disables caching for that kind.
	TTLs map[OperationKind]time.Duration
}

// DefaultFallbackReserve is kept for the last backend when the caller's
// context has a deadline.
const DefaultFallbackReserve = 200 * time.Millisecond

// DefaultTTLs returns the built-in cache lifetimes.
func DefaultTTLs() map[OperationKind]time.Duration {
	return map[OperationKind]time.Duration{
		KindNatalChart:    24 * time.Hour,
		KindCompatibility: 24 * time.Hour,
		KindHoroscope:     time.Hour,
		KindLunarCalendar: time.Hour,
		KindTransits:      5 * time.Minute,
	}
}

type availability struct {
	ok        bool
	checkedAt time.Time
}

// BackendStatus reports a backend's cached liveness.
type BackendStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Gateway runs calculations against backends in fixed priority order.
// It is safe for concurrent use.
type Gateway struct {
	backends        []Backend
	callTimeout     time.Duration
	reserve         time.Duration
	availabilityTTL time.Duration
	caches          map[OperationKind]*expirable.LRU[string, Result]
	now             func() time.Time
	logger          *slog.Logger

	mu    sync.Mutex
	avail map[string]availability
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces time.Now for request normalisation and availability expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a gateway over backends in the given priority order.
func NewGateway(backends []Backend, cfg Config, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.FallbackReserve <= 0 {
		cfg.FallbackReserve = DefaultFallbackReserve
	}
	if cfg.TTLs == nil {
		cfg.TTLs = DefaultTTLs()
	}

	g := &Gateway{
		backends:        append([]Backend(nil), backends...),
		callTimeout:     cfg.CallTimeout,
		reserve:         cfg.FallbackReserve,
		availabilityTTL: cfg.AvailabilityTTL,
		caches:          make(map[OperationKind]*expirable.LRU[string, Result]),
		now:             time.Now,
		logger:          logger.With("component", "calc"),
		avail:           make(map[string]availability),
	}
	for kind, ttl := range cfg.TTLs {
		if ttl > 0 {
			g.caches[kind] = expirable.NewLRU[string, Result](cfg.CacheSize, nil, ttl)
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backends returns the backend names in priority order.
func (g *Gateway) Backends() []string {
	names := make([]string, len(g.backends))
	for i, b := range g.backends {
		names[i] = b.Name()
	}
	return names
}

// Calculate serves req from cache or from the first eligible backend that
// succeeds. When none does it returns an *ExhaustedError. When ctx has a
// deadline, backends before the last eligible one never eat into the
// fallback reserve.
func (g *Gateway) Calculate(ctx context.Context, req Request) (*Result, error) {
	req = req.Normalize(g.now())
	key := req.CacheKey()

	cache := g.caches[req.Kind]
	if cache != nil {
		if res, ok := cache.Get(key); ok {
			res.Cached = true
			return &res, nil
		}
	}

	last := -1
	for i, b := range g.backends {
		if b.Supports(req.Kind) {
			last = i
		}
	}

	exhausted := &ExhaustedError{Kind: req.Kind}
	for i, b := range g.backends {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Backend: b.Name(), Err: err})
			break
		}
		if !b.Supports(req.Kind) {
			continue
		}
		timeout, ok := g.budget(ctx, i == last)
		if !ok {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Backend: b.Name(), Err: ErrBudgetReserved})
			continue
		}
		if !g.available(ctx, b, timeout) {
			g.logger.Debug("backend unavailable, skipping", "backend", b.Name(), "kind", req.Kind)
			continue
		}
		if timeout, ok = g.budget(ctx, i == last); !ok {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Backend: b.Name(), Err: ErrBudgetReserved})
			continue
		}

		start := g.now()
		payload, err := g.invoke(ctx, b, req, timeout)
		if err != nil {
			g.logger.Warn("backend call failed, falling back",
				"backend", b.Name(),
				"kind", req.Kind,
				"elapsed", g.now().Sub(start),
				"error", err)
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Backend: b.Name(), Err: err})
			continue
		}

		res := Result{Kind: req.Kind, Backend: b.Name(), Payload: payload}
		if cache != nil {
			cache.Add(key, res)
		}
		return &res, nil
	}

	return nil, exhausted
}

// budget bounds the next availability check or call. Unless the backend is
// the last eligible one, the reserve is subtracted from the time left before
// ctx's deadline. ok is false when nothing is left.
func (g *Gateway) budget(ctx context.Context, last bool) (time.Duration, bool) {
	limit := g.callTimeout
	deadline, has := ctx.Deadline()
	if !has {
		return limit, true
	}
	left := time.Until(deadline)
	if !last {
		left -= g.reserve
	}
	if left <= 0 {
		return 0, false
	}
	if limit <= 0 || left < limit {
		limit = left
	}
	return limit, true
}

// invoke runs one Execute call bounded by timeout. A backend that ignores
// its context is abandoned when the deadline passes.
func (g *Gateway) invoke(ctx context.Context, b Backend, req Request, timeout time.Duration) (*Payload, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		payload *Payload
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		p, err := b.Execute(callCtx, req)
		done <- outcome{payload: p, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		if o.payload == nil {
			return nil, ErrEmptyPayload
		}
		return o.payload, nil
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("backend timed out after %s: %w", timeout, err)
		}
		return nil, err
	}
}

// available returns the cached liveness of b, refreshing it when stale.
func (g *Gateway) available(ctx context.Context, b Backend, timeout time.Duration) bool {
	name := b.Name()
	now := g.now()

	g.mu.Lock()
	a, ok := g.avail[name]
	g.mu.Unlock()
	if ok && g.availabilityTTL > 0 && now.Sub(a.checkedAt) < g.availabilityTTL {
		return a.ok
	}

	checkCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()
	live := b.Available(checkCtx)

	g.mu.Lock()
	g.avail[name] = availability{ok: live, checkedAt: now}
	g.mu.Unlock()

	if ok && a.ok != live {
		g.logger.Info("backend availability changed", "backend", name, "available", live)
	}
	return live
}

// Status reports the liveness of every backend, using the availability cache.
func (g *Gateway) Status(ctx context.Context) []BackendStatus {
	out := make([]BackendStatus, 0, len(g.backends))
	for _, b := range g.backends {
		out = append(out, BackendStatus{Name: b.Name(), Available: g.available(ctx, b, g.callTimeout)})
	}
	return out
}
