// Package session owns the conversation state machine and its persistence.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/store"
)

// DefaultRetention is how long ENDED sessions are kept before being purged.
const DefaultRetention = 7 * 24 * time.Hour

// Manager loads, advances and persists session contexts.
type Manager struct {
	store     store.SessionStore
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRetention sets how long ENDED sessions are kept.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// NewManager creates a Manager. timeout is the inactivity threshold after
// which a session is treated as absent.
func NewManager(st store.SessionStore, timeout time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:     st,
		timeout:   timeout,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BeginTurn returns the live context for (userID, platform). Absent, ENDED and
// expired sessions are replaced by a fresh INITIAL context. A store failure
// yields a transient stateless context instead of an error.
func (m *Manager) BeginTurn(ctx context.Context, userID, platform string) *domain.SessionContext {
	now := m.now()

	sc, err := m.store.Load(ctx, userID, platform)
	if err != nil {
		m.logger.Warn("session store unavailable, continuing stateless",
			"user_id", userID,
			"platform", platform,
			"error", err)
		fresh := domain.NewSessionContext(userID, platform, now)
		fresh.Stateless = true
		return fresh
	}

	switch {
	case sc == nil:
		return domain.NewSessionContext(userID, platform, now)
	case sc.State == domain.StateEnded:
		m.logger.Debug("previous session ended, starting new one", "user_id", userID, "platform", platform)
		return domain.NewSessionContext(userID, platform, now)
	case sc.Expired(now, m.timeout):
		m.logger.Debug("session expired, starting new one",
			"user_id", userID,
			"platform", platform,
			"idle", now.Sub(sc.LastActivity))
		return domain.NewSessionContext(userID, platform, now)
	}

	if sc.Entities == nil {
		sc.Entities = make(map[domain.EntityKind]string)
	}
	return sc
}

// Advance applies one turn to sc and returns the next context, the intent the
// router should handle and the resolved entities. sc is not modified.
func (m *Manager) Advance(sc *domain.SessionContext, match domain.IntentMatch, explicit domain.EntitySet) (*domain.SessionContext, domain.Intent, domain.EntitySet) {
	next := sc.Clone()
	now := m.now()
	if now.Before(next.LastActivity) {
		now = next.LastActivity
	}
	next.LastActivity = now
	next.TurnCount++

	explicit = explicit.Clone()

	switch match.Intent {
	case domain.IntentExit:
		m.move(next, domain.StateEnded, false)
		next.PendingIntent = ""
		return next, domain.IntentExit, next.Known().Merge(explicit)

	case domain.IntentReset:
		m.move(next, domain.StateInitial, true)
		next.PendingIntent = ""
		next.Entities = make(map[domain.EntityKind]string)
		return next, domain.IntentReset, explicit
	}

	intent := match.Intent
	if !intent.IsKnown() && sc.State.IsAwaiting() && sc.PendingIntent.IsKnown() {
		intent = sc.PendingIntent
	}

	retarget(sc, intent, explicit)

	// A sign inferred from a date only counts when the date is a birth date.
	if explicit[domain.EntitySign].Provenance == domain.ProvenanceDefault &&
		intent != domain.IntentNatalChart && sc.State != domain.StateAwaitingBirthData {
		delete(explicit, domain.EntitySign)
	}

	remember(next, explicit, intent, sc.State)
	resolved := next.Known().Merge(explicit)

	target := requiredState(intent, resolved)
	m.move(next, target, false)

	if target.IsAwaiting() {
		next.PendingIntent = intent
	} else {
		next.PendingIntent = ""
	}
	return next, intent, resolved
}

// move transitions next to target. A target not directly reachable from an
// awaiting state abandons the current sub-flow through READY.
func (m *Manager) move(next *domain.SessionContext, target domain.State, reset bool) {
	err := next.Transition(target, reset)
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) &&
		domain.CanTransition(next.State, domain.StateReady, false) &&
		domain.CanTransition(domain.StateReady, target, false) {
		next.State = domain.StateReady
		if err := next.Transition(target, reset); err == nil {
			return
		}
	}
	m.logger.Warn("rejected state transition", "key", next.Key(), "from", next.State, "to", target, "error", err)
}

// retarget reassigns a lone explicit sign to partner_sign when it answers the
// partner question.
func retarget(sc *domain.SessionContext, intent domain.Intent, explicit domain.EntitySet) {
	if !explicit.Has(domain.EntitySign) || explicit.Has(domain.EntityPartnerSign) {
		return
	}
	own := sc.Entities[domain.EntitySign]
	switch {
	case sc.State == domain.StateAwaitingPartnerSign:
	case intent == domain.IntentCompatibility && own != "" && sc.Entities[domain.EntityPartnerSign] == "" &&
		own != explicit.Get(domain.EntitySign):
	default:
		return
	}
	explicit[domain.EntityPartnerSign] = explicit[domain.EntitySign]
	delete(explicit, domain.EntitySign)
}

// remember copies durable explicit entities into the session.
func remember(next *domain.SessionContext, explicit domain.EntitySet, intent domain.Intent, prev domain.State) {
	for _, kind := range []domain.EntityKind{domain.EntitySign, domain.EntityPartnerSign} {
		if explicit.Has(kind) {
			next.Entities[kind] = explicit.Get(kind)
		}
	}
	if intent == domain.IntentNatalChart || prev == domain.StateAwaitingBirthData {
		for _, kind := range []domain.EntityKind{domain.EntityDate, domain.EntityTime} {
			if explicit.Has(kind) {
				next.Entities[kind] = explicit.Get(kind)
			}
		}
	}
}

// requiredState returns the state an intent needs given the resolved entities.
func requiredState(intent domain.Intent, es domain.EntitySet) domain.State {
	switch intent {
	case domain.IntentHoroscope, domain.IntentAIForecast:
		if !es.Has(domain.EntitySign) {
			return domain.StateAwaitingSign
		}
	case domain.IntentCompatibility:
		if !es.Has(domain.EntitySign) {
			return domain.StateAwaitingSign
		}
		if !es.Has(domain.EntityPartnerSign) {
			return domain.StateAwaitingPartnerSign
		}
	case domain.IntentNatalChart:
		if !es.Has(domain.EntityDate) {
			return domain.StateAwaitingBirthData
		}
	}
	return domain.StateReady
}

// EndTurn persists sc. Stateless contexts and turns whose context is already
// done are not committed, leaving the previous persisted state untouched.
func (m *Manager) EndTurn(ctx context.Context, sc *domain.SessionContext) {
	if sc == nil || sc.Stateless {
		return
	}
	if err := ctx.Err(); err != nil {
		m.logger.Warn("turn abandoned, session not committed", "key", sc.Key(), "reason", err)
		return
	}
	if err := m.store.Save(ctx, sc); err != nil {
		m.logger.Warn("failed to persist session", "key", sc.Key(), "error", err)
	}
}

// Sweep marks inactive sessions ENDED and purges ENDED sessions older than
// the retention window.
func (m *Manager) Sweep(ctx context.Context) (swept, purged int64, err error) {
	now := m.now()

	swept, err = m.store.SweepExpired(ctx, now.Add(-m.timeout))
	if err != nil {
		return 0, 0, err
	}
	purged, err = m.store.PurgeEnded(ctx, now.Add(-m.retention))
	if err != nil {
		return swept, 0, err
	}
	return swept, purged, nil
}
