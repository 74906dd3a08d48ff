// Package dialog maps an intent and session state to a reply.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ashureev/astrovoice/internal/advisor"
	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

// Calculator runs astrological calculations.
type Calculator interface {
	Calculate(ctx context.Context, req calc.Request) (*calc.Result, error)
}

// Turn is everything a handler knows about the current utterance. Entities
// are already resolved against the session, explicit values winning.
type Turn struct {
	Utterance domain.Utterance
	Intent    domain.Intent
	Entities  domain.EntitySet
	Session   *domain.SessionContext
}

// HandlerFunc produces the reply for one intent.
type HandlerFunc func(ctx context.Context, t Turn) (domain.Response, error)

// Router dispatches turns to intent handlers.
type Router struct {
	calc     Calculator
	advisor  advisor.Advisor
	handlers map[domain.Intent]HandlerFunc
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithAdvisor enables AI answers for consultation intents.
func WithAdvisor(a advisor.Advisor) Option {
	return func(r *Router) {
		r.advisor = a
	}
}

// WithClock overrides the time source used for relative periods.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithHandler replaces the handler for intent.
func WithHandler(intent domain.Intent, h HandlerFunc) Option {
	return func(r *Router) {
		r.handlers[intent] = h
	}
}

// NewRouter creates a Router using c for calculations.
func NewRouter(c Calculator, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		calc:   c,
		logger: logger.With("component", "dialog"),
		now:    time.Now,
	}
	r.handlers = map[domain.Intent]HandlerFunc{
		domain.IntentGreet:         r.greet,
		domain.IntentHelp:          r.help,
		domain.IntentExit:          r.exit,
		domain.IntentReset:         r.reset,
		domain.IntentHoroscope:     r.horoscope,
		domain.IntentCompatibility: r.compatibility,
		domain.IntentNatalChart:    r.natalChart,
		domain.IntentLunarCalendar: r.lunarCalendar,
		domain.IntentTransits:      r.transits,
		domain.IntentAdvice:        r.advice,
		domain.IntentAIConsult:     r.aiConsult,
		domain.IntentAIForecast:    r.aiForecast,
		domain.IntentUnknown:       r.unknown,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle always returns a reply. A session waiting for data gets the matching
// prompt without any calculation; handler errors and panics become a generic
// apology.
func (r *Router) Handle(ctx context.Context, t Turn) (resp domain.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "dialog handler panicked",
				"turn_id", t.Utterance.TurnID,
				"intent", t.Intent,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			resp = apology()
		}
	}()

	if t.Entities == nil {
		t.Entities = domain.NewEntitySet()
	}
	if t.Session != nil && t.Session.State.IsAwaiting() {
		return prompt(t.Session.State, t.Session.PendingIntent, t.Entities)
	}

	h, ok := r.handlers[t.Intent]
	if !ok {
		h = r.handlers[domain.IntentUnknown]
	}

	resp, err := h(ctx, t)
	if err != nil {
		r.logger.ErrorContext(ctx, "dialog handler failed",
			"turn_id", t.Utterance.TurnID,
			"intent", t.Intent,
			"error", err,
		)
		return apology()
	}
	return resp
}

func apology() domain.Response {
	return domain.Response{
		Text:    textSomethingWrong,
		Actions: []domain.Action{domain.CommandAction(labelHelp, cmdHelp)},
	}
}

// prompt asks for the data the awaiting state is collecting.
func prompt(state domain.State, pending domain.Intent, es domain.EntitySet) domain.Response {
	switch state {
	case domain.StateAwaitingSign:
		text := textAskSign
		switch pending {
		case domain.IntentCompatibility:
			text = textAskOwnSignForCompat
		case domain.IntentHoroscope, domain.IntentAIForecast:
			text = textAskSignForHoroscope
		}
		return domain.Response{Text: text, Actions: signActions()}
	case domain.StateAwaitingPartnerSign:
		text := textAskPartnerSign
		if s, ok := domain.SignByID(es.Get(domain.EntitySign)); ok {
			text = fmt.Sprintf(textAskPartnerSignFor, s.Name)
		}
		return domain.Response{Text: text, Actions: signActions()}
	case domain.StateAwaitingBirthData:
		return domain.Response{Text: textAskBirthData}
	}
	return domain.Response{Text: textUnknown, Actions: defaultActions()}
}
