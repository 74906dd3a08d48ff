// Package assistant runs one conversational turn end to end.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/astrovoice/internal/dialog"
	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
	"github.com/ashureev/astrovoice/internal/nlu"
	"github.com/ashureev/astrovoice/internal/session"
)

// Assistant wires extractor, session manager, router and formatter.
type Assistant struct {
	extractor *nlu.Extractor
	sessions  *session.Manager
	router    *dialog.Router
	formatter *format.Formatter
	profiles  map[string]domain.PlatformProfile
	logger    *slog.Logger
}

// New creates an Assistant. profiles are keyed by platform name; a platform
// without a profile is formatted with the web profile.
func New(
	extractor *nlu.Extractor,
	sessions *session.Manager,
	router *dialog.Router,
	formatter *format.Formatter,
	profiles map[string]domain.PlatformProfile,
	logger *slog.Logger,
) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if profiles == nil {
		profiles = domain.DefaultProfiles()
	}
	return &Assistant{
		extractor: extractor,
		sessions:  sessions,
		router:    router,
		formatter: formatter,
		profiles:  profiles,
		logger:    logger.With("component", "assistant"),
	}
}

// Profile returns the formatting profile for platform.
func (a *Assistant) Profile(platform string) domain.PlatformProfile {
	if p, ok := a.profiles[platform]; ok {
		return p
	}
	return domain.DefaultProfiles()[domain.PlatformWeb]
}

// Turn answers u. Session state is committed only when ctx is still live
// after the reply has been built.
func (a *Assistant) Turn(ctx context.Context, u domain.Utterance) format.PlatformResponse {
	start := time.Now()
	if u.TurnID == "" {
		u.TurnID = uuid.NewString()
	}
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = start
	}
	profile := a.Profile(u.Platform)

	sc := a.sessions.BeginTurn(ctx, u.UserID, u.Platform)
	if u.NewSession && sc.State.IsAwaiting() {
		// A new platform session abandons the question asked in the old one.
		sc = sc.Clone()
		if err := sc.Transition(domain.StateReady, false); err == nil {
			sc.PendingIntent = ""
		}
	}

	var (
		match    domain.IntentMatch
		explicit domain.EntitySet
	)
	if strings.TrimSpace(u.Text) == "" {
		// Launching the skill sends an empty command.
		match = domain.IntentMatch{Intent: domain.IntentGreet, Confidence: 1, Basis: domain.BasisContext}
		explicit = domain.NewEntitySet()
	} else {
		match, explicit = a.extractor.Extract(u.Text, sc)
	}

	next, intent, resolved := a.sessions.Advance(sc, match, explicit)
	if u.SessionID != "" {
		next.SessionID = u.SessionID
	}

	resp := a.router.Handle(ctx, dialog.Turn{
		Utterance: u,
		Intent:    intent,
		Entities:  resolved,
		Session:   next,
	})
	out := a.formatter.Format(resp, profile)

	a.sessions.EndTurn(ctx, next)

	a.logger.InfoContext(ctx, "turn",
		"turn_id", u.TurnID,
		"user_id", u.UserID,
		"platform", u.Platform,
		"intent", intent,
		"basis", match.Basis,
		"confidence", match.Confidence,
		"state", next.State,
		"turn", next.TurnCount,
		"backend", resp.Backend,
		"degraded", resp.Degraded,
		"stateless", next.Stateless,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out
}
