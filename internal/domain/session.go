package domain

import (
	"fmt"
	"time"
)

// State is the conversational state of a session.
type State string

const (
	StateInitial             State = "INITIAL"
	StateAwaitingSign        State = "AWAITING_SIGN"
	StateAwaitingPartnerSign State = "AWAITING_PARTNER_SIGN"
	StateAwaitingBirthData   State = "AWAITING_BIRTH_DATA"
	StateReady               State = "READY"
	StateEnded               State = "ENDED"
)

// IsAwaiting reports whether the state is a data-collection sub-state.
func (s State) IsAwaiting() bool {
	switch s {
	case StateAwaitingSign, StateAwaitingPartnerSign, StateAwaitingBirthData:
		return true
	}
	return false
}

// transitions is the fixed directed graph of allowed moves. Moves to ENDED are
// allowed from every state and RESET (to INITIAL) is handled by CanTransition.
var transitions = map[State][]State{
	StateInitial:             {StateAwaitingSign, StateAwaitingPartnerSign, StateAwaitingBirthData, StateReady},
	StateAwaitingSign:        {StateAwaitingSign, StateAwaitingPartnerSign, StateAwaitingBirthData, StateReady},
	StateAwaitingPartnerSign: {StateAwaitingPartnerSign, StateReady},
	StateAwaitingBirthData:   {StateAwaitingBirthData, StateReady},
	StateReady:               {StateReady, StateAwaitingSign, StateAwaitingPartnerSign, StateAwaitingBirthData},
}

// CanTransition reports whether from -> to is an edge of the state graph.
// reset marks a RESET intent, the only way back to INITIAL.
func CanTransition(from, to State, reset bool) bool {
	if to == StateEnded {
		return true
	}
	if to == StateInitial {
		return reset
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SessionContext is the persisted conversational state for one (user, platform) pair.
type SessionContext struct {
	UserID        string                `json:"user_id"`
	Platform      string                `json:"platform"`
	SessionID     string                `json:"session_id,omitempty"`
	State         State                 `json:"state"`
	PendingIntent Intent                `json:"pending_intent,omitempty"`
	Entities      map[EntityKind]string `json:"entities"`
	TurnCount     int                   `json:"turn_count"`
	LastActivity  time.Time             `json:"last_activity"`
	CreatedAt     time.Time             `json:"created_at"`

	// Stateless marks a transient context used while the store is unavailable.
	Stateless bool `json:"-"`
}

// NewSessionContext returns a fresh INITIAL context.
func NewSessionContext(userID, platform string, now time.Time) *SessionContext {
	return &SessionContext{
		UserID:       userID,
		Platform:     platform,
		State:        StateInitial,
		Entities:     make(map[EntityKind]string),
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Clone returns a deep copy.
func (c *SessionContext) Clone() *SessionContext {
	out := *c
	out.Entities = make(map[EntityKind]string, len(c.Entities))
	for k, v := range c.Entities {
		out.Entities[k] = v
	}
	return &out
}

// Expired reports whether the session was inactive for longer than timeout.
func (c *SessionContext) Expired(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(c.LastActivity) > timeout
}

// Known returns remembered entities as a context-provenance set.
func (c *SessionContext) Known() EntitySet {
	out := make(EntitySet, len(c.Entities))
	for k, v := range c.Entities {
		out.SetWith(k, v, ProvenanceContext)
	}
	return out
}

// Transition moves the context to next if the graph allows it.
func (c *SessionContext) Transition(next State, reset bool) error {
	if !CanTransition(c.State, next, reset) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, next)
	}
	c.State = next
	return nil
}

// Key identifies the session in a store.
func (c *SessionContext) Key() string {
	return SessionKey(c.Platform, c.UserID)
}

// SessionKey builds the store key for a (platform, user) pair.
func SessionKey(platform, userID string) string {
	return platform + ":" + userID
}
