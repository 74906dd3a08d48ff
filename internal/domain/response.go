package domain

import "time"

// Utterance is one inbound user turn.
type Utterance struct {
	Text       string
	TurnID     string
	UserID     string
	SessionID  string
	Platform   string
	NewSession bool
	Seq        int
	ReceivedAt time.Time
}

// Action is a suggested follow-up shown as a button.
type Action struct {
	Label   string            `json:"label"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Response is the platform-independent reply produced by the dialog router.
type Response struct {
	Text          string
	Supplementary string
	Data          map[string]any
	Actions       []Action
	EndSession    bool

	// Backend names the calculation backend behind the reply, if any.
	Backend string
	// Degraded is set when the reply was produced from fallback content.
	Degraded bool
}

// CommandAction builds an action whose press replays the given command text.
func CommandAction(label, command string) Action {
	return Action{Label: label, Payload: map[string]string{"command": command}}
}
