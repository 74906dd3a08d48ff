package platform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
)

// Message types of the web channel.
const (
	TypeUtterance = "utterance"
	TypeResponse  = "response"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeError     = "error"
)

// Web is the codec for the companion web channel.
type Web struct{}

// NewWeb returns the web codec.
func NewWeb() *Web { return &Web{} }

func (w *Web) Name() string { return domain.PlatformWeb }

// WebMessage is one inbound web frame.
type WebMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Seq       int    `json:"seq,omitempty"`
}

// WebResponse is one outbound web frame.
type WebResponse struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	TTS        string          `json:"tts,omitempty"`
	Actions    []domain.Action `json:"actions,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
	EndSession bool            `json:"end_session"`
}

// Decode implements Codec. The user id may be empty here and filled in from
// the transport identity.
func (w *Web) Decode(data []byte) (*Inbound, error) {
	var msg WebMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch msg.Type {
	case TypePing:
		return &Inbound{Ping: true, Utterance: domain.Utterance{UserID: msg.UserID, Platform: domain.PlatformWeb}}, nil
	case TypeUtterance, "":
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrMalformed, msg.Type)
	}
	return &Inbound{
		Utterance: domain.Utterance{
			Text:      strings.TrimSpace(msg.Text),
			UserID:    msg.UserID,
			SessionID: msg.SessionID,
			Platform:  domain.PlatformWeb,
			Seq:       msg.Seq,
		},
		MessageID: msg.Seq,
	}, nil
}

// Encode implements Codec.
func (w *Web) Encode(_ *Inbound, out format.PlatformResponse) any {
	return WebResponse{
		Type:       TypeResponse,
		Text:       out.Text,
		TTS:        out.TTS,
		Actions:    out.Actions,
		Data:       out.Data,
		EndSession: out.EndSession,
	}
}

// Pong is the reply to a web ping.
func Pong() WebResponse {
	return WebResponse{Type: TypePong}
}
