package platform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
)

const (
	requestSimpleUtterance = "SimpleUtterance"
	requestButtonPressed   = "ButtonPressed"
	protocolVersion        = "1.0"
	pingUtterance          = "ping"
)

// Dialogs is the codec for the Yandex Dialogs and VK Marusya webhook
// protocol. Both platforms share the envelope.
type Dialogs struct {
	name string
}

// NewDialogs returns a codec reporting utterances as platform name.
func NewDialogs(name string) *Dialogs {
	return &Dialogs{name: name}
}

func (d *Dialogs) Name() string { return d.name }

type dialogsRequest struct {
	Request struct {
		Command           string         `json:"command"`
		OriginalUtterance string         `json:"original_utterance"`
		Type              string         `json:"type"`
		Payload           map[string]any `json:"payload"`
	} `json:"request"`
	Session struct {
		SessionID string `json:"session_id"`
		MessageID int    `json:"message_id"`
		UserID    string `json:"user_id"`
		New       bool   `json:"new"`
		User      *struct {
			UserID string `json:"user_id"`
		} `json:"user"`
		Application *struct {
			ApplicationID string `json:"application_id"`
		} `json:"application"`
	} `json:"session"`
	Version string `json:"version"`
}

// userID prefers the account id, then the legacy per-application id.
func (r *dialogsRequest) userID() string {
	if r.Session.User != nil && r.Session.User.UserID != "" {
		return r.Session.User.UserID
	}
	if r.Session.UserID != "" {
		return r.Session.UserID
	}
	if r.Session.Application != nil {
		return r.Session.Application.ApplicationID
	}
	return ""
}

// Decode implements Codec.
func (d *Dialogs) Decode(data []byte) (*Inbound, error) {
	var req dialogsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	userID := req.userID()
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformed)
	}

	text := req.Request.Command
	if text == "" {
		text = req.Request.OriginalUtterance
	}
	if req.Request.Type == requestButtonPressed {
		if cmd, ok := req.Request.Payload["command"].(string); ok && cmd != "" {
			text = cmd
		}
	}

	version := req.Version
	if version == "" {
		version = protocolVersion
	}

	return &Inbound{
		Utterance: domain.Utterance{
			Text:       strings.TrimSpace(text),
			UserID:     userID,
			SessionID:  req.Session.SessionID,
			Platform:   d.name,
			NewSession: req.Session.New,
			Seq:        req.Session.MessageID,
		},
		Ping:      strings.EqualFold(strings.TrimSpace(req.Request.OriginalUtterance), pingUtterance),
		MessageID: req.Session.MessageID,
		Version:   version,
	}, nil
}

type dialogsButton struct {
	Title   string            `json:"title"`
	Payload map[string]string `json:"payload,omitempty"`
	Hide    bool              `json:"hide"`
}

type dialogsResponse struct {
	Response struct {
		Text       string          `json:"text"`
		TTS        string          `json:"tts,omitempty"`
		Buttons    []dialogsButton `json:"buttons,omitempty"`
		EndSession bool            `json:"end_session"`
	} `json:"response"`
	Session *dialogsSession `json:"session,omitempty"`
	Version string          `json:"version"`
}

type dialogsSession struct {
	SessionID string `json:"session_id"`
	MessageID int    `json:"message_id"`
	UserID    string `json:"user_id"`
}

// Encode implements Codec.
func (d *Dialogs) Encode(in *Inbound, out format.PlatformResponse) any {
	var resp dialogsResponse
	resp.Response.Text = out.Text
	resp.Response.TTS = out.TTS
	resp.Response.EndSession = out.EndSession
	for _, a := range out.Actions {
		resp.Response.Buttons = append(resp.Response.Buttons, dialogsButton{Title: a.Label, Payload: a.Payload, Hide: true})
	}
	resp.Version = protocolVersion
	if in != nil {
		if in.Version != "" {
			resp.Version = in.Version
		}
		resp.Session = &dialogsSession{
			SessionID: in.Utterance.SessionID,
			MessageID: in.MessageID,
			UserID:    in.Utterance.UserID,
		}
	}
	return resp
}
