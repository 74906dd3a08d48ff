// Package format renders dialog replies into the bounded shape a platform
// accepts. Formatting is pure and never fails.
package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ashureev/astrovoice/internal/domain"
)

// DefaultText replaces a reply without primary text.
const DefaultText = "Извините, не получилось подготовить ответ. Попробуйте спросить ещё раз."

// PlatformResponse is a reply within the bounds of one platform profile.
type PlatformResponse struct {
	Text       string          `json:"text"`
	TTS        string          `json:"tts"`
	Actions    []domain.Action `json:"actions,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
	EndSession bool            `json:"end_session"`
}

// Formatter applies platform profiles to replies.
type Formatter struct{}

// New returns a Formatter.
func New() *Formatter {
	return &Formatter{}
}

// Format renders resp for profile p.
func (f *Formatter) Format(resp domain.Response, p domain.PlatformProfile) PlatformResponse {
	primary := clean(resp.Text)
	if primary == "" {
		primary = DefaultText
	}

	display := primary
	if supp := clean(resp.Supplementary); supp != "" {
		withSupp := display + "\n\n" + supp
		if p.MaxText <= 0 || utf8.RuneCountInString(withSupp) <= p.MaxText {
			display = withSupp
		}
	}
	if p.StripSymbolsInText {
		display = collapseSpaces(stripSymbols(transliterate(display)))
	}

	out := PlatformResponse{
		Text:       Truncate(display, p.MaxText),
		TTS:        Speech(primary, p.MaxSpeech, p.PauseMarker),
		Actions:    capActions(resp.Actions, p.MaxActions, p.MaxActionLabel),
		EndSession: resp.EndSession,
	}
	if p.SupportsData && len(resp.Data) > 0 {
		out.Data = resp.Data
	}
	return out
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Truncate shortens s to at most limit runes. It cuts after the last sentence
// end inside the window when that keeps at least half of it, otherwise at the
// last word boundary. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	window := runes[:limit]

	for i := len(window) - 1; i >= limit/2-1 && i >= 0; i-- {
		if isSentenceEnd(window[i]) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			return strings.TrimSpace(string(window[:i+1]))
		}
	}

	if unicode.IsSpace(runes[limit]) {
		return trimTail(string(window))
	}
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return trimTail(string(window[:i]))
		}
	}
	// A single word longer than the window.
	return string(window)
}

func trimTail(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '—' || r == '-'
	})
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isClauseEnd(r rune) bool {
	return r == ',' || r == ';' || r == ':' || r == '—' || isSentenceEnd(r)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capActions(in []domain.Action, maxActions, maxLabel int) []domain.Action {
	out := make([]domain.Action, 0, len(in))
	for _, a := range in {
		if maxActions > 0 && len(out) == maxActions {
			break
		}
		label := clean(a.Label)
		if label == "" {
			continue
		}
		if maxLabel > 0 && utf8.RuneCountInString(label) > maxLabel {
			label = strings.TrimSpace(string([]rune(label)[:maxLabel]))
		}
		var payload map[string]string
		if a.Payload != nil {
			payload = make(map[string]string, len(a.Payload))
			for k, v := range a.Payload {
				payload[k] = v
			}
		}
		out = append(out, domain.Action{Label: label, Payload: payload})
	}
	return out
}
