package platform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
)

const aliceRequest = `{
  "meta": {"locale": "ru-RU"},
  "request": {
    "command": "дай гороскоп для льва",
    "original_utterance": "Дай гороскоп для Льва",
    "type": "SimpleUtterance"
  },
  "session": {
    "message_id": 3,
    "session_id": "s-1",
    "new": false,
    "user": {"user_id": "account-7"},
    "application": {"application_id": "app-9"}
  },
  "version": "1.0"
}`

func TestDialogsDecode(t *testing.T) {
	t.Parallel()

	in, err := NewDialogs(domain.PlatformAlice).Decode([]byte(aliceRequest))
	require.NoError(t, err)

	assert.Equal(t, "дай гороскоп для льва", in.Utterance.Text)
	assert.Equal(t, "account-7", in.Utterance.UserID)
	assert.Equal(t, "s-1", in.Utterance.SessionID)
	assert.Equal(t, domain.PlatformAlice, in.Utterance.Platform)
	assert.Equal(t, 3, in.Utterance.Seq)
	assert.False(t, in.Ping)
}

func TestDialogsDecodeButtonAndFallbackIDs(t *testing.T) {
	t.Parallel()

	body := `{
	  "request": {"type": "ButtonPressed", "command": "", "payload": {"command": "гороскоп на завтра"}},
	  "session": {"session_id": "s", "message_id": 1, "user_id": "legacy-1", "new": true},
	  "version": "1.0"
	}`
	in, err := NewDialogs(domain.PlatformMarusya).Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "гороскоп на завтра", in.Utterance.Text)
	assert.Equal(t, "legacy-1", in.Utterance.UserID)
	assert.True(t, in.Utterance.NewSession)
	assert.Equal(t, domain.PlatformMarusya, in.Utterance.Platform)
}

func TestDialogsDecodePing(t *testing.T) {
	t.Parallel()

	body := `{"request": {"command": "ping", "original_utterance": "ping"}, "session": {"application": {"application_id": "a"}}}`
	in, err := NewDialogs(domain.PlatformAlice).Decode([]byte(body))
	require.NoError(t, err)
	assert.True(t, in.Ping)
	assert.Equal(t, "a", in.Utterance.UserID)
	assert.Equal(t, "1.0", in.Version)
}

func TestDialogsDecodeMalformed(t *testing.T) {
	t.Parallel()

	c := NewDialogs(domain.PlatformAlice)
	_, err := c.Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decode([]byte(`{"request": {"command": "привет"}, "session": {}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDialogsEncode(t *testing.T) {
	t.Parallel()

	c := NewDialogs(domain.PlatformAlice)
	in, err := c.Decode([]byte(aliceRequest))
	require.NoError(t, err)

	env := c.Encode(in, format.PlatformResponse{
		Text:    "Гороскоп для Льва.",
		TTS:     "Гороскоп для Льва.",
		Actions: []domain.Action{domain.CommandAction("Совместимость", "совместимость")},
	})
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	resp := got["response"].(map[string]any)
	assert.Equal(t, "Гороскоп для Льва.", resp["text"])
	assert.Equal(t, false, resp["end_session"])
	buttons := resp["buttons"].([]any)
	require.Len(t, buttons, 1)
	button := buttons[0].(map[string]any)
	assert.Equal(t, "Совместимость", button["title"])
	assert.Equal(t, true, button["hide"])
	assert.Equal(t, "1.0", got["version"])
	session := got["session"].(map[string]any)
	assert.Equal(t, "s-1", session["session_id"])
	assert.EqualValues(t, 3, session["message_id"])
}

func TestWebCodec(t *testing.T) {
	t.Parallel()

	c := NewWeb()
	in, err := c.Decode([]byte(`{"type":"utterance","text":"  совместимость  "}`))
	require.NoError(t, err)
	assert.Equal(t, "совместимость", in.Utterance.Text)
	assert.Equal(t, domain.PlatformWeb, in.Utterance.Platform)

	in, err = c.Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.True(t, in.Ping)

	_, err = c.Decode([]byte(`{"type":"subscribe"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	out := c.Encode(in, format.PlatformResponse{Text: "ok", Data: map[string]any{"sign": "leo"}, EndSession: true})
	wr, ok := out.(WebResponse)
	require.True(t, ok)
	assert.Equal(t, TypeResponse, wr.Type)
	assert.Equal(t, "leo", wr.Data["sign"])
	assert.True(t, wr.EndSession)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []string{"alice", "marusya", "web"}, r.Names())

	c, err := r.Lookup(domain.PlatformMarusya)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformMarusya, c.Name())

	_, err = r.Lookup("telegram")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}
