// Package chat serves the companion web channel over WebSocket.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
	"github.com/ashureev/astrovoice/internal/identity"
	"github.com/ashureev/astrovoice/internal/middleware"
	"github.com/ashureev/astrovoice/internal/platform"
)

const (
	writeTimeout    = 5 * time.Second
	textRateLimited = "Вы задаёте вопросы слишком часто. Давайте сделаем небольшую паузу и продолжим через минуту."
)

// Turner answers one utterance.
type Turner interface {
	Turn(ctx context.Context, u domain.Utterance) format.PlatformResponse
}

// Handler handles WebSocket chat sessions. Every text frame is one turn on
// the web platform.
type Handler struct {
	assistant     Turner
	codec         *platform.Web
	registry      *Registry
	limiter       *middleware.RateLimiter
	turnDeadline  time.Duration
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a chat handler. limiter is shared with the webhook and
// checked once per frame; it may be nil.
func NewHandler(a Turner, registry *Registry, limiter *middleware.RateLimiter, turnDeadline time.Duration, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		assistant:     a,
		codec:         platform.NewWeb(),
		registry:      registry,
		limiter:       limiter,
		turnDeadline:  turnDeadline,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger.With("component", "chat"),
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}
	h.logger.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.registry.Register(userID, sessionID, ws)
	defer h.registry.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, userID, sessionID)
	h.logger.Info("Chat session ended", "user_id", userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		typ, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		in, err := h.codec.Decode(message)
		if err != nil {
			if err := h.writeJSON(ctx, ws, platform.WebResponse{Type: platform.TypeError, Text: "malformed message"}); err != nil {
				return
			}
			continue
		}
		if in.Ping {
			if err := h.writeJSON(ctx, ws, platform.Pong()); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
				return
			}
			continue
		}

		if h.limiter != nil && !h.limiter.Allow(domain.PlatformWeb+":"+userID) {
			h.logger.Warn("Chat turn rate limited", "user_id", userID)
			limited := format.PlatformResponse{Text: textRateLimited, TTS: textRateLimited}
			if err := h.writeJSON(ctx, ws, h.codec.Encode(in, limited)); err != nil {
				return
			}
			continue
		}

		u := in.Utterance
		u.UserID = userID
		if sessionID != "" {
			u.SessionID = sessionID
		}
		u.Platform = domain.PlatformWeb

		out := h.turn(ctx, u)
		if err := h.writeJSON(ctx, ws, h.codec.Encode(in, out)); err != nil {
			h.logger.Debug("Failed to send reply", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) turn(ctx context.Context, u domain.Utterance) format.PlatformResponse {
	if h.turnDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnDeadline)
		defer cancel()
	}
	return h.assistant.Turn(ctx, u)
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
