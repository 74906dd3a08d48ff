package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
	"github.com/ashureev/astrovoice/internal/middleware"
	"github.com/ashureev/astrovoice/internal/platform"
)

const (
	textRateLimited = "Вы задаёте вопросы слишком часто. Давайте сделаем небольшую паузу и продолжим через минуту."
	textPong        = "pong"
)

// Turner answers one utterance.
type Turner interface {
	Turn(ctx context.Context, u domain.Utterance) format.PlatformResponse
}

// WebhookHandler serves POST /webhook/{platform}.
type WebhookHandler struct {
	assistant Turner
	codecs    *platform.Registry
	limiter   *middleware.RateLimiter
	deadline  time.Duration
	maxBody   int64
	logger    *slog.Logger
}

// WebhookConfig holds webhook limits.
type WebhookConfig struct {
	// TurnDeadline is the hard end-to-end budget of one turn.
	TurnDeadline time.Duration
	MaxBodySize  int64
}

// NewWebhookHandler creates the webhook handler. limiter may be nil.
func NewWebhookHandler(a Turner, codecs *platform.Registry, limiter *middleware.RateLimiter, cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 64 << 10
	}
	return &WebhookHandler{
		assistant: a,
		codecs:    codecs,
		limiter:   limiter,
		deadline:  cfg.TurnDeadline,
		maxBody:   cfg.MaxBodySize,
		logger:    logger.With("component", "webhook"),
	}
}

// RegisterRoutes registers the webhook route.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/{platform}", h.ServeWebhook)
}

// ServeWebhook decodes one platform turn, runs it under the turn deadline
// and encodes the reply. Missing the deadline is the only failure reported
// as a protocol error.
func (h *WebhookHandler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")
	codec, err := h.codecs.Lookup(name)
	if err != nil {
		Error(w, http.StatusNotFound, "unsupported platform")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	in, err := codec.Decode(body)
	if err != nil {
		h.logger.Debug("rejected webhook payload", "platform", name, "error", err)
		Error(w, http.StatusBadRequest, "malformed request")
		return
	}

	if in.Ping {
		JSON(w, http.StatusOK, codec.Encode(in, format.PlatformResponse{Text: textPong, TTS: textPong}))
		return
	}
	if in.Utterance.UserID == "" {
		Error(w, http.StatusBadRequest, "missing user id")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(name+":"+in.Utterance.UserID) {
		h.logger.Warn("turn rate limited", "platform", name, "user_id", in.Utterance.UserID)
		JSON(w, http.StatusOK, codec.Encode(in, format.PlatformResponse{Text: textRateLimited, TTS: textRateLimited}))
		return
	}

	ctx := r.Context()
	if h.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deadline)
		defer cancel()
	}

	done := make(chan format.PlatformResponse, 1)
	start := time.Now()
	go func() {
		done <- h.assistant.Turn(ctx, in.Utterance)
	}()

	select {
	case out := <-done:
		JSON(w, http.StatusOK, codec.Encode(in, out))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.logger.Error("turn deadline exceeded",
				"critical", true,
				"platform", name,
				"user_id", in.Utterance.UserID,
				"deadline", h.deadline,
				"elapsed", time.Since(start),
			)
			Error(w, http.StatusGatewayTimeout, "turn deadline exceeded")
			return
		}
		h.logger.Info("client went away before reply", "platform", name, "user_id", in.Utterance.UserID)
	}
}
