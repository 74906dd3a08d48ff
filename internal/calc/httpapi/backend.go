// Package httpapi is a calculation backend for a REST horoscope service.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

const (
	// Name is the backend name used in configuration.
	Name = "httpapi"

	retryDelay  = 50 * time.Millisecond
	maxBodySize = 1 << 20
)

// Backend fetches calculations over HTTP.
type Backend struct {
	baseURL    string
	apiKey     string
	kinds      calc.KindSet
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Backend for the service at baseURL. Per-call deadlines come
// from the request context.
func New(baseURL, apiKey string, kinds []string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		kinds:      calc.NewKindSet(kinds...),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.With("adapter", "httpapi"),
	}
}

func (b *Backend) Name() string { return Name }

// Supports implements calc.Backend.
func (b *Backend) Supports(kind calc.OperationKind) bool { return b.kinds.Has(kind) }

// Available implements calc.Backend with GET {base}/health.
func (b *Backend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return resp.StatusCode == http.StatusOK
}

// Execute implements calc.Backend with GET {base}/v1/{kind}.
func (b *Backend) Execute(ctx context.Context, creq calc.Request) (*calc.Payload, error) {
	reqURL := b.baseURL + "/v1/" + url.PathEscape(string(creq.Kind)) + "?" + encodeQuery(creq)

	b.log.DebugContext(ctx, "httpapi request", slog.String("kind", string(creq.Kind)))

	resp, err := b.doWithRetry(ctx, reqURL, creq.Kind)
	if err != nil {
		return nil, fmt.Errorf("httpapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpapi: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("httpapi: read body: %w", err)
	}

	var p calc.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("httpapi: decode json: %w", err)
	}
	return &p, nil
}

func (b *Backend) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-API-Key", b.apiKey)
	}
	return req, nil
}

// doWithRetry executes the request with a single retry on 5xx or network errors.
func (b *Backend) doWithRetry(ctx context.Context, reqURL string, kind calc.OperationKind) (*http.Response, error) {
	req, err := b.newRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry {
		return resp, err
	}

	// Don't retry if context is already cancelled.
	if ctx.Err() != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ctx.Err()
	}

	reason := "network error"
	if err == nil && resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	b.log.WarnContext(ctx, "httpapi retry", slog.String("kind", string(kind)), slog.String("reason", reason))

	// Close body from the failed attempt before retrying.
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	req, err = b.newRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return b.httpClient.Do(req)
}

func encodeQuery(r calc.Request) string {
	q := url.Values{}
	if r.Sign != "" {
		q.Set("sign", r.Sign)
	}
	if r.PartnerSign != "" {
		q.Set("partner", r.PartnerSign)
	}
	if !r.Date.IsZero() {
		q.Set("date", r.Date.Format(domain.DateLayout))
	}
	if r.Time != "" {
		q.Set("time", r.Time)
	}
	if r.Period != "" {
		q.Set("period", r.Period)
	}
	if r.Latitude != 0 || r.Longitude != 0 {
		q.Set("lat", strconv.FormatFloat(r.Latitude, 'f', 4, 64))
		q.Set("lon", strconv.FormatFloat(r.Longitude, 'f', 4, 64))
	}
	keys := make([]string, 0, len(r.Options))
	for k := range r.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set("opt."+k, r.Options[k])
	}
	return q.Encode()
}
