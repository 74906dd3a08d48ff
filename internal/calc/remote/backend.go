// Package remote is a calculation backend backed by a gRPC ephemeris service.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/rpc"
)

const (
	// Name is the backend name used in configuration.
	Name = "remote"

	serviceName     = "astro.v1.Ephemeris"
	calculateMethod = "/astro.v1.Ephemeris/Calculate"
)

// Backend implements calc.Backend over gRPC.
type Backend struct {
	conn   *grpc.ClientConn
	kinds  calc.KindSet
	logger *slog.Logger
}

// New creates a backend for the service at addr serving the given kinds.
func New(addr string, kinds []string, logger *slog.Logger, opts ...grpc.DialOption) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := rpc.Dial(rpc.DefaultConfig(addr), opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("remote ephemeris backend configured", "address", addr, "kinds", kinds)
	return &Backend{conn: conn, kinds: calc.NewKindSet(kinds...), logger: logger}, nil
}

func (b *Backend) Name() string { return Name }

// Supports implements calc.Backend.
func (b *Backend) Supports(kind calc.OperationKind) bool { return b.kinds.Has(kind) }

// Available implements calc.Backend using the gRPC health protocol.
func (b *Backend) Available(ctx context.Context) bool {
	return rpc.Healthy(ctx, b.conn, serviceName)
}

// Execute implements calc.Backend.
func (b *Backend) Execute(ctx context.Context, req calc.Request) (*calc.Payload, error) {
	out, err := rpc.Invoke(ctx, b.conn, calculateMethod, encodeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("remote calculate: %w", err)
	}

	raw, err := protojson.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("remote calculate: encode response: %w", err)
	}
	var p calc.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("remote calculate: decode response: %w", err)
	}
	return &p, nil
}

// Close closes the connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}

func encodeRequest(req calc.Request) map[string]any {
	m := map[string]any{
		"kind": string(req.Kind),
		"date": req.Date.Format(domain.DateLayout),
	}
	if req.Sign != "" {
		m["sign"] = req.Sign
	}
	if req.PartnerSign != "" {
		m["partner_sign"] = req.PartnerSign
	}
	if req.Time != "" {
		m["time"] = req.Time
	}
	if req.Kind == calc.KindTransits {
		m["datetime"] = req.Date.Format("2006-01-02T15:04:05Z07:00")
	}
	if req.Latitude != 0 || req.Longitude != 0 {
		m["lat"] = req.Latitude
		m["lon"] = req.Longitude
	}
	if req.Period != "" {
		m["period"] = req.Period
	}
	if len(req.Options) > 0 {
		opts := make(map[string]any, len(req.Options))
		for k, v := range req.Options {
			opts[k] = v
		}
		m["options"] = opts
	}
	return m
}
