package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"

	"github.com/ashureev/astrovoice/internal/rpc"
)

const consultMethod = "/astro.v1.Advisor/Consult"

// GrpcClient calls the advisor service over gRPC.
type GrpcClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrpcClient creates a client for the advisor at addr. Every call is
// bounded by timeout in addition to the caller's context.
func NewGrpcClient(addr string, timeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := rpc.Dial(rpc.DefaultConfig(addr), opts...)
	if err != nil {
		return nil, fmt.Errorf("advisor at %s: %w", addr, err)
	}

	logger.Info("advisor client configured", "address", addr, "timeout", timeout)

	return &GrpcClient{conn: conn, timeout: timeout, logger: logger}, nil
}

// Consult implements Advisor.
func (c *GrpcClient) Consult(ctx context.Context, q Question) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := map[string]any{
		"question": q.Text,
		"kind":     string(q.Kind),
	}
	if q.Sign != "" {
		req["sign"] = q.Sign
	}
	if q.Period != "" {
		req["period"] = q.Period
	}
	if q.UserID != "" {
		req["user_id"] = q.UserID
	}

	start := time.Now()
	out, err := rpc.Invoke(ctx, c.conn, consultMethod, req)
	if err != nil {
		return "", fmt.Errorf("consult: %w", err)
	}

	answer := strings.TrimSpace(out.GetFields()["answer"].GetStringValue())
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	c.logger.DebugContext(ctx, "advisor answered",
		"kind", q.Kind,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close advisor connection", "error", err)
		}
	}
}
