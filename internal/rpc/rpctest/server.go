// Package rpctest runs in-process gRPC servers for Struct-based services.
package rpctest

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler answers one unary Struct call.
type Handler func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// Server is an in-memory gRPC server.
type Server struct {
	Health *health.Server
	lis    *bufconn.Listener
}

// Start serves method handlers of service over an in-memory listener until
// the test ends. The health service reports SERVING for service.
func Start(t testing.TB, service string, methods map[string]Handler) *Server {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()

	desc := grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*any)(nil),
	}
	for name, h := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return h(ctx, in)
			},
		})
	}
	srv.RegisterService(&desc, struct{}{})

	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return &Server{Health: hs, lis: lis}
}

// DialOption routes a client connection to the in-memory listener. Use it
// with the target "passthrough:///bufnet".
func (s *Server) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.lis.DialContext(ctx)
	})
}

// Target is the dial target matching DialOption.
const Target = "passthrough:///bufnet"
