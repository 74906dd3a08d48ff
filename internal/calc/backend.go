package calc

import "context"

// Backend is one calculation provider in the gateway chain.
type Backend interface {
	// Name identifies the backend in results and logs.
	Name() string
	// Supports reports whether the backend implements kind.
	Supports(kind OperationKind) bool
	// Available is a cheap liveness check. The gateway caches its answer.
	Available(ctx context.Context) bool
	// Execute runs the calculation. Implementations should honour ctx.
	Execute(ctx context.Context, req Request) (*Payload, error)
}

// KindSet is a helper for Supports implementations.
type KindSet map[OperationKind]bool

// NewKindSet builds a set from kind names. Unknown names are ignored.
func NewKindSet(names ...string) KindSet {
	s := make(KindSet, len(names))
	for _, n := range names {
		if k, ok := ParseKind(n); ok {
			s[k] = true
		}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k OperationKind) bool {
	return s[k]
}
