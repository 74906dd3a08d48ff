// Package platform translates the wire schemas of voice platforms and the
// web channel to utterances and back.
package platform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ashureev/astrovoice/internal/domain"
	"github.com/ashureev/astrovoice/internal/format"
)

// ErrMalformed is returned for payloads that cannot be decoded.
var ErrMalformed = errors.New("malformed platform payload")

// Inbound is a decoded platform request.
type Inbound struct {
	Utterance domain.Utterance
	// Ping marks a platform liveness check that must be answered directly.
	Ping bool

	// Echoed back to the platform in the response envelope.
	MessageID int
	Version   string
}

// Codec decodes requests and encodes responses for one platform.
type Codec interface {
	Name() string
	Decode(data []byte) (*Inbound, error)
	// Encode returns the JSON-serialisable response envelope.
	Encode(in *Inbound, out format.PlatformResponse) any
}

// Registry looks codecs up by platform name.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry with the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[c.Name()] = c
	}
	return r
}

// DefaultRegistry holds the Alice, Marusya and web codecs.
func DefaultRegistry() *Registry {
	return NewRegistry(NewDialogs(domain.PlatformAlice), NewDialogs(domain.PlatformMarusya), NewWeb())
}

// Lookup returns the codec for name.
func (r *Registry) Lookup(name string) (Codec, error) {
	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, name)
	}
	return c, nil
}

// Names returns registered platform names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
