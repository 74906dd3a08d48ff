// Package nlu turns raw utterance text into an intent and a set of entities.
package nlu

import (
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ashureev/astrovoice/internal/domain"
)

// DefaultCacheSize bounds the memoisation cache when no size is configured.
const DefaultCacheSize = 1024

type cached struct {
	match    domain.IntentMatch
	entities domain.EntitySet
}

// Extractor classifies utterances. It is safe for concurrent use.
type Extractor struct {
	cache  *lru.Cache[uint64, cached]
	logger *slog.Logger
}

// NewExtractor creates an extractor with a bounded memoisation cache.
func NewExtractor(cacheSize int, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, cached](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extractor cache: %w", err)
	}
	return &Extractor{cache: cache, logger: logger.With("component", "nlu")}, nil
}

// Extract returns the intent and entities for text. It never fails: input that
// matches no rule yields IntentUnknown with whatever entities were found.
func (e *Extractor) Extract(text string, sc *domain.SessionContext) (m domain.IntentMatch, es domain.EntitySet) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extractor panic", "panic", r)
			m, es = domain.UnknownMatch(), domain.NewEntitySet()
		}
	}()

	normalized := Normalize(text)
	if normalized == "" {
		return domain.UnknownMatch(), domain.NewEntitySet()
	}

	m, es = e.lookup(normalized)
	return enrich(m, es, sc), es
}

// lookup serves the context-free part of extraction from the cache. Peek is
// used instead of Get so hits never refresh recency and eviction stays in
// insertion order.
func (e *Extractor) lookup(normalized string) (domain.IntentMatch, domain.EntitySet) {
	key := xxhash.Sum64String(normalized)
	if c, ok := e.cache.Peek(key); ok {
		m := c.match
		if m.Intent.IsKnown() {
			m.Basis = domain.BasisCache
		}
		return m, c.entities.Clone()
	}

	m, _ := match(normalized)
	es := extractEntities(normalized, m.Intent)
	e.cache.Add(key, cached{match: m, entities: es.Clone()})
	return m, es
}

// enrich resolves an unknown utterance against an awaiting session: data that
// answers the pending question continues the pending intent.
func enrich(m domain.IntentMatch, es domain.EntitySet, sc *domain.SessionContext) domain.IntentMatch {
	if m.Intent.IsKnown() || sc == nil || !sc.State.IsAwaiting() || !sc.PendingIntent.IsKnown() {
		return m
	}
	answers := false
	switch sc.State {
	case domain.StateAwaitingSign, domain.StateAwaitingPartnerSign:
		answers = es.Has(domain.EntitySign)
	case domain.StateAwaitingBirthData:
		answers = es.Has(domain.EntityDate)
	}
	if !answers {
		return m
	}
	return domain.IntentMatch{
		Intent:     sc.PendingIntent,
		Confidence: 0.6,
		Basis:      domain.BasisContext,
	}
}

// Len reports how many utterances are memoised.
func (e *Extractor) Len() int {
	return e.cache.Len()
}
