package domain

// EntityKind names a structured value extracted from free text.
type EntityKind string

const (
	EntitySign        EntityKind = "sign"
	EntityPartnerSign EntityKind = "partner_sign"
	EntityDate        EntityKind = "date"
	EntityTime        EntityKind = "time"
	EntityPeriod      EntityKind = "period"
	EntitySentiment   EntityKind = "sentiment"
	EntityQuestion    EntityKind = "question"
)

// Provenance tells where an entity value came from.
type Provenance string

const (
	// ProvenanceExplicit marks values present in the current utterance.
	ProvenanceExplicit Provenance = "explicit"
	// ProvenanceContext marks values remembered by the session.
	ProvenanceContext Provenance = "context"
	// ProvenanceDefault marks values filled in by a handler default.
	ProvenanceDefault Provenance = "default"
)

// Date and time layouts used for entity values.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Period values.
const (
	PeriodToday     = "today"
	PeriodTomorrow  = "tomorrow"
	PeriodYesterday = "yesterday"
	PeriodWeek      = "week"
	PeriodMonth     = "month"
	PeriodYear      = "year"
)

// Sentiment values.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Entity is one extracted value with its provenance.
type Entity struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// EntitySet maps entity kinds to values. A nil set is valid and empty.
type EntitySet map[EntityKind]Entity

// NewEntitySet returns an empty set.
func NewEntitySet() EntitySet {
	return make(EntitySet)
}

// Get returns the value for kind, or "" when absent.
func (s EntitySet) Get(kind EntityKind) string {
	return s[kind].Value
}

// Has reports whether kind carries a non-empty value.
func (s EntitySet) Has(kind EntityKind) bool {
	return s[kind].Value != ""
}

// Set stores an explicit value. Empty values are ignored.
func (s EntitySet) Set(kind EntityKind, value string) {
	s.SetWith(kind, value, ProvenanceExplicit)
}

// SetWith stores a value with the given provenance. Empty values are ignored.
func (s EntitySet) SetWith(kind EntityKind, value string, p Provenance) {
	if value == "" {
		return
	}
	s[kind] = Entity{Value: value, Provenance: p}
}

// Clone returns an independent copy of the set.
func (s EntitySet) Clone() EntitySet {
	out := make(EntitySet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a new set where entries of override win over entries of s.
func (s EntitySet) Merge(override EntitySet) EntitySet {
	out := s.Clone()
	for k, v := range override {
		if v.Value != "" {
			out[k] = v
		}
	}
	return out
}
