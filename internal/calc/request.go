// Package calc exposes astrological calculations through an ordered chain of
// interchangeable backends.
package calc

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// OperationKind names a calculation.
type OperationKind string

const (
	KindHoroscope     OperationKind = "horoscope"
	KindCompatibility OperationKind = "compatibility"
	KindNatalChart    OperationKind = "natal_chart"
	KindTransits      OperationKind = "transits"
	KindLunarCalendar OperationKind = "lunar_calendar"
)

// Kinds lists every operation kind.
var Kinds = []OperationKind{KindHoroscope, KindCompatibility, KindNatalChart, KindTransits, KindLunarCalendar}

// ParseKind returns the kind named s.
func ParseKind(s string) (OperationKind, bool) {
	k := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// dayBased kinds depend on the calendar day only.
func (k OperationKind) dayBased() bool {
	switch k {
	case KindHoroscope, KindLunarCalendar, KindNatalChart:
		return true
	}
	return false
}

// Request names an operation and its parameters.
type Request struct {
	Kind        OperationKind     `json:"kind"`
	Sign        string            `json:"sign,omitempty"`
	PartnerSign string            `json:"partner_sign,omitempty"`
	Date        time.Time         `json:"date"`
	Time        string            `json:"time,omitempty"`
	Latitude    float64           `json:"lat,omitempty"`
	Longitude   float64           `json:"lon,omitempty"`
	Period      string            `json:"period,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

// Normalize returns the canonical form of r. A zero Date becomes now; dates
// of day-based kinds are truncated to the UTC day and transits to the minute.
// Compatibility is symmetric, so its signs are ordered.
func (r Request) Normalize(now time.Time) Request {
	out := r
	out.Kind = OperationKind(strings.ToLower(string(r.Kind)))
	out.Sign = strings.ToLower(strings.TrimSpace(r.Sign))
	out.PartnerSign = strings.ToLower(strings.TrimSpace(r.PartnerSign))
	out.Period = strings.ToLower(strings.TrimSpace(r.Period))
	out.Time = strings.TrimSpace(r.Time)

	if out.Date.IsZero() {
		out.Date = now
	}
	out.Date = out.Date.UTC()
	switch {
	case out.Kind.dayBased():
		out.Date = out.Date.Truncate(24 * time.Hour)
	case out.Kind == KindTransits:
		out.Date = out.Date.Truncate(time.Minute)
	case out.Kind == KindCompatibility:
		out.Date = time.Time{}
	}

	if out.Kind == KindCompatibility && out.PartnerSign != "" && out.PartnerSign < out.Sign {
		out.Sign, out.PartnerSign = out.PartnerSign, out.Sign
	}

	if len(r.Options) > 0 {
		out.Options = make(map[string]string, len(r.Options))
		for k, v := range r.Options {
			out.Options[strings.ToLower(k)] = v
		}
	} else {
		out.Options = nil
	}
	return out
}

// CacheKey hashes the canonical JSON of an already normalised request.
// encoding/json writes map keys sorted, so option order does not matter.
func (r Request) CacheKey() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(r.Kind) + ":" + strconv.FormatUint(xxhash.Sum64(b), 16)
}
