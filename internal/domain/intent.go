// Package domain contains the core conversational types shared by every layer
// of the assistant.
package domain

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentGreet         Intent = "greet"
	IntentHoroscope     Intent = "horoscope"
	IntentCompatibility Intent = "compatibility"
	IntentNatalChart    Intent = "natal_chart"
	IntentLunarCalendar Intent = "lunar_calendar"
	IntentTransits      Intent = "transits"
	IntentAdvice        Intent = "advice"
	IntentHelp          Intent = "help"
	IntentExit          Intent = "exit"
	IntentReset         Intent = "reset"
	// IntentAIConsult is a free-form question answered by the AI advisor.
	IntentAIConsult Intent = "ai_consult"
	// IntentAIForecast is a personalised, advisor-written forecast for a sign.
	IntentAIForecast Intent = "ai_forecast"
	IntentUnknown    Intent = "unknown"
)

// AllIntents lists every intent in a stable order.
var AllIntents = []Intent{
	IntentGreet, IntentHoroscope, IntentCompatibility, IntentNatalChart,
	IntentLunarCalendar, IntentTransits, IntentAdvice, IntentHelp, IntentExit,
	IntentReset, IntentAIConsult, IntentAIForecast, IntentUnknown,
}

// IsKnown reports whether the intent is anything other than unknown or empty.
func (i Intent) IsKnown() bool {
	return i != "" && i != IntentUnknown
}

// MatchBasis records how an intent was derived.
type MatchBasis string

const (
	BasisPattern MatchBasis = "pattern"
	BasisCache   MatchBasis = "cache"
	BasisContext MatchBasis = "context"
	BasisNone    MatchBasis = "none"
)

// IntentMatch is the extractor verdict for one utterance.
type IntentMatch struct {
	Intent     Intent
	Confidence float64
	Basis      MatchBasis
	// Pattern is the name of the rule that matched, empty for unknown.
	Pattern string
}

// UnknownMatch is returned when no rule matches.
func UnknownMatch() IntentMatch {
	return IntentMatch{Intent: IntentUnknown, Confidence: 0, Basis: BasisNone}
}
