package calc

// PlanetPosition is one body on the ecliptic.
type PlanetPosition struct {
	Name       string  `json:"name"`
	Longitude  float64 `json:"longitude"`
	Sign       string  `json:"sign"`
	Retrograde bool    `json:"retrograde,omitempty"`
}

// Aspect is an angular relation between two bodies.
type Aspect struct {
	A    string  `json:"a"`
	B    string  `json:"b"`
	Type string  `json:"type"`
	Orb  float64 `json:"orb"`
}

// Moon phase names.
const (
	PhaseNew            = "new"
	PhaseWaxingCrescent = "waxing_crescent"
	PhaseFirstQuarter   = "first_quarter"
	PhaseWaxingGibbous  = "waxing_gibbous"
	PhaseFull           = "full"
	PhaseWaningGibbous  = "waning_gibbous"
	PhaseLastQuarter    = "last_quarter"
	PhaseWaningCrescent = "waning_crescent"
)

// MoonInfo describes the lunar day.
type MoonInfo struct {
	Phase        string  `json:"phase"`
	Day          int     `json:"day"`
	Illumination float64 `json:"illumination"`
	Sign         string  `json:"sign,omitempty"`
}

// Payload is the structured result of a calculation. Fields not relevant to
// the operation are left empty.
type Payload struct {
	Text       string           `json:"text,omitempty"`
	Score      int              `json:"score,omitempty"`
	Sun        string           `json:"sun,omitempty"`
	Moon       string           `json:"moon,omitempty"`
	Ascendant  string           `json:"ascendant,omitempty"`
	Planets    []PlanetPosition `json:"planets,omitempty"`
	Lunar      *MoonInfo        `json:"lunar,omitempty"`
	Aspects    []Aspect         `json:"aspects,omitempty"`
	Highlights []string         `json:"highlights,omitempty"`
}

// Result is a successful calculation tagged with the backend that produced it.
// Payload is shared with the cache and must be treated as read-only.
type Result struct {
	Kind    OperationKind
	Backend string
	Payload *Payload
	Cached  bool
}
