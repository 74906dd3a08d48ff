package builtin

import (
	"math"
	"time"

	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

// j2000 is 2000-01-01 12:00 UTC, the epoch of the mean elements below.
var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// referenceNewMoon is the new moon of 2000-01-06 18:14 UTC.
var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

const (
	synodicMonth = 29.530588853 // days
	obliquity    = 23.4393      // degrees
)

// meanElement is a linear approximation of ecliptic longitude:
// L = L0 + rate*d, with d days since j2000.
type meanElement struct {
	name string
	l0   float64
	rate float64
}

var planets = []meanElement{
	{"sun", 280.460, 0.9856474},
	{"moon", 218.316, 13.176396},
	{"mercury", 252.251, 4.092339},
	{"venus", 181.980, 1.602131},
	{"mars", 355.433, 0.524071},
	{"jupiter", 34.351, 0.083086},
	{"saturn", 50.077, 0.033459},
}

func daysSinceJ2000(t time.Time) float64 {
	return t.UTC().Sub(j2000).Hours() / 24
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

func longitude(e meanElement, t time.Time) float64 {
	return normDeg(e.l0 + e.rate*daysSinceJ2000(t))
}

func positions(t time.Time) []calc.PlanetPosition {
	out := make([]calc.PlanetPosition, 0, len(planets))
	for _, p := range planets {
		lon := longitude(p, t)
		out = append(out, calc.PlanetPosition{
			Name:      p.name,
			Longitude: math.Round(lon*100) / 100,
			Sign:      domain.SignFromLongitude(lon).ID,
		})
	}
	return out
}

func moonInfo(t time.Time) *calc.MoonInfo {
	age := math.Mod(t.UTC().Sub(referenceNewMoon).Hours()/24, synodicMonth)
	if age < 0 {
		age += synodicMonth
	}
	frac := age / synodicMonth
	phases := []string{
		calc.PhaseNew, calc.PhaseWaxingCrescent, calc.PhaseFirstQuarter, calc.PhaseWaxingGibbous,
		calc.PhaseFull, calc.PhaseWaningGibbous, calc.PhaseLastQuarter, calc.PhaseWaningCrescent,
	}
	illum := (1 - math.Cos(2*math.Pi*frac)) / 2
	return &calc.MoonInfo{
		Phase:        phases[int(frac*8+0.5)%8],
		Day:          int(age) + 1,
		Illumination: math.Round(illum*100) / 100,
		Sign:         domain.SignFromLongitude(longitude(planets[1], t)).ID,
	}
}

// ascendant approximates the rising degree from local sidereal time.
func ascendant(t time.Time, lat, lon float64) float64 {
	d := daysSinceJ2000(t)
	ut := float64(t.UTC().Hour()) + float64(t.UTC().Minute())/60
	ramc := normDeg(100.46 + 0.985647*d + lon + 15*ut)

	r := ramc * math.Pi / 180
	eps := obliquity * math.Pi / 180
	phi := lat * math.Pi / 180
	asc := math.Atan2(math.Cos(r), -(math.Sin(r)*math.Cos(eps) + math.Tan(phi)*math.Sin(eps)))
	return normDeg(asc * 180 / math.Pi)
}

var aspectKinds = []struct {
	name  string
	angle float64
	orb   float64
}{
	{"conjunction", 0, 8},
	{"sextile", 60, 4},
	{"square", 90, 6},
	{"trine", 120, 6},
	{"opposition", 180, 8},
}

func aspects(ps []calc.PlanetPosition) []calc.Aspect {
	var out []calc.Aspect
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			sep := math.Abs(ps[i].Longitude - ps[j].Longitude)
			if sep > 180 {
				sep = 360 - sep
			}
			for _, k := range aspectKinds {
				if orb := math.Abs(sep - k.angle); orb <= k.orb {
					out = append(out, calc.Aspect{A: ps[i].Name, B: ps[j].Name, Type: k.name, Orb: math.Round(orb*10) / 10})
					break
				}
			}
		}
	}
	return out
}

// compatibilityScore rates two signs by their elements.
func compatibilityScore(a, b domain.Sign) int {
	if a.ID == b.ID {
		return 75
	}
	if a.Element == b.Element {
		return 90
	}
	pair := map[domain.Element]domain.Element{
		domain.ElementFire:  domain.ElementAir,
		domain.ElementAir:   domain.ElementFire,
		domain.ElementEarth: domain.ElementWater,
		domain.ElementWater: domain.ElementEarth,
	}
	if pair[a.Element] == b.Element {
		return 80
	}
	// Opposite temperaments: fire-water and air-earth clash most.
	if (a.Element == domain.ElementFire && b.Element == domain.ElementWater) ||
		(a.Element == domain.ElementWater && b.Element == domain.ElementFire) ||
		(a.Element == domain.ElementAir && b.Element == domain.ElementEarth) ||
		(a.Element == domain.ElementEarth && b.Element == domain.ElementAir) {
		return 45
	}
	return 60
}
