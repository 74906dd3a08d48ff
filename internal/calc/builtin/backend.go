// Package builtin is an in-process approximate calculation backend. It uses
// mean orbital elements and is always available, so it usually sits last in
// the gateway chain.
package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

// Name is the backend name used in configuration.
const Name = "builtin"

// Backend implements calc.Backend.
type Backend struct{}

// New returns the built-in backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return Name }

// Supports implements calc.Backend; every kind is supported.
func (b *Backend) Supports(calc.OperationKind) bool { return true }

// Available implements calc.Backend.
func (b *Backend) Available(context.Context) bool { return true }

// Execute implements calc.Backend.
func (b *Backend) Execute(ctx context.Context, req calc.Request) (*calc.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch req.Kind {
	case calc.KindHoroscope:
		return horoscope(req)
	case calc.KindCompatibility:
		return compatibility(req)
	case calc.KindNatalChart:
		return natal(req)
	case calc.KindTransits:
		return transits(req), nil
	case calc.KindLunarCalendar:
		return &calc.Payload{Lunar: moonInfo(middayOf(req.Date))}, nil
	default:
		return nil, fmt.Errorf("builtin: unsupported kind %q", req.Kind)
	}
}

func signOf(id string) (domain.Sign, error) {
	s, ok := domain.SignByID(id)
	if !ok {
		return domain.Sign{}, fmt.Errorf("builtin: unknown sign %q", id)
	}
	return s, nil
}

// middayOf places day-based dates at noon so the mean positions describe the day.
func middayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func horoscope(req calc.Request) (*calc.Payload, error) {
	sign, err := signOf(req.Sign)
	if err != nil {
		return nil, err
	}
	day := req.Date.Format(domain.DateLayout)
	return &calc.Payload{
		Text: horoscopeText(sign, day, req.Period),
		Sun:  sign.ID,
	}, nil
}

func compatibility(req calc.Request) (*calc.Payload, error) {
	a, err := signOf(req.Sign)
	if err != nil {
		return nil, err
	}
	b, err := signOf(req.PartnerSign)
	if err != nil {
		return nil, err
	}
	score := compatibilityScore(a, b)
	return &calc.Payload{
		Score: score,
		Text:  compatNotes[score],
		Highlights: []string{
			string(a.Element),
			string(b.Element),
		},
	}, nil
}

// natal needs a birth date; year 0 means the year is unknown and only the
// sun sign can be given.
func natal(req calc.Request) (*calc.Payload, error) {
	birth := middayOf(req.Date)
	hasTime := false
	if hh, mm, ok := parseClock(req.Time); ok {
		y, m, d := req.Date.UTC().Date()
		birth = time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
		hasTime = true
	}

	sun := domain.SignFromDate(birth)
	p := &calc.Payload{Sun: sun.ID}
	if birth.Year() == 0 {
		return p, nil
	}

	ps := positions(birth)
	p.Planets = ps
	p.Moon = ps[1].Sign
	p.Aspects = aspects(ps)
	if hasTime && (req.Latitude != 0 || req.Longitude != 0) {
		p.Ascendant = domain.SignFromLongitude(ascendant(birth, req.Latitude, req.Longitude)).ID
	}
	return p, nil
}

func transits(req calc.Request) *calc.Payload {
	ps := positions(req.Date)
	p := &calc.Payload{Planets: ps, Aspects: aspects(ps)}
	for _, a := range p.Aspects {
		p.Highlights = append(p.Highlights, a.A+" "+a.Type+" "+a.B)
	}
	return p
}

func parseClock(s string) (int, int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
