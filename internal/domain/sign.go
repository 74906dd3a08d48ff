package domain

import (
	"math"
	"time"
)

// Element is the classical element of a zodiac sign.
type Element string

const (
	ElementFire  Element = "fire"
	ElementEarth Element = "earth"
	ElementAir   Element = "air"
	ElementWater Element = "water"
)

// Sign describes one tropical zodiac sign.
type Sign struct {
	ID       string
	Name     string // nominative, e.g. "Лев"
	Genitive string // e.g. "Льва"
	Glyph    string
	Element  Element
	// Start is the first day of the sign as month*100+day.
	Start int
}

// Signs are ordered by ecliptic longitude starting at 0° Aries.
var Signs = []Sign{
	{ID: "aries", Name: "Овен", Genitive: "Овна", Glyph: "♈", Element: ElementFire, Start: 321},
	{ID: "taurus", Name: "Телец", Genitive: "Тельца", Glyph: "♉", Element: ElementEarth, Start: 420},
	{ID: "gemini", Name: "Близнецы", Genitive: "Близнецов", Glyph: "♊", Element: ElementAir, Start: 521},
	{ID: "cancer", Name: "Рак", Genitive: "Рака", Glyph: "♋", Element: ElementWater, Start: 621},
	{ID: "leo", Name: "Лев", Genitive: "Льва", Glyph: "♌", Element: ElementFire, Start: 723},
	{ID: "virgo", Name: "Дева", Genitive: "Девы", Glyph: "♍", Element: ElementEarth, Start: 823},
	{ID: "libra", Name: "Весы", Genitive: "Весов", Glyph: "♎", Element: ElementAir, Start: 923},
	{ID: "scorpio", Name: "Скорпион", Genitive: "Скорпиона", Glyph: "♏", Element: ElementWater, Start: 1023},
	{ID: "sagittarius", Name: "Стрелец", Genitive: "Стрельца", Glyph: "♐", Element: ElementFire, Start: 1122},
	{ID: "capricorn", Name: "Козерог", Genitive: "Козерога", Glyph: "♑", Element: ElementEarth, Start: 1222},
	{ID: "aquarius", Name: "Водолей", Genitive: "Водолея", Glyph: "♒", Element: ElementAir, Start: 120},
	{ID: "pisces", Name: "Рыбы", Genitive: "Рыб", Glyph: "♓", Element: ElementWater, Start: 219},
}

var signsByID = func() map[string]Sign {
	m := make(map[string]Sign, len(Signs))
	for _, s := range Signs {
		m[s.ID] = s
	}
	return m
}()

// SignByID looks up a sign by its canonical id.
func SignByID(id string) (Sign, bool) {
	s, ok := signsByID[id]
	return s, ok
}

// SignName returns the Russian name for id, or id itself when unknown.
func SignName(id string) string {
	if s, ok := signsByID[id]; ok {
		return s.Name
	}
	return id
}

// SignFromDate returns the sun sign for a calendar date.
func SignFromDate(t time.Time) Sign {
	md := int(t.Month())*100 + t.Day()
	// Capricorn wraps the year boundary.
	if md >= 1222 || md < 120 {
		return signsByID["capricorn"]
	}
	var best Sign
	for _, s := range Signs {
		if s.ID == "capricorn" {
			continue
		}
		if s.Start <= md && s.Start > best.Start {
			best = s
		}
	}
	return best
}

// SignFromLongitude maps an ecliptic longitude in degrees to a sign.
func SignFromLongitude(deg float64) Sign {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return Signs[int(deg/30)%12]
}
