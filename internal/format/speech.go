package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/astrovoice/internal/domain"
)

var glyphNames = func() map[rune]string {
	m := map[rune]string{
		'☉': "Солнце",
		'☽': "Луна",
		'☾': "Луна",
		'☿': "Меркурий",
		'♀': "Венера",
		'♂': "Марс",
		'♃': "Юпитер",
		'♄': "Сатурн",
		'♅': "Уран",
		'♆': "Нептун",
		'♇': "Плутон",
	}
	for _, s := range domain.Signs {
		r, _ := utf8.DecodeRuneInString(s.Glyph)
		m[r] = s.Name
	}
	return m
}()

// transliterate spells astrological glyphs as words.
func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if name, ok := glyphNames[r]; ok {
			b.WriteByte(' ')
			b.WriteString(name)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// unspeakable reports runes a speech engine should not read.
func unspeakable(r rune) bool {
	switch {
	case r == '\u200d', r == '\ufeff':
		return true
	case r >= '\ufe00' && r <= '\ufe0f':
		return true
	case r == '*', r == '_', r == '#', r == '~', r == '`', r == '|', r == '<', r == '>':
		return true
	}
	return unicode.In(r, unicode.So, unicode.Sk, unicode.Cs, unicode.Co) ||
		(unicode.IsControl(r) && !unicode.IsSpace(r))
}

func stripSymbols(s string) string {
	return strings.Map(func(r rune) rune {
		if unspeakable(r) {
			return ' '
		}
		return r
	}, s)
}

// Speech turns display text into speech text of at most limit runes, with
// marker inserted after clause boundaries while the budget allows.
func Speech(text string, limit int, marker string) string {
	plain := collapseSpaces(stripSymbols(transliterate(text)))
	plain = tidyPunctuation(plain)
	plain = Truncate(plain, limit)
	if marker == "" {
		return plain
	}

	budget := -1
	if limit > 0 {
		budget = limit - utf8.RuneCountInString(plain)
	}
	cost := utf8.RuneCountInString(marker) + 1

	runes := []rune(plain)
	var b strings.Builder
	b.Grow(len(plain) + 8*len(marker))
	for i, r := range runes {
		b.WriteRune(r)
		if !isClauseEnd(r) || i+1 >= len(runes) || runes[i+1] != ' ' {
			continue
		}
		if budget >= 0 && budget < cost {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(marker)
		if budget >= 0 {
			budget -= cost
		}
	}
	return b.String()
}

// tidyPunctuation removes spaces left before punctuation by symbol stripping.
func tidyPunctuation(s string) string {
	for _, p := range []string{" ,", " .", " !", " ?", " ;", " :"} {
		s = strings.ReplaceAll(s, p, p[1:])
	}
	return s
}
