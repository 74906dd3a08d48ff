package nlu

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Russian)

// typos maps whole words produced by speech recognition to their intended form.
var typos = map[string]string{
	"гороскоб":      "гороскоп",
	"гараскоп":      "гороскоп",
	"гороском":      "гороскоп",
	"гороскопп":     "гороскоп",
	"совместимасть": "совместимость",
	"савместимость": "совместимость",
	"совместимоть":  "совместимость",
	"лево":          "лев",
	"козирог":       "козерог",
	"скарпион":      "скорпион",
	"стрилец":       "стрелец",
	"водалей":       "водолей",
	"близницы":      "близнецы",
	"натальнаю":     "натальную",
	"натальня":      "натальная",
	"каленьдарь":    "календарь",
}

// Normalize canonicalises an utterance for matching: NFC, Russian lowercase,
// ё folded to е, punctuation replaced by spaces, whitespace collapsed and
// known recognition typos fixed. Separators between digits are kept so dates
// and times survive.
func Normalize(text string) string {
	s := norm.NFC.String(text)
	s = lower.String(s)
	s = strings.ReplaceAll(s, "ё", "е")

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case isDigitSeparator(r) && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		if fixed, ok := typos[w]; ok {
			words[i] = fixed
		}
	}
	return strings.Join(words, " ")
}

func isDigitSeparator(r rune) bool {
	return r == '.' || r == ':' || r == '/' || r == '-'
}
