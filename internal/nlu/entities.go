package nlu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/astrovoice/internal/domain"
)

// signForms maps every recognised word form to a canonical sign id.
var signForms = func() map[string]string {
	forms := map[string][]string{
		"aries":       {"овен", "овна", "овну", "овном", "овне", "овны", "овнов", "овнам", "aries"},
		"taurus":      {"телец", "тельца", "тельцу", "тельцом", "тельце", "тельцы", "тельцов", "taurus"},
		"gemini":      {"близнецы", "близнецов", "близнецам", "близнецами", "близнецах", "близнец", "близнеца", "gemini"},
		"cancer":      {"рак", "рака", "раку", "раком", "раке", "раки", "раков", "cancer"},
		"leo":         {"лев", "льва", "льву", "львом", "льве", "львы", "львов", "львица", "львицы", "leo"},
		"virgo":       {"дева", "девы", "деве", "деву", "девой", "дев", "virgo"},
		"libra":       {"весы", "весов", "весам", "весами", "весах", "libra"},
		"scorpio":     {"скорпион", "скорпиона", "скорпиону", "скорпионом", "скорпионе", "скорпионы", "скорпионов", "scorpio"},
		"sagittarius": {"стрелец", "стрельца", "стрельцу", "стрельцом", "стрельце", "стрельцы", "стрельцов", "sagittarius"},
		"capricorn":   {"козерог", "козерога", "козерогу", "козерогом", "козероге", "козероги", "козерогов", "capricorn"},
		"aquarius":    {"водолей", "водолея", "водолею", "водолеем", "водолее", "водолеи", "водолеев", "aquarius"},
		"pisces":      {"рыбы", "рыб", "рыбам", "рыбами", "рыбах", "рыба", "pisces"},
	}
	out := make(map[string]string)
	for id, ws := range forms {
		for _, w := range ws {
			out[w] = id
		}
	}
	return out
}()

var months = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

var (
	reISODate     = regexp.MustCompile(`(?:^| )(\d{4})-(\d{1,2})-(\d{1,2})(?: |$)`)
	reNumericDate = regexp.MustCompile(`(?:^| )(\d{1,2})[./](\d{1,2})(?:[./](\d{2}|\d{4}))?(?: |$)`)
	reWordDate    = regexp.MustCompile(`(?:^| )(\d{1,2}) (января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)(?: (\d{4}))?`)
	reClock       = regexp.MustCompile(`(?:^| )(\d{1,2}):(\d{2})(?: |$)`)
	reSpokenTime  = regexp.MustCompile(`(?:^| )в (\d{1,2})(?: час| часа| часов)? (утра|дня|вечера|ночи)`)

	rePeriodWeek  = regexp.MustCompile(`(?:^| )недел`)
	rePeriodMonth = regexp.MustCompile(`(?:^| )месяц`)
	rePeriodYear  = regexp.MustCompile(`(?:^| )(?:на|этот|весь|текущий|следующий|в этом|на этот|на следующий) год`)

	reQuestion = regexp.MustCompile(`^(?:как|что|почему|зачем|когда|где|стоит ли|можно ли|будет ли|ждет ли|правда ли)(?: |$)`)
)

var positiveWords = map[string]bool{
	"хорошо": true, "отлично": true, "рад": true, "рада": true, "счастлив": true,
	"счастлива": true, "люблю": true, "нравится": true, "супер": true, "здорово": true,
	"спасибо": true, "прекрасно": true, "замечательно": true, "класс": true,
}

var negativeWords = map[string]bool{
	"плохо": true, "грустно": true, "устал": true, "устала": true, "ужасно": true,
	"тревожно": true, "боюсь": true, "грусть": true, "одиноко": true, "злюсь": true,
	"страшно": true, "тоскливо": true, "обидно": true, "неудачи": true,
}

// extractEntities finds entities in normalised text. It does not look at the
// session, so its result depends only on s.
func extractEntities(s string, intent domain.Intent) domain.EntitySet {
	es := domain.NewEntitySet()
	words := strings.Fields(s)

	var signs []string
	for _, w := range words {
		if id, ok := signForms[w]; ok {
			signs = append(signs, id)
		}
	}
	if len(signs) > 0 {
		es.Set(domain.EntitySign, signs[0])
	}
	if len(signs) > 1 {
		es.Set(domain.EntityPartnerSign, signs[1])
	}

	if d := extractDate(s); d != "" {
		es.Set(domain.EntityDate, d)
		if _, ok := es[domain.EntitySign]; !ok {
			if sign, ok := signFromDateValue(d); ok {
				es.SetWith(domain.EntitySign, sign, domain.ProvenanceDefault)
			}
		}
	}
	if t := extractTime(s); t != "" {
		es.Set(domain.EntityTime, t)
	}
	if p := extractPeriod(s, words); p != "" {
		es.Set(domain.EntityPeriod, p)
	}
	if sent := extractSentiment(words); sent != "" {
		es.Set(domain.EntitySentiment, sent)
	}
	if intent == domain.IntentAIConsult || intent == domain.IntentAIForecast || reQuestion.MatchString(s) {
		es.Set(domain.EntityQuestion, s)
	}
	return es
}

// extractDate returns a date as YYYY-MM-DD, or 0000-MM-DD when the year was
// not spoken. Invalid calendar dates are ignored.
func extractDate(s string) string {
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := reNumericDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := reWordDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], strconv.Itoa(int(months[m[2]])), m[1])
	}
	return ""
}

func buildDate(year, month, day string) string {
	y := 0
	if year != "" {
		y, _ = strconv.Atoi(year)
		if len(year) == 2 {
			if y <= 30 {
				y += 2000
			} else {
				y += 1900
			}
		}
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return ""
	}
	// Validate against a leap year when the year is unknown so 29.02 passes.
	checkYear := y
	if checkYear == 0 {
		checkYear = 2000
	}
	t := time.Date(checkYear, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
}

func signFromDateValue(v string) (string, bool) {
	if len(v) != len(domain.DateLayout) {
		return "", false
	}
	mo, err1 := strconv.Atoi(v[5:7])
	d, err2 := strconv.Atoi(v[8:10])
	if err1 != nil || err2 != nil {
		return "", false
	}
	return domain.SignFromDate(time.Date(2000, time.Month(mo), d, 0, 0, 0, 0, time.UTC)).ID, true
}

func extractTime(s string) string {
	if m := reClock.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		if h < 24 && mi < 60 {
			return fmt.Sprintf("%02d:%02d", h, mi)
		}
	}
	if m := reSpokenTime.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h < 1 || h > 12 {
			return ""
		}
		switch m[2] {
		case "утра":
			if h == 12 {
				h = 0
			}
		case "дня", "вечера":
			if h < 12 {
				h += 12
			}
		case "ночи":
			if h == 12 {
				h = 0
			}
		}
		return fmt.Sprintf("%02d:00", h)
	}
	return ""
}

func extractPeriod(s string, words []string) string {
	for _, w := range words {
		switch w {
		case "сегодня", "сегодняшний", "сейчас":
			return domain.PeriodToday
		case "завтра", "завтрашний":
			return domain.PeriodTomorrow
		case "вчера", "вчерашний":
			return domain.PeriodYesterday
		}
	}
	switch {
	case rePeriodWeek.MatchString(s):
		return domain.PeriodWeek
	case rePeriodMonth.MatchString(s):
		return domain.PeriodMonth
	case rePeriodYear.MatchString(s):
		return domain.PeriodYear
	}
	return ""
}

func extractSentiment(words []string) string {
	pos, neg := 0, 0
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos == 0 && neg == 0:
		return ""
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
