package nlu

import (
	"regexp"

	"github.com/ashureev/astrovoice/internal/domain"
)

// rule is one ordered intent pattern over normalised text.
type rule struct {
	name       string
	intent     domain.Intent
	confidence float64
	re         *regexp.Regexp
}

// Word boundaries are spelled out because \b does not cover Cyrillic.
const (
	lb = `(?:^| )`
	rb = `(?: |$)`
)

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{"exit", domain.IntentExit, 0.95, regexp.MustCompile(
		lb + `(?:выход|выйди|выйти|хватит|стоп|закончи|заверши|закрой)` + rb)},
	// Farewells only count as the whole utterance: "пока" also means "for now".
	{"farewell", domain.IntentExit, 0.95, regexp.MustCompile(
		`^(?:(?:ну|все|спасибо) )?(?:пока|пока пока|до свидания|прощай)(?: алиса| маруся)?$`)},
	{"reset", domain.IntentReset, 0.95, regexp.MustCompile(
		lb + `(?:сброс|сбрось|начать заново|начни заново|начнем заново|начни сначала|начнем сначала|забудь все|забудь)` + rb)},
	{"help", domain.IntentHelp, 0.9, regexp.MustCompile(
		lb + `(?:помощь|помоги|справка|что ты умеешь|что умеешь|как пользоваться|что ты можешь)` + rb)},
	{"greet", domain.IntentGreet, 0.9, regexp.MustCompile(
		`^(?:привет|приветствую|здравствуй|здравствуйте|добрый день|добрый вечер|доброе утро|салют|хай)(?: алиса| маруся)?$`)},
	{"ai_forecast", domain.IntentAIForecast, 0.85, regexp.MustCompile(
		lb + `(?:персональн|личн|подробн|индивидуальн)\S* (?:прогноз|гороскоп)`)},
	{"compatibility", domain.IntentCompatibility, 0.9, regexp.MustCompile(
		`совместим|` + lb + `(?:подходим ли|подходят ли|подходит ли|пара)` + rb)},
	{"natal_chart", domain.IntentNatalChart, 0.9, regexp.MustCompile(
		`натальн|` + lb + `(?:карт\S* рождения|гороскоп рождения|я родил(?:ся|ась))` + rb)},
	{"lunar_calendar", domain.IntentLunarCalendar, 0.9, regexp.MustCompile(
		`лунн|новолун|полнолун|` + lb + `(?:луна|луны|луне|фаза луны)` + rb)},
	{"transits", domain.IntentTransits, 0.9, regexp.MustCompile(
		`транзит|ретроград|` + lb + `(?:планеты сейчас|положение планет|где планеты)` + rb)},
	{"advice", domain.IntentAdvice, 0.85, regexp.MustCompile(
		lb + `совет`)},
	{"horoscope", domain.IntentHoroscope, 0.9, regexp.MustCompile(
		`гороскоп|` + lb + `(?:прогноз|что ждет|что меня ждет|что звезды)`)},
	// Request verbs are generic, so consult loses to any domain keyword above.
	{"ai_consult", domain.IntentAIConsult, 0.8, regexp.MustCompile(
		lb + `(?:спроси звезды|спроси у звезд|у меня вопрос|есть вопрос|посоветуй|подскажи|что мне делать|что делать|как быть|как мне быть|стоит ли)` + rb)},
}

// match returns the first rule matching s.
func match(s string) (domain.IntentMatch, bool) {
	for _, r := range rules {
		if r.re.MatchString(s) {
			return domain.IntentMatch{
				Intent:     r.intent,
				Confidence: r.confidence,
				Basis:      domain.BasisPattern,
				Pattern:    r.name,
			}, true
		}
	}
	return domain.UnknownMatch(), false
}
