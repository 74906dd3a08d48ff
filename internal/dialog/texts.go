package dialog

import (
	"strings"

	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

const (
	textSomethingWrong = "Что-то пошло не так, попробуйте ещё раз."
	textGreet          = "Привет! Я астрологический помощник. Могу рассказать гороскоп, проверить совместимость, составить натальную карту или подсказать лунный день. С чего начнём?"
	textGreetBack      = "С возвращением! Рассказать гороскоп для знака %s?"
	textHelp           = "Скажите, например: «гороскоп для льва на завтра», «совместимость овна и весов», «натальная карта, я родился 12 мая 1990 года» или «какой сегодня лунный день». Чтобы начать заново, скажите «начать заново», а чтобы выйти, скажите «хватит»."
	textExit           = "До встречи! Пусть звёзды будут к вам благосклонны."
	textReset          = "Хорошо, начнём сначала. Что вас интересует?"
	textUnknown        = "Я не совсем поняла. Можно спросить гороскоп, совместимость знаков или лунный день."
	textUnknownWithSgn = "Я не совсем поняла. Рассказать гороскоп для знака %s?"

	textAskSign             = "Назовите ваш знак зодиака, например: Лев или Дева."
	textAskSignForHoroscope = "Для какого знака составить гороскоп?"
	textAskOwnSignForCompat = "Чтобы проверить совместимость, назовите сначала ваш знак зодиака."
	textAskPartnerSign      = "Теперь назовите знак партнёра."
	textAskPartnerSignFor   = "Ваш знак %s. Теперь назовите знак партнёра."
	textAskBirthData        = "Назовите дату рождения, например: 12 мая 1990 года. Если знаете время рождения, добавьте и его."

	textHoroscopeHeader = "Гороскоп для %s %s."
	textCompatHeader    = "Совместимость знаков %s и %s: %d из 100."
	textCompatElements  = "%s относится к стихии %s, %s к стихии %s."
	textNatalSun        = "Ваше Солнце в знаке %s."
	textNatalMoon       = "Луна в знаке %s."
	textNatalAscendant  = "Асцендент в знаке %s."
	textNatalAskYear    = "Чтобы рассчитать положение планет, назовите полную дату рождения с годом."
	textNatalAskTime    = "Если назовёте время рождения, я уточню карту."
	textNatalDegraded   = "Сейчас не получается рассчитать полную карту. Ваш солнечный знак: %s."
	textLunarDay        = "%s %d-й лунный день, фаза: %s."
	textLunarMoonSign   = "Луна в знаке %s."
	textLunarDegraded   = "К сожалению, лунный календарь сейчас недоступен. Попробуйте чуть позже."
	textTransitsHeader  = "Сейчас Солнце в знаке %s, Луна в знаке %s."
	textTransitsAspects = "Главные аспекты: %s."
	textTransitsQuiet   = "Крупных аспектов сейчас нет, небо спокойное."
	textTransitsFailed  = "Не удалось рассчитать положение планет. Попробуйте чуть позже."
	textAdviceSad       = "Не расстраивайтесь, всё наладится."
	textAdviceDefault   = "Прислушайтесь к себе и не торопите события."
	textConsultNoSign   = "Подробно ответить на вопрос я сейчас не могу. Зато могу рассказать гороскоп, если назовёте свой знак."
)

const (
	labelHoroscope    = "Гороскоп на сегодня"
	labelTomorrow     = "Гороскоп на завтра"
	labelCompat       = "Совместимость"
	labelNatal        = "Натальная карта"
	labelLunar        = "Лунный календарь"
	labelTransits     = "Положение планет"
	labelAdvice       = "Совет дня"
	labelHelp         = "Помощь"
	labelDetailedFcst = "Персональный прогноз"

	cmdHoroscope = "гороскоп на сегодня"
	cmdTomorrow  = "гороскоп на завтра"
	cmdCompat    = "совместимость"
	cmdNatal     = "натальная карта"
	cmdLunar     = "лунный календарь"
	cmdTransits  = "транзиты планет"
	cmdAdvice    = "дай совет"
	cmdHelp      = "помощь"
	cmdDetailed  = "персональный прогноз"
)

var periodLabels = map[string]string{
	domain.PeriodToday:     "на сегодня",
	domain.PeriodTomorrow:  "на завтра",
	domain.PeriodYesterday: "на вчера",
	domain.PeriodWeek:      "на неделю",
	domain.PeriodMonth:     "на месяц",
	domain.PeriodYear:      "на год",
}

// elementGenitive names elements as in "стихия Огня".
var elementGenitive = map[domain.Element]string{
	domain.ElementFire:  "Огня",
	domain.ElementEarth: "Земли",
	domain.ElementAir:   "Воздуха",
	domain.ElementWater: "Воды",
}

// fallbackHoroscopes are used when no backend can produce a horoscope.
var fallbackHoroscopes = map[domain.Element]string{
	domain.ElementFire:  "Энергии сегодня много, направьте её на то, что действительно важно. Не спешите с резкими словами, и день пройдёт удачно.",
	domain.ElementEarth: "День подходит для спокойной работы и наведения порядка. Небольшие шаги сейчас дадут заметный результат.",
	domain.ElementAir:   "Общение сегодня приносит новые идеи. Поделитесь планами с близкими, они помогут советом.",
	domain.ElementWater: "Доверьтесь интуиции и берегите силы. Вечер лучше провести в уютной обстановке.",
}

var planetNames = map[string]string{
	"sun":     "Солнце",
	"moon":    "Луна",
	"mercury": "Меркурий",
	"venus":   "Венера",
	"mars":    "Марс",
	"jupiter": "Юпитер",
	"saturn":  "Сатурн",
	"uranus":  "Уран",
	"neptune": "Нептун",
	"pluto":   "Плутон",
}

var aspectNames = map[string]string{
	"conjunction": "соединение",
	"sextile":     "секстиль",
	"square":      "квадрат",
	"trine":       "трин",
	"opposition":  "оппозиция",
}

var phaseNames = map[string]string{
	calc.PhaseNew:            "новолуние",
	calc.PhaseWaxingCrescent: "растущий серп",
	calc.PhaseFirstQuarter:   "первая четверть",
	calc.PhaseWaxingGibbous:  "растущая Луна",
	calc.PhaseFull:           "полнолуние",
	calc.PhaseWaningGibbous:  "убывающая Луна",
	calc.PhaseLastQuarter:    "последняя четверть",
	calc.PhaseWaningCrescent: "убывающий серп",
}

// phaseAdvice is keyed by whether the moon is waxing.
var phaseAdvice = map[bool]string{
	true:  "Луна растёт, хорошее время начинать новое и договариваться.",
	false: "Луна убывает, удачное время завершать дела и избавляться от лишнего.",
}

func waxing(phase string) bool {
	switch phase {
	case calc.PhaseNew, calc.PhaseWaxingCrescent, calc.PhaseFirstQuarter, calc.PhaseWaxingGibbous:
		return true
	}
	return false
}

func signName(id string) string {
	return domain.SignName(id)
}

func signGenitive(id string) string {
	if s, ok := domain.SignByID(id); ok {
		return s.Genitive
	}
	return id
}

func planetName(id string) string {
	if n, ok := planetNames[id]; ok {
		return n
	}
	return id
}

func periodLabel(period string) string {
	if l, ok := periodLabels[period]; ok {
		return l
	}
	return periodLabels[domain.PeriodToday]
}

func joinSentences(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

func horoscopeCommand(sign string) string {
	return "гороскоп для " + strings.ToLower(signGenitive(sign))
}

func defaultActions() []domain.Action {
	return []domain.Action{
		domain.CommandAction(labelHoroscope, cmdHoroscope),
		domain.CommandAction(labelCompat, cmdCompat),
		domain.CommandAction(labelLunar, cmdLunar),
		domain.CommandAction(labelNatal, cmdNatal),
		domain.CommandAction(labelHelp, cmdHelp),
	}
}

// signActions offers every sign in zodiac order.
func signActions() []domain.Action {
	out := make([]domain.Action, 0, len(domain.Signs))
	for _, s := range domain.Signs {
		out = append(out, domain.CommandAction(s.Name, strings.ToLower(s.Name)))
	}
	return out
}
