package builtin

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ashureev/astrovoice/internal/domain"
)

var (
	openings = []string{
		"Звёзды сегодня на вашей стороне.",
		"День обещает быть спокойным и ровным.",
		"Энергия планет подталкивает вас к переменам.",
		"Сейчас хорошее время, чтобы замедлиться и осмотреться.",
		"Вселенная готовит вам приятный сюрприз.",
		"Настроение может меняться, но к вечеру всё наладится.",
	}
	love = []string{
		"В отношениях ценится искренность, скажите о своих чувствах прямо.",
		"Близкий человек ждёт от вас внимания и тепла.",
		"Новое знакомство может оказаться важнее, чем кажется.",
		"Не спорьте по пустякам, сохраните силы для главного.",
		"Романтический вечер пойдёт на пользу.",
	}
	work = []string{
		"В делах удастся завершить то, что давно откладывалось.",
		"Коллеги оценят вашу инициативу.",
		"Финансовые решения лучше отложить на пару дней.",
		"Хороший момент для обучения и новых идей.",
		"Сосредоточьтесь на одной задаче, и результат не заставит ждать.",
	}
	tips = []string{
		"Совет дня: больше гуляйте на свежем воздухе.",
		"Совет дня: доверьтесь интуиции.",
		"Совет дня: начните утро с плана.",
		"Совет дня: позвоните старому другу.",
		"Совет дня: не берите на себя лишнего.",
	}
	elementNotes = map[domain.Element]string{
		domain.ElementFire:  "Огненная натура помогает вам действовать смело.",
		domain.ElementEarth: "Земная практичность поможет удержать курс.",
		domain.ElementAir:   "Лёгкость и общительность откроют новые двери.",
		domain.ElementWater: "Чуткость подскажет верное решение.",
	}
)

var compatNotes = map[int]string{
	90: "У вас одна стихия, вы понимаете друг друга с полуслова.",
	80: "Ваши стихии дополняют друг друга, союз гармоничный.",
	75: "Вы очень похожи, важно давать друг другу свободу.",
	60: "Союз требует терпения, но вам есть чему научиться друг у друга.",
	45: "Стихии спорят, и отношениям понадобится много компромиссов.",
}

func pick(list []string, seed uint64, salt uint64) string {
	return list[(seed^salt*0x9e3779b97f4a7c15)%uint64(len(list))]
}

// horoscopeText builds a deterministic forecast for (sign, day, period).
func horoscopeText(sign domain.Sign, day, period string) string {
	seed := xxhash.Sum64String(sign.ID + "|" + day + "|" + period)
	text := pick(openings, seed, 1) + " " + pick(love, seed, 2) + " " + pick(work, seed, 3)
	if note, ok := elementNotes[sign.Element]; ok {
		text += " " + note
	}
	return text + " " + pick(tips, seed, 4)
}
