package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/astrovoice/internal/advisor"
	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/domain"
)

func (r *Router) greet(_ context.Context, t Turn) (domain.Response, error) {
	if sign := t.Entities.Get(domain.EntitySign); sign != "" {
		actions := append([]domain.Action{
			domain.CommandAction("Гороскоп для "+signGenitive(sign), horoscopeCommand(sign)),
		}, defaultActions()[1:]...)
		return domain.Response{Text: fmt.Sprintf(textGreetBack, signName(sign)), Actions: actions}, nil
	}
	return domain.Response{Text: textGreet, Actions: defaultActions()}, nil
}

func (r *Router) help(context.Context, Turn) (domain.Response, error) {
	return domain.Response{
		Text: textHelp,
		Actions: []domain.Action{
			domain.CommandAction(labelHoroscope, cmdHoroscope),
			domain.CommandAction(labelCompat, cmdCompat),
			domain.CommandAction(labelNatal, cmdNatal),
			domain.CommandAction(labelLunar, cmdLunar),
			domain.CommandAction(labelTransits, cmdTransits),
			domain.CommandAction(labelAdvice, cmdAdvice),
		},
	}, nil
}

func (r *Router) exit(context.Context, Turn) (domain.Response, error) {
	return domain.Response{Text: textExit, EndSession: true}, nil
}

func (r *Router) reset(context.Context, Turn) (domain.Response, error) {
	return domain.Response{Text: textReset, Actions: defaultActions()}, nil
}

func (r *Router) unknown(_ context.Context, t Turn) (domain.Response, error) {
	if sign := t.Entities.Get(domain.EntitySign); sign != "" {
		actions := append([]domain.Action{
			domain.CommandAction("Гороскоп для "+signGenitive(sign), horoscopeCommand(sign)),
		}, defaultActions()[1:]...)
		return domain.Response{Text: fmt.Sprintf(textUnknownWithSgn, signName(sign)), Actions: actions}, nil
	}
	return domain.Response{Text: textUnknown, Actions: defaultActions()}, nil
}

// periodDate maps a relative period to the day it starts on.
func (r *Router) periodDate(period string) time.Time {
	now := r.now()
	switch period {
	case domain.PeriodTomorrow:
		return now.AddDate(0, 0, 1)
	case domain.PeriodYesterday:
		return now.AddDate(0, 0, -1)
	}
	return now
}

// calculate runs req and reports whether the chain was exhausted. Any other
// failure is returned as an error.
func (r *Router) calculate(ctx context.Context, req calc.Request) (*calc.Result, bool, error) {
	res, err := r.calc.Calculate(ctx, req)
	if err == nil {
		if res == nil || res.Payload == nil {
			return nil, false, calc.ErrEmptyPayload
		}
		return res, false, nil
	}
	if errors.Is(err, calc.ErrAllBackendsExhausted) {
		r.logger.WarnContext(ctx, "calculation degraded", "kind", req.Kind, "error", err)
		return nil, true, nil
	}
	return nil, false, err
}

func (r *Router) horoscope(ctx context.Context, t Turn) (domain.Response, error) {
	sign := t.Entities.Get(domain.EntitySign)
	s, ok := domain.SignByID(sign)
	if !ok {
		return prompt(domain.StateAwaitingSign, domain.IntentHoroscope, t.Entities), nil
	}
	period := t.Entities.Get(domain.EntityPeriod)
	if period == "" {
		period = domain.PeriodToday
	}

	header := fmt.Sprintf(textHoroscopeHeader, s.Genitive, periodLabel(period))
	actions := horoscopeActions(period)

	res, degraded, err := r.calculate(ctx, calc.Request{
		Kind:   calc.KindHoroscope,
		Sign:   s.ID,
		Date:   r.periodDate(period),
		Period: period,
	})
	if err != nil {
		return domain.Response{}, err
	}
	if degraded {
		return domain.Response{
			Text:     joinSentences(header, fallbackHoroscopes[s.Element]),
			Actions:  actions,
			Degraded: true,
			Data:     map[string]any{"sign": s.ID, "period": period},
		}, nil
	}

	body := res.Payload.Text
	if body == "" {
		body = fallbackHoroscopes[s.Element]
	}
	return domain.Response{
		Text:          joinSentences(header, body),
		Supplementary: strings.Join(res.Payload.Highlights, ", "),
		Actions:       actions,
		Backend:       res.Backend,
		Data:          map[string]any{"sign": s.ID, "period": period, "payload": res.Payload},
	}, nil
}

func horoscopeActions(period string) []domain.Action {
	first := domain.CommandAction(labelTomorrow, cmdTomorrow)
	if period == domain.PeriodTomorrow {
		first = domain.CommandAction(labelHoroscope, cmdHoroscope)
	}
	return []domain.Action{
		first,
		domain.CommandAction(labelCompat, cmdCompat),
		domain.CommandAction(labelDetailedFcst, cmdDetailed),
		domain.CommandAction(labelLunar, cmdLunar),
	}
}

func (r *Router) compatibility(ctx context.Context, t Turn) (domain.Response, error) {
	a, okA := domain.SignByID(t.Entities.Get(domain.EntitySign))
	if !okA {
		return prompt(domain.StateAwaitingSign, domain.IntentCompatibility, t.Entities), nil
	}
	b, okB := domain.SignByID(t.Entities.Get(domain.EntityPartnerSign))
	if !okB {
		return prompt(domain.StateAwaitingPartnerSign, domain.IntentCompatibility, t.Entities), nil
	}

	actions := []domain.Action{
		domain.CommandAction("Гороскоп для "+a.Genitive, horoscopeCommand(a.ID)),
		domain.CommandAction("Гороскоп для "+b.Genitive, horoscopeCommand(b.ID)),
		domain.CommandAction(labelNatal, cmdNatal),
	}

	res, degraded, err := r.calculate(ctx, calc.Request{
		Kind:        calc.KindCompatibility,
		Sign:        a.ID,
		PartnerSign: b.ID,
	})
	if err != nil {
		return domain.Response{}, err
	}
	elements := fmt.Sprintf(textCompatElements, a.Name, elementGenitive[a.Element], b.Name, elementGenitive[b.Element])
	if degraded {
		return domain.Response{
			Text:     joinSentences(elements, elementPairNote(a.Element, b.Element)),
			Actions:  actions,
			Degraded: true,
		}, nil
	}

	p := res.Payload
	return domain.Response{
		Text:          joinSentences(fmt.Sprintf(textCompatHeader, a.Genitive, b.Genitive, p.Score), p.Text),
		Supplementary: elements,
		Actions:       actions,
		Backend:       res.Backend,
		Data:          map[string]any{"sign": a.ID, "partner_sign": b.ID, "score": p.Score},
	}, nil
}

// elementPairNote is the reduced-fidelity compatibility verdict.
func elementPairNote(a, b domain.Element) string {
	switch {
	case a == b:
		return "Знаки одной стихии хорошо понимают друг друга."
	case complementary(a, b):
		return "Эти стихии дополняют друг друга."
	default:
		return "Этой паре понадобится больше терпения и внимания друг к другу."
	}
}

func complementary(a, b domain.Element) bool {
	pair := func(x, y domain.Element) bool { return (a == x && b == y) || (a == y && b == x) }
	return pair(domain.ElementFire, domain.ElementAir) || pair(domain.ElementEarth, domain.ElementWater)
}

func (r *Router) natalChart(ctx context.Context, t Turn) (domain.Response, error) {
	raw := t.Entities.Get(domain.EntityDate)
	birth, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return prompt(domain.StateAwaitingBirthData, domain.IntentNatalChart, t.Entities), nil
	}
	sun := domain.SignFromDate(birth)
	actions := []domain.Action{
		domain.CommandAction("Гороскоп для "+sun.Genitive, horoscopeCommand(sun.ID)),
		domain.CommandAction(labelCompat, cmdCompat),
		domain.CommandAction(labelTransits, cmdTransits),
	}

	res, degraded, err := r.calculate(ctx, calc.Request{
		Kind: calc.KindNatalChart,
		Date: birth,
		Time: t.Entities.Get(domain.EntityTime),
	})
	if err != nil {
		return domain.Response{}, err
	}
	if degraded {
		return domain.Response{
			Text:     fmt.Sprintf(textNatalDegraded, sun.Name),
			Actions:  actions,
			Degraded: true,
			Data:     map[string]any{"sun": sun.ID},
		}, nil
	}

	p := res.Payload
	sunID := p.Sun
	if sunID == "" {
		sunID = sun.ID
	}
	parts := []string{fmt.Sprintf(textNatalSun, signGenitive(sunID))}
	if p.Moon != "" {
		parts = append(parts, fmt.Sprintf(textNatalMoon, signGenitive(p.Moon)))
	}
	if p.Ascendant != "" {
		parts = append(parts, fmt.Sprintf(textNatalAscendant, signGenitive(p.Ascendant)))
	}
	switch {
	case birth.Year() == 0:
		parts = append(parts, textNatalAskYear)
	case !t.Entities.Has(domain.EntityTime):
		parts = append(parts, textNatalAskTime)
	}

	return domain.Response{
		Text:          joinSentences(parts...),
		Supplementary: describeAspects(p.Aspects, 3),
		Actions:       actions,
		Backend:       res.Backend,
		Data:          map[string]any{"sun": sunID, "payload": p},
	}, nil
}

func (r *Router) lunarCalendar(ctx context.Context, t Turn) (domain.Response, error) {
	period := t.Entities.Get(domain.EntityPeriod)
	day := "Сегодня"
	switch period {
	case domain.PeriodTomorrow:
		day = "Завтра"
	case domain.PeriodYesterday:
		day = "Вчера был"
	}
	actions := []domain.Action{
		domain.CommandAction(labelAdvice, cmdAdvice),
		domain.CommandAction(labelHoroscope, cmdHoroscope),
		domain.CommandAction(labelTransits, cmdTransits),
	}

	res, degraded, err := r.calculate(ctx, calc.Request{
		Kind: calc.KindLunarCalendar,
		Date: r.periodDate(period),
	})
	if err != nil {
		return domain.Response{}, err
	}
	if degraded || res.Payload.Lunar == nil {
		return domain.Response{Text: textLunarDegraded, Actions: actions, Degraded: true}, nil
	}

	m := res.Payload.Lunar
	parts := []string{fmt.Sprintf(textLunarDay, day, m.Day, phaseNames[m.Phase])}
	if m.Sign != "" {
		parts = append(parts, fmt.Sprintf(textLunarMoonSign, signGenitive(m.Sign)))
	}
	parts = append(parts, phaseAdvice[waxing(m.Phase)])

	return domain.Response{
		Text:    joinSentences(parts...),
		Actions: actions,
		Backend: res.Backend,
		Data:    map[string]any{"lunar": m},
	}, nil
}

func (r *Router) transits(ctx context.Context, t Turn) (domain.Response, error) {
	actions := []domain.Action{
		domain.CommandAction(labelLunar, cmdLunar),
		domain.CommandAction(labelHoroscope, cmdHoroscope),
		domain.CommandAction(labelNatal, cmdNatal),
	}

	res, degraded, err := r.calculate(ctx, calc.Request{Kind: calc.KindTransits, Date: r.now()})
	if err != nil {
		return domain.Response{}, err
	}
	if degraded {
		return domain.Response{Text: textTransitsFailed, Actions: actions, Degraded: true}, nil
	}

	p := res.Payload
	var sun, moon string
	for _, pl := range p.Planets {
		switch pl.Name {
		case "sun":
			sun = pl.Sign
		case "moon":
			moon = pl.Sign
		}
	}
	var parts []string
	if sun != "" && moon != "" {
		parts = append(parts, fmt.Sprintf(textTransitsHeader, signGenitive(sun), signGenitive(moon)))
	}
	var retro []string
	for _, pl := range p.Planets {
		if pl.Retrograde {
			retro = append(retro, planetName(pl.Name))
		}
	}
	if len(retro) > 0 {
		parts = append(parts, "Ретроградны: "+strings.Join(retro, ", ")+".")
	}
	if a := describeAspects(p.Aspects, 3); a != "" {
		parts = append(parts, fmt.Sprintf(textTransitsAspects, a))
	} else {
		parts = append(parts, textTransitsQuiet)
	}

	return domain.Response{
		Text:    joinSentences(parts...),
		Actions: actions,
		Backend: res.Backend,
		Data:    map[string]any{"payload": p},
	}, nil
}

// describeAspects renders up to limit aspects in backend order.
func describeAspects(as []calc.Aspect, limit int) string {
	var out []string
	for _, a := range as {
		if len(out) == limit {
			break
		}
		name, ok := aspectNames[a.Type]
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%s и %s, %s", planetName(a.A), planetName(a.B), name))
	}
	return strings.Join(out, "; ")
}

func (r *Router) advice(ctx context.Context, t Turn) (domain.Response, error) {
	var opening string
	if t.Entities.Get(domain.EntitySentiment) == domain.SentimentNegative {
		opening = textAdviceSad
	}
	actions := []domain.Action{
		domain.CommandAction(labelHoroscope, cmdHoroscope),
		domain.CommandAction(labelLunar, cmdLunar),
	}

	res, degraded, err := r.calculate(ctx, calc.Request{Kind: calc.KindLunarCalendar, Date: r.now()})
	if err != nil {
		return domain.Response{}, err
	}
	if degraded || res.Payload.Lunar == nil {
		return domain.Response{Text: joinSentences(opening, textAdviceDefault), Actions: actions, Degraded: true}, nil
	}

	body := phaseAdvice[waxing(res.Payload.Lunar.Phase)]
	if sign, ok := domain.SignByID(t.Entities.Get(domain.EntitySign)); ok {
		body = joinSentences(body, sign.Name+": "+elementTip[sign.Element])
	}
	return domain.Response{
		Text:    joinSentences(opening, body),
		Actions: actions,
		Backend: res.Backend,
	}, nil
}

var elementTip = map[domain.Element]string{
	domain.ElementFire:  "не растрачивайте энергию на споры.",
	domain.ElementEarth: "доведите до конца одно начатое дело.",
	domain.ElementAir:   "запишите идеи, они пригодятся.",
	domain.ElementWater: "найдите время для отдыха.",
}

// consult asks the advisor. A missing or failed advisor yields ok=false.
func (r *Router) consult(ctx context.Context, t Turn, kind advisor.Kind) (string, bool) {
	if r.advisor == nil {
		return "", false
	}
	text := t.Entities.Get(domain.EntityQuestion)
	if text == "" {
		text = t.Utterance.Text
	}
	answer, err := r.advisor.Consult(ctx, advisor.Question{
		Text:   text,
		Sign:   t.Entities.Get(domain.EntitySign),
		Period: t.Entities.Get(domain.EntityPeriod),
		Kind:   kind,
		UserID: t.Utterance.UserID,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "advisor unavailable, using calculation reply",
			"turn_id", t.Utterance.TurnID,
			"error", err,
		)
		return "", false
	}
	return answer, true
}

func (r *Router) aiConsult(ctx context.Context, t Turn) (domain.Response, error) {
	if answer, ok := r.consult(ctx, t, advisor.KindConsult); ok {
		return domain.Response{Text: answer, Actions: defaultActions()[:3], Backend: "advisor"}, nil
	}
	if t.Entities.Has(domain.EntitySign) {
		return r.horoscope(ctx, t)
	}
	resp, err := r.advice(ctx, t)
	if err != nil {
		return resp, err
	}
	resp.Text = joinSentences(textConsultNoSign, resp.Text)
	resp.Actions = signActions()
	return resp, nil
}

func (r *Router) aiForecast(ctx context.Context, t Turn) (domain.Response, error) {
	if !t.Entities.Has(domain.EntitySign) {
		return prompt(domain.StateAwaitingSign, domain.IntentAIForecast, t.Entities), nil
	}
	if answer, ok := r.consult(ctx, t, advisor.KindForecast); ok {
		sign := t.Entities.Get(domain.EntitySign)
		return domain.Response{
			Text:    answer,
			Actions: horoscopeActions(t.Entities.Get(domain.EntityPeriod)),
			Backend: "advisor",
			Data:    map[string]any{"sign": sign},
		}, nil
	}
	return r.horoscope(ctx, t)
}
