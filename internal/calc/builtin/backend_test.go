package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/astrovoice/internal/calc"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHoroscopeIsDeterministic(t *testing.T) {
	t.Parallel()
	b := New()
	req := calc.Request{Kind: calc.KindHoroscope, Sign: "leo", Date: day("2026-05-01"), Period: "today"}

	p1, err := b.Execute(context.Background(), req)
	require.NoError(t, err)
	p2, err := b.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, p1.Text)
	assert.Equal(t, p1.Text, p2.Text)
	assert.Equal(t, "leo", p1.Sun)

	_, err = b.Execute(context.Background(), calc.Request{Kind: calc.KindHoroscope, Sign: "dragon"})
	assert.Error(t, err)
}

func TestCompatibilityScores(t *testing.T) {
	t.Parallel()
	b := New()

	tests := []struct {
		a, b string
		want int
	}{
		{"leo", "aries", 90},
		{"leo", "libra", 80},
		{"leo", "cancer", 45},
		{"leo", "virgo", 60},
		{"leo", "leo", 75},
	}
	for _, tt := range tests {
		p, err := b.Execute(context.Background(), calc.Request{Kind: calc.KindCompatibility, Sign: tt.a, PartnerSign: tt.b})
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Score, "%s + %s", tt.a, tt.b)
		assert.NotEmpty(t, p.Text)
	}
}

func TestLunarPhase(t *testing.T) {
	t.Parallel()
	b := New()

	// 2024-04-08 was a new moon, 2024-04-23 a full moon.
	p, err := b.Execute(context.Background(), calc.Request{Kind: calc.KindLunarCalendar, Date: day("2024-04-08")})
	require.NoError(t, err)
	require.NotNil(t, p.Lunar)
	assert.Contains(t, []string{calc.PhaseNew, calc.PhaseWaningCrescent, calc.PhaseWaxingCrescent}, p.Lunar.Phase)
	assert.Less(t, p.Lunar.Illumination, 0.1)

	p, err = b.Execute(context.Background(), calc.Request{Kind: calc.KindLunarCalendar, Date: day("2024-04-23")})
	require.NoError(t, err)
	assert.Contains(t, []string{calc.PhaseFull, calc.PhaseWaxingGibbous, calc.PhaseWaningGibbous}, p.Lunar.Phase)
	assert.Greater(t, p.Lunar.Illumination, 0.9)
	assert.GreaterOrEqual(t, p.Lunar.Day, 1)
	assert.LessOrEqual(t, p.Lunar.Day, 30)
}

func TestNatalChart(t *testing.T) {
	t.Parallel()
	b := New()

	p, err := b.Execute(context.Background(), calc.Request{
		Kind: calc.KindNatalChart, Date: day("1990-05-12"), Time: "07:30",
		Latitude: 55.75, Longitude: 37.62,
	})
	require.NoError(t, err)
	assert.Equal(t, "taurus", p.Sun)
	assert.NotEmpty(t, p.Moon)
	assert.NotEmpty(t, p.Ascendant)
	assert.Len(t, p.Planets, 7)

	// Year unknown: sun sign only.
	p, err = b.Execute(context.Background(), calc.Request{Kind: calc.KindNatalChart, Date: day("0000-07-30")})
	require.NoError(t, err)
	assert.Equal(t, "leo", p.Sun)
	assert.Empty(t, p.Planets)
}

func TestTransitsSunPosition(t *testing.T) {
	t.Parallel()
	b := New()

	// Mid-May the sun is in Taurus.
	p, err := b.Execute(context.Background(), calc.Request{Kind: calc.KindTransits, Date: day("2026-05-10")})
	require.NoError(t, err)
	require.NotEmpty(t, p.Planets)
	assert.Equal(t, "sun", p.Planets[0].Name)
	assert.Equal(t, "taurus", p.Planets[0].Sign)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Execute(ctx, calc.Request{Kind: calc.KindHoroscope, Sign: "leo"})
	assert.ErrorIs(t, err, context.Canceled)
}
