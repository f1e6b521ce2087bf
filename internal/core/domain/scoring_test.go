package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysFromNow(days float64) time.Time {
	return testNow.Add(time.Duration(days * 24 * float64(time.Hour)))
}

func TestScoreDomain_ScenarioA(t *testing.T) {
	attrs := DomainAttributes{
		Name:         "ab",
		TLD:          "com",
		ExpiresAt:    daysFromNow(200),
		LockStatus:   false,
		RegistrarID:  1068,
		RenewalCount: 3,
		OfferCount:   5,
		Activity7d:   10,
		Activity30d:  20,
	}

	s := ScoreDomain(attrs, DefaultWeights(), testNow)

	assert.Equal(t, 0.0, s.Risk, "-1.25 clamps to 0")
	assert.InDelta(t, 43.5, s.Rarity, 1e-9)
	assert.InDelta(t, 70, s.Momentum, 1e-9)
	assert.InDelta(t, 74.025, s.Forecast, 1e-9)
	assert.InDelta(t, 66.6225, s.ForecastLow, 1e-9)
	assert.InDelta(t, 81.4275, s.ForecastHigh, 1e-9)

	assert.InDelta(t, 11400, s.CurrentValue, 1e-6)
	assert.InDelta(t, 13680, s.ProjectedValue, 1e-6)
	assert.Equal(t, 90.0, s.ValueConfidence)
	assert.Equal(t, SourceAlgorithmic, s.ValuationSource)
	assert.Nil(t, s.Breakdown)

	require.Len(t, s.Explainers.Risk, 3)
	assert.Equal(t, "Renewal History", s.Explainers.Risk[0].Name)
	require.Len(t, s.Explainers.Rarity, 3)
	assert.Equal(t, "Name Length", s.Explainers.Rarity[0].Name)
	require.Len(t, s.Explainers.Momentum, 2)
	require.Len(t, s.Explainers.Forecast, 3)
	require.Len(t, s.Explainers.Value, 4)
	assert.Equal(t, "Market Activity", s.Explainers.Value[0].Name)
	assert.InDelta(t, 5400, s.Explainers.Value[0].Contribution, 1e-6)
	assert.Equal(t, "Length", s.Explainers.Value[1].Name)
}

func TestScoreDomain_ScenarioB(t *testing.T) {
	attrs := DomainAttributes{
		Name:        "myrandomlongname123",
		TLD:         "xyz",
		ExpiresAt:   daysFromNow(10),
		LockStatus:  true,
		RegistrarID: 424242,
	}

	s := ScoreDomain(attrs, DefaultWeights(), testNow)

	assert.InDelta(t, 53.5, s.Risk, 1e-9)
	assert.Equal(t, 0.0, s.Rarity)
	assert.InDelta(t, 35, s.Momentum, 1e-9)
	assert.InDelta(t, 48.05, s.Forecast, 1e-9)
	assert.Equal(t, 100.0, s.CurrentValue, "floored")
	assert.Equal(t, 100.0, s.ProjectedValue)
	assert.Equal(t, 70.0, s.ValueConfidence)

	names := []string{}
	for _, f := range s.Explainers.Risk {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Expiry Buffer", "Lock Status", "Registrar Quality"}, names)
}

func TestScoreDomain_Deterministic(t *testing.T) {
	attrs := DomainAttributes{
		Name:        "crypto",
		TLD:         "ai",
		ExpiresAt:   daysFromNow(90),
		RegistrarID: 146,
		OfferCount:  2,
		Activity7d:  4,
		Activity30d: 9,
		RecentEvents: []DomainEvent{
			{Type: EventOffer, Timestamp: testNow.Add(-2 * time.Hour)},
		},
	}

	first := ScoreDomain(attrs, DefaultWeights(), testNow)
	second := ScoreDomain(attrs, DefaultWeights(), testNow)
	assert.Equal(t, first, second)
}

func TestScoreDomain_RangeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tlds := []string{"com", "ai", "io", "xyz", "dev", "unknown", ""}
	names := []string{"", "a", "ab", "pay", "crypto", "brandly", "xqzt", "averyveryverylongdomainname", "домен"}
	w := DefaultWeights()

	for i := 0; i < 500; i++ {
		attrs := DomainAttributes{
			Name:         names[rng.Intn(len(names))],
			TLD:          tlds[rng.Intn(len(tlds))],
			ExpiresAt:    daysFromNow(float64(rng.Intn(800) - 200)),
			LockStatus:   rng.Intn(2) == 0,
			RegistrarID:  rng.Intn(2000),
			RenewalCount: rng.Intn(10) - 2,
			OfferCount:   rng.Intn(200) - 20,
			Activity7d:   rng.Intn(500),
			Activity30d:  rng.Intn(500) - 10,
		}
		for j := rng.Intn(6); j > 0; j-- {
			attrs.RecentEvents = append(attrs.RecentEvents, DomainEvent{
				Type:      EventSale,
				Timestamp: testNow.Add(-time.Duration(rng.Intn(200)) * time.Hour),
			})
		}

		s := ScoreDomain(attrs, w, testNow)
		for name, v := range map[string]float64{
			"risk": s.Risk, "rarity": s.Rarity, "momentum": s.Momentum, "forecast": s.Forecast,
			"forecast_low": s.ForecastLow, "forecast_high": s.ForecastHigh,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s for %+v", name, attrs)
			assert.LessOrEqual(t, v, 100.0, "%s for %+v", name, attrs)
		}
		assert.GreaterOrEqual(t, s.CurrentValue, 100.0)
		assert.GreaterOrEqual(t, s.ProjectedValue, 100.0)
		assert.GreaterOrEqual(t, s.ValueConfidence, 70.0)
		assert.LessOrEqual(t, s.ValueConfidence, 95.0)
		assert.LessOrEqual(t, s.ForecastLow, s.Forecast)
		assert.GreaterOrEqual(t, s.ForecastHigh, s.Forecast)
	}
}

func TestScoreDomain_OfferCountMonotonic(t *testing.T) {
	w := DefaultWeights()
	base := DomainAttributes{
		Name:        "brandly",
		TLD:         "io",
		ExpiresAt:   daysFromNow(60),
		RegistrarID: 1,
		Activity7d:  3,
		Activity30d: 12,
	}

	prevRarity, prevMomentum := -1.0, -1.0
	for offers := 0; offers <= 20; offers++ {
		attrs := base
		attrs.OfferCount = offers
		s := CalculateSubScores(attrs, w, testNow)

		assert.GreaterOrEqual(t, s.Rarity, prevRarity, "offers=%d", offers)
		assert.GreaterOrEqual(t, s.Momentum, prevMomentum, "offers=%d", offers)
		prevRarity, prevMomentum = s.Rarity, s.Momentum
	}
}

func TestScoreDomain_DoesNotMutateInput(t *testing.T) {
	events := []DomainEvent{
		{Type: EventSale, Timestamp: testNow.Add(-time.Hour)},
		{Type: EventOffer, Timestamp: testNow.Add(-2 * time.Hour)},
	}
	attrs := DomainAttributes{Name: " Pay ", TLD: ".IO", ExpiresAt: daysFromNow(10), RecentEvents: events}
	copyAttrs := attrs
	copyAttrs.RecentEvents = append([]DomainEvent(nil), events...)

	ScoreDomain(attrs, DefaultWeights(), testNow)

	assert.Equal(t, copyAttrs, attrs)
}

func TestScoreDomain_NormalizesNameAndTLD(t *testing.T) {
	w := DefaultWeights()
	lower := ScoreDomain(DomainAttributes{Name: "pay", TLD: "io", ExpiresAt: daysFromNow(100)}, w, testNow)
	mixed := ScoreDomain(DomainAttributes{Name: " PAY", TLD: ".IO", ExpiresAt: daysFromNow(100)}, w, testNow)

	assert.Equal(t, lower.Rarity, mixed.Rarity)
	assert.Equal(t, lower.CurrentValue, mixed.CurrentValue)
}

func TestTopFactors(t *testing.T) {
	factors := []ScoreFactor{
		{Name: "a", Contribution: 1},
		{Name: "b", Contribution: -5},
		{Name: "c", Contribution: 3},
		{Name: "d", Contribution: 3},
	}

	top := TopFactors(factors, 3)

	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Name)
	assert.Equal(t, "c", top[1].Name, "ties keep input order")
	assert.Equal(t, "d", top[2].Name)
	assert.Equal(t, "a", factors[0].Name, "input untouched")

	assert.Len(t, TopFactors(factors, 10), 4)
	assert.Empty(t, TopFactors(nil, 3))
}
