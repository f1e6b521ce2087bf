package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestLengthMultiplier(t *testing.T) {
	tests := map[int]float64{1: 50, 3: 50, 4: 25, 5: 10, 6: 5, 7: 5, 8: 2, 10: 2, 11: 1, 40: 1}
	for length, want := range tests {
		assert.Equal(t, want, LengthMultiplier(length), "length=%d", length)
	}
}

func TestKeywordMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		mult     float64
		category KeywordCategory
		matched  string
	}{
		{"crypto", 30, KeywordHigh, "crypto"},
		{"cryptoking", 15, KeywordHigh, "crypto"},
		{"cash", 30, KeywordHigh, "cash"},
		{"shop", 7.5, KeywordMedium, "shop"},
		{"bestshop", 7.5 / 1.5, KeywordMedium, "shop"},
		{"zebra", 1, KeywordGeneric, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult, category, matched := KeywordMultiplier(tt.name)
			assert.Equal(t, tt.mult, mult)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestProjectionMultiplier(t *testing.T) {
	assert.Equal(t, 1.5, ProjectionMultiplier(80, 50))
	assert.Equal(t, 1.8, ProjectionMultiplier(80, 90))
	assert.Equal(t, 1.2, ProjectionMultiplier(60, 10))
	assert.Equal(t, 1.0, ProjectionMultiplier(50, 80), "thresholds are strict")
	assert.Equal(t, 0.8, ProjectionMultiplier(10, 10))
	assert.InDelta(t, 1.1, ProjectionMultiplier(10, 81), 1e-9)
}

func TestEstimateValue_HighValueKeyword(t *testing.T) {
	cfg := DefaultWeights().Valuation
	attrs := DomainAttributes{Name: "pay", TLD: "io", OfferCount: 10, Activity30d: 20}

	v := EstimateValue(attrs, 20, 90, 80, cfg)

	// 100 × 50 × 30 × 3 × min(3, 1+1+0.4) × (1 − 0.14)
	want := 100 * 50.0 * 30 * 3 * 2.4 * 0.86
	assert.InDelta(t, want, v.CurrentValue, 1e-6)
	assert.InDelta(t, want*1.8, v.ProjectedValue, 1e-6)
	assert.Equal(t, 95.0, v.Confidence, "70 + 3×10 capped")
	assert.Equal(t, KeywordHigh, v.Keyword)
	assert.Len(t, v.Factors, 4)
}

func TestEstimateValue_RiskFloor(t *testing.T) {
	cfg := DefaultWeights().Valuation
	attrs := DomainAttributes{Name: "abcdef", TLD: "com"}

	low := EstimateValue(attrs, 0, 0, 50, cfg)
	high := EstimateValue(attrs, 100, 0, 50, cfg)

	assert.InDelta(t, 600, low.CurrentValue, 1e-9)
	assert.InDelta(t, 180, high.CurrentValue, 1e-9, "risk shrinks to 30%")
}

func TestEstimateValue_MarketCap(t *testing.T) {
	cfg := DefaultWeights().Valuation
	attrs := DomainAttributes{Name: "zzzzzzzzzzzz", TLD: "com", OfferCount: 100, Activity30d: 1000}

	v := EstimateValue(attrs, 0, 0, 50, cfg)
	assert.InDelta(t, 100*1.2*3, v.CurrentValue, 1e-9)
}

func TestEstimateValue_FactorsRankedByImpact(t *testing.T) {
	cfg := DefaultWeights().Valuation
	attrs := DomainAttributes{Name: "tech", TLD: "dev", OfferCount: 2, Activity30d: 5}

	v := EstimateValue(attrs, 40, 50, 50, cfg)

	require.Len(t, v.Factors, 4)
	for i := 1; i < len(v.Factors); i++ {
		assert.GreaterOrEqual(t, math.Abs(v.Factors[i-1].Contribution), math.Abs(v.Factors[i].Contribution))
	}
	assert.Equal(t, KeywordMedium, v.Keyword)
}

func TestSanitizeOracleValuation(t *testing.T) {
	cfg := DefaultWeights().Valuation

	tests := []struct {
		name           string
		raw            OracleValuation
		wantCurrent    float64
		wantProjected  float64
		wantConfidence float64
		wantKeyword    float64
	}{
		{
			name:           "negative current",
			raw:            OracleValuation{CurrentValue: ptr(-50)},
			wantCurrent:    100,
			wantProjected:  100,
			wantConfidence: 70,
			wantKeyword:    50,
		},
		{
			name:           "all missing",
			raw:            OracleValuation{},
			wantCurrent:    1000,
			wantProjected:  1000,
			wantConfidence: 70,
			wantKeyword:    50,
		},
		{
			name: "out of range",
			raw: OracleValuation{
				CurrentValue:   ptr(2500),
				ProjectedValue: ptr(20),
				Confidence:     ptr(10),
				Keyword:        ptr(180),
			},
			wantCurrent:    2500,
			wantProjected:  100,
			wantConfidence: 50,
			wantKeyword:    100,
		},
		{
			name: "not finite",
			raw: OracleValuation{
				CurrentValue:   ptr(math.NaN()),
				ProjectedValue: ptr(math.Inf(1)),
				Confidence:     ptr(math.Inf(-1)),
				Keyword:        ptr(math.NaN()),
			},
			wantCurrent:    1000,
			wantProjected:  1000,
			wantConfidence: 70,
			wantKeyword:    50,
		},
		{
			name: "valid",
			raw: OracleValuation{
				CurrentValue:   ptr(4000),
				ProjectedValue: ptr(5000),
				Confidence:     ptr(88),
				Keyword:        ptr(-3),
			},
			wantCurrent:    4000,
			wantProjected:  5000,
			wantConfidence: 88,
			wantKeyword:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := SanitizeOracleValuation(tt.raw, cfg)
			assert.Equal(t, tt.wantCurrent, v.CurrentValue)
			assert.Equal(t, tt.wantProjected, v.ProjectedValue)
			assert.Equal(t, tt.wantConfidence, v.Confidence)
			assert.Equal(t, SourceOracle, v.Source)
			require.NotNil(t, v.Breakdown)
			assert.Equal(t, tt.wantKeyword, v.Breakdown.Keyword)
			assert.Equal(t, 50.0, v.Breakdown.SEO)
		})
	}
}

func TestSanitizeOracleValuation_Factors(t *testing.T) {
	raw := OracleValuation{
		Factors: []ScoreFactor{
			{Name: "Keyword", Contribution: 800, Weight: 1},
			{Name: "Broken", Contribution: math.NaN(), Weight: 1},
			{Name: "TLD", Contribution: -200, Weight: 1},
			{Name: "Length", Contribution: 1200, Weight: 1},
			{Name: "Brand", Contribution: 50, Weight: 1},
			{Name: "Noise", Contribution: 10, Weight: 1},
		},
	}

	v := SanitizeOracleValuation(raw, DefaultWeights().Valuation)

	require.Len(t, v.Factors, 4)
	assert.Equal(t, "Length", v.Factors[0].Name)
	assert.Equal(t, "Keyword", v.Factors[1].Name)
	assert.Equal(t, "TLD", v.Factors[2].Name)
	assert.Equal(t, "Brand", v.Factors[3].Name)
}
