package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const valueExplainerCount = 4

// Oracle sanitization bounds.
const (
	oracleDefaultCurrentValue = 1000
	oracleDefaultConfidence   = 70
	oracleMinConfidence       = 50
	oracleMaxConfidence       = 95
	oracleDefaultSubScore     = 50
)

// ValueEstimate is the dollar side of a DomainScores.
type ValueEstimate struct {
	CurrentValue   float64         `msgpack:"current_value"`
	ProjectedValue float64         `msgpack:"projected_value"`
	Confidence     float64         `msgpack:"confidence"`
	Keyword        KeywordCategory `msgpack:"keyword"`
	Source         ValuationSource `msgpack:"source"`
	Breakdown      *ValueBreakdown `msgpack:"breakdown,omitempty"`
	Reasoning      string          `msgpack:"reasoning,omitempty"`
	Factors        []ScoreFactor   `msgpack:"factors"`
}

// lengthTiers are checked in order; the first MaxLength >= len wins.
var lengthTiers = []struct {
	MaxLength  int
	Multiplier float64
}{
	{3, 50},
	{4, 25},
	{5, 10},
	{7, 5},
	{10, 2},
}

var tldMultipliers = map[TLDBucket]float64{
	BucketUltra:    3,
	BucketRare:     2,
	BucketCommon:   1.2,
	BucketAbundant: 0.8,
}

// EstimateValue runs the multiplicative valuation model from a fixed base value.
// risk, rarity and momentum are the already computed sub-scores.
func EstimateValue(attrs DomainAttributes, risk, rarity, momentum float64, cfg ValuationConfig) ValueEstimate {
	name := attrs.normalizedName()
	tld := attrs.normalizedTLD()
	length := utf8.RuneCountInString(name)

	var factors []ScoreFactor
	value := cfg.BaseValue
	apply := func(factorName string, multiplier float64, description string) {
		next := value * multiplier
		factors = append(factors, ScoreFactor{
			Name:         factorName,
			Value:        multiplier,
			Weight:       1,
			Contribution: next - value,
			Description:  description,
		})
		value = next
	}

	apply("Length", LengthMultiplier(length), fmt.Sprintf("%d character name", length))

	keywordMult, category, matched := KeywordMultiplier(name)
	keywordDesc := "No valuable keyword"
	if category != KeywordGeneric {
		keywordDesc = fmt.Sprintf("Contains %s keyword %q", strings.ReplaceAll(string(category), "_", "-"), matched)
	}
	apply("Keyword", keywordMult, keywordDesc)

	bucket := BucketForTLD(tld)
	apply("TLD", tldMultipliers[bucket], fmt.Sprintf(".%s (%s)", tld, bucket))

	marketMult := math.Min(cfg.MarketCap,
		1+float64(attrs.OfferCount)*cfg.OfferFactor+float64(attrs.Activity30d)*cfg.ActivityFactor)
	apply("Market Activity", marketMult,
		fmt.Sprintf("%d offers, %d events in 30 days", attrs.OfferCount, attrs.Activity30d))

	riskMult := math.Max(cfg.RiskFloor, 1-risk/100*cfg.RiskShrink)
	apply("Risk Adjustment", riskMult, fmt.Sprintf("Risk score %.0f", risk))

	current := math.Max(cfg.MinValue, value)
	projected := math.Max(cfg.MinValue, current*ProjectionMultiplier(momentum, rarity))

	confidence := cfg.BaseConfidence
	if attrs.Activity30d > cfg.ActivityThreshold {
		confidence += cfg.ConfidenceStep
	}
	if attrs.OfferCount > cfg.OfferThreshold {
		confidence += cfg.ConfidenceStep
	}
	if category != KeywordGeneric {
		confidence += cfg.ConfidenceStep
	}
	confidence = math.Min(cfg.MaxConfidence, confidence)

	return ValueEstimate{
		CurrentValue:   current,
		ProjectedValue: projected,
		Confidence:     confidence,
		Keyword:        category,
		Source:         SourceAlgorithmic,
		Factors:        TopFactors(factors, valueExplainerCount),
	}
}

// LengthMultiplier is a step function over name length.
func LengthMultiplier(length int) float64 {
	for _, tier := range lengthTiers {
		if length <= tier.MaxLength {
			return tier.Multiplier
		}
	}
	return 1
}

// KeywordMultiplier looks for high value keywords first, then medium ones. A name that
// is exactly the keyword earns an extra ×2 (high) or ×1.5 (medium).
func KeywordMultiplier(name string) (float64, KeywordCategory, string) {
	if kw, ok := containsKeyword(name, highValueKeywordList); ok {
		mult := 15.0
		if name == kw {
			mult *= 2
		}
		return mult, KeywordHigh, kw
	}
	if kw, ok := containsKeyword(name, mediumValueKeywordList); ok {
		mult := 5.0
		if name == kw {
			mult *= 1.5
		}
		return mult, KeywordMedium, kw
	}
	return 1, KeywordGeneric, ""
}

// containsKeyword prefers an exact match so "cash" reports "cash" and not a shorter
// keyword contained in it.
func containsKeyword(name string, keywords []string) (string, bool) {
	found := ""
	for _, kw := range keywords {
		if name == kw {
			return kw, true
		}
		if found == "" && strings.Contains(name, kw) {
			found = kw
		}
	}
	return found, found != ""
}

// ProjectionMultiplier drives the 6 month projection from momentum and rarity.
func ProjectionMultiplier(momentum, rarity float64) float64 {
	mult := 1.0
	switch {
	case momentum > 75:
		mult += 0.5
	case momentum > 50:
		mult += 0.2
	case momentum < 25:
		mult -= 0.2
	}
	if rarity > 80 {
		mult += 0.3
	}
	return mult
}

// OracleValuation is a raw, unvalidated answer from an external valuation service.
// Nil pointers mean the field was missing.
type OracleValuation struct {
	CurrentValue   *float64
	ProjectedValue *float64
	Confidence     *float64
	Keyword        *float64
	Brandability   *float64
	Memorability   *float64
	SEO            *float64
	Factors        []ScoreFactor
	Reasoning      string
}

// SanitizeOracleValuation defaults and clamps every oracle field independently so a
// partly broken response still yields a usable estimate.
func SanitizeOracleValuation(raw OracleValuation, cfg ValuationConfig) ValueEstimate {
	current := oracleDefaultCurrentValue * 1.0
	if raw.CurrentValue != nil && isFinite(*raw.CurrentValue) {
		current = *raw.CurrentValue
	}
	current = math.Max(cfg.MinValue, current)

	projected := current
	if raw.ProjectedValue != nil && isFinite(*raw.ProjectedValue) {
		projected = *raw.ProjectedValue
	}
	projected = math.Max(cfg.MinValue, projected)

	confidence := float64(oracleDefaultConfidence)
	if raw.Confidence != nil && isFinite(*raw.Confidence) {
		confidence = *raw.Confidence
	}
	confidence = clamp(confidence, oracleMinConfidence, oracleMaxConfidence)

	factors := make([]ScoreFactor, 0, len(raw.Factors))
	for _, f := range raw.Factors {
		if !isFinite(f.Contribution) || !isFinite(f.Value) || !isFinite(f.Weight) {
			continue
		}
		factors = append(factors, f)
	}

	return ValueEstimate{
		CurrentValue:   current,
		ProjectedValue: projected,
		Confidence:     confidence,
		Source:         SourceOracle,
		Breakdown: &ValueBreakdown{
			Keyword:      subScoreOrDefault(raw.Keyword),
			Brandability: subScoreOrDefault(raw.Brandability),
			Memorability: subScoreOrDefault(raw.Memorability),
			SEO:          subScoreOrDefault(raw.SEO),
		},
		Reasoning: strings.TrimSpace(raw.Reasoning),
		Factors:   TopFactors(factors, valueExplainerCount),
	}
}

func subScoreOrDefault(v *float64) float64 {
	if v == nil || !isFinite(*v) {
		return oracleDefaultSubScore
	}
	return ClampScore(*v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
