package domain

import "time"

// SubScores holds the four score dimensions before any valuation is attached.
type SubScores struct {
	Risk            float64
	Rarity          float64
	Momentum        float64
	Forecast        ForecastResult
	RiskFactors     []ScoreFactor
	RarityFactors   []ScoreFactor
	MomentumFactors []ScoreFactor
}

// CalculateSubScores computes risk, rarity, momentum and forecast.
// This is a pure domain function with no I/O dependencies: now is the reference time
// used for expiry and event windows.
func CalculateSubScores(attrs DomainAttributes, w ScoringWeights, now time.Time) SubScores {
	risk, riskFactors := CalculateRiskScore(attrs, w.Risk, now)
	rarity, rarityFactors := CalculateRarityScore(attrs, w.Rarity)
	momentum, momentumFactors := CalculateMomentumScore(attrs, w.Momentum, now)

	return SubScores{
		Risk:            risk,
		Rarity:          rarity,
		Momentum:        momentum,
		Forecast:        CalculateForecastScore(risk, rarity, momentum, w.Forecast),
		RiskFactors:     riskFactors,
		RarityFactors:   rarityFactors,
		MomentumFactors: momentumFactors,
	}
}

// AlgorithmicValue runs the built-in valuation for already computed sub-scores.
func (s SubScores) AlgorithmicValue(attrs DomainAttributes, w ScoringWeights) ValueEstimate {
	return EstimateValue(attrs, s.Risk, s.Rarity, s.Momentum, w.Valuation)
}

// WithValue assembles the final DomainScores.
func (s SubScores) WithValue(v ValueEstimate, weightsVersion string, now time.Time) DomainScores {
	return DomainScores{
		Risk:            s.Risk,
		Rarity:          s.Rarity,
		Momentum:        s.Momentum,
		Forecast:        s.Forecast.Score,
		ForecastLow:     s.Forecast.Low,
		ForecastHigh:    s.Forecast.High,
		CurrentValue:    v.CurrentValue,
		ProjectedValue:  v.ProjectedValue,
		ValueConfidence: v.Confidence,
		Explainers: Explainers{
			Risk:     s.RiskFactors,
			Rarity:   s.RarityFactors,
			Momentum: s.MomentumFactors,
			Forecast: s.Forecast.Factors,
			Value:    v.Factors,
		},
		ValuationSource: v.Source,
		Breakdown:       v.Breakdown,
		Reasoning:       v.Reasoning,
		WeightsVersion:  weightsVersion,
		ComputedAt:      now,
	}
}

// ScoreDomain is the fully synchronous path: sub-scores plus the algorithmic valuation.
func ScoreDomain(attrs DomainAttributes, w ScoringWeights, now time.Time) DomainScores {
	sub := CalculateSubScores(attrs, w, now)
	return sub.WithValue(sub.AlgorithmicValue(attrs, w), w.Version, now)
}
