package domain

import "fmt"

// ForecastResult is the forecast score with its symmetric, risk-widened band.
type ForecastResult struct {
	Score   float64
	Low     float64
	High    float64
	Factors []ScoreFactor
}

// CalculateForecastScore combines the already computed sub-scores.
//
//	forecast = base × (1 + wm×momentum + wr×rarity + wk×risk)   (fractions of 1, wk < 0)
//	interval = forecast × (intervalBase + intervalRisk×risk)
func CalculateForecastScore(risk, rarity, momentum float64, w ForecastWeights) ForecastResult {
	riskFrac := risk / 100
	rarityFrac := rarity / 100
	momentumFrac := momentum / 100

	factors := []ScoreFactor{
		{
			Name:         "Momentum",
			Value:        momentum,
			Weight:       w.MomentumWeight,
			Contribution: w.Base * w.MomentumWeight * momentumFrac,
			Description:  fmt.Sprintf("Momentum score %.0f", momentum),
		},
		{
			Name:         "Rarity",
			Value:        rarity,
			Weight:       w.RarityWeight,
			Contribution: w.Base * w.RarityWeight * rarityFrac,
			Description:  fmt.Sprintf("Rarity score %.0f", rarity),
		},
		{
			Name:         "Risk",
			Value:        risk,
			Weight:       w.RiskWeight,
			Contribution: w.Base * w.RiskWeight * riskFrac,
			Description:  fmt.Sprintf("Risk score %.0f", risk),
		},
	}

	forecast := ClampScore(w.Base * (1 + w.MomentumWeight*momentumFrac + w.RarityWeight*rarityFrac + w.RiskWeight*riskFrac))
	interval := forecast * (w.IntervalBase + w.IntervalRisk*riskFrac)

	return ForecastResult{
		Score:   forecast,
		Low:     ClampScore(forecast - interval),
		High:    ClampScore(forecast + interval),
		Factors: TopFactors(factors, len(factors)),
	}
}
