package domain

import (
	"math"
	"sort"
	"time"
)

// ValuationSource tells where CurrentValue / ProjectedValue came from.
type ValuationSource string

const (
	SourceAlgorithmic ValuationSource = "algorithmic"
	SourceOracle      ValuationSource = "oracle"
)

// ScoreFactor is one weighted input of a sub-score, kept for explanation.
// Contribution is Value × Weight for sub-scores and the incremental dollar change for
// valuation steps.
type ScoreFactor struct {
	Name         string  `json:"name" msgpack:"name"`
	Value        float64 `json:"value" msgpack:"value"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	Contribution float64 `json:"contribution" msgpack:"contribution"`
	Description  string  `json:"description" msgpack:"description"`
}

// Explainers groups the top factors of every sub-score.
type Explainers struct {
	Risk     []ScoreFactor `json:"risk" msgpack:"risk"`
	Rarity   []ScoreFactor `json:"rarity" msgpack:"rarity"`
	Momentum []ScoreFactor `json:"momentum" msgpack:"momentum"`
	Forecast []ScoreFactor `json:"forecast" msgpack:"forecast"`
	Value    []ScoreFactor `json:"value" msgpack:"value"`
}

// ValueBreakdown carries the oracle's 0-100 keyword/brandability style sub-scores.
type ValueBreakdown struct {
	Keyword      float64 `json:"keyword" msgpack:"keyword"`
	Brandability float64 `json:"brandability" msgpack:"brandability"`
	Memorability float64 `json:"memorability" msgpack:"memorability"`
	SEO          float64 `json:"seo" msgpack:"seo"`
}

// DomainScores is the full output of one scoring call. It is rebuilt on every call.
type DomainScores struct {
	Risk            float64         `json:"risk" msgpack:"risk"`
	Rarity          float64         `json:"rarity" msgpack:"rarity"`
	Momentum        float64         `json:"momentum" msgpack:"momentum"`
	Forecast        float64         `json:"forecast" msgpack:"forecast"`
	ForecastLow     float64         `json:"forecast_low" msgpack:"forecast_low"`
	ForecastHigh    float64         `json:"forecast_high" msgpack:"forecast_high"`
	CurrentValue    float64         `json:"current_value" msgpack:"current_value"`
	ProjectedValue  float64         `json:"projected_value" msgpack:"projected_value"`
	ValueConfidence float64         `json:"value_confidence" msgpack:"value_confidence"`
	Explainers      Explainers      `json:"explainers" msgpack:"explainers"`
	ValuationSource ValuationSource `json:"valuation_source" msgpack:"valuation_source"`
	Breakdown       *ValueBreakdown `json:"breakdown,omitempty" msgpack:"breakdown,omitempty"`
	Reasoning       string          `json:"reasoning,omitempty" msgpack:"reasoning,omitempty"`
	WeightsVersion  string          `json:"weights_version" msgpack:"weights_version"`
	ComputedAt      time.Time       `json:"computed_at" msgpack:"computed_at"`
}

// TopFactors returns the n factors with the largest |Contribution|, largest first.
// The input slice is not modified; ties keep their original order.
func TopFactors(factors []ScoreFactor, n int) []ScoreFactor {
	sorted := make([]ScoreFactor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Contribution) > math.Abs(sorted[j].Contribution)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func sumContributions(factors []ScoreFactor) float64 {
	total := 0.0
	for _, f := range factors {
		total += f.Contribution
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampScore bounds a sub-score to [0,100].
func ClampScore(v float64) float64 {
	return clamp(v, 0, 100)
}
