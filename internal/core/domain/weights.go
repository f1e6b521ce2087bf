package domain

import (
	"fmt"
	"math"
	"time"
)

const weightSumTolerance = 0.001

// ScoringWeights is the full, versioned scoring configuration. It is treated as
// read-only once constructed; callers replace the whole instance instead of merging.
type ScoringWeights struct {
	Version   string          `json:"version" yaml:"version"`
	Risk      RiskWeights     `json:"risk" yaml:"risk"`
	Rarity    RarityWeights   `json:"rarity" yaml:"rarity"`
	Momentum  MomentumWeights `json:"momentum" yaml:"momentum"`
	Forecast  ForecastWeights `json:"forecast" yaml:"forecast"`
	Valuation ValuationConfig `json:"valuation" yaml:"valuation"`
}

type RiskWeights struct {
	ExpiryBuffer ExpiryBufferFactor `json:"expiry_buffer" yaml:"expiry_buffer"`
	LockStatus   PenaltyFactor      `json:"lock_status" yaml:"lock_status"`
	Registrar    PenaltyFactor      `json:"registrar" yaml:"registrar"`
	Renewal      ThresholdBonus     `json:"renewal" yaml:"renewal"`
	Liquidity    ThresholdBonus     `json:"liquidity" yaml:"liquidity"`
}

type ExpiryBufferFactor struct {
	Weight       float64 `json:"weight" yaml:"weight"`
	HighRiskDays float64 `json:"high_risk_days" yaml:"high_risk_days"`
	LowRiskDays  float64 `json:"low_risk_days" yaml:"low_risk_days"`
}

type PenaltyFactor struct {
	Weight  float64 `json:"weight" yaml:"weight"`
	Penalty float64 `json:"penalty" yaml:"penalty"`
}

// ThresholdBonus applies Bonus when the counted input reaches Threshold.
type ThresholdBonus struct {
	Weight    float64 `json:"weight" yaml:"weight"`
	Threshold int     `json:"threshold" yaml:"threshold"`
	Bonus     float64 `json:"bonus" yaml:"bonus"`
}

type RarityWeights struct {
	Length      LengthFactor      `json:"length" yaml:"length"`
	Dictionary  DictionaryFactor  `json:"dictionary" yaml:"dictionary"`
	TLDScarcity TLDScarcityFactor `json:"tld_scarcity" yaml:"tld_scarcity"`
	Demand      DemandFactor      `json:"demand" yaml:"demand"`
}

type LengthFactor struct {
	Weight float64 `json:"weight" yaml:"weight"`
	// names at or below ShortLength score 100, at or above LongLength score 0
	ShortLength int `json:"short_length" yaml:"short_length"`
	LongLength  int `json:"long_length" yaml:"long_length"`
}

type DictionaryFactor struct {
	Weight             float64 `json:"weight" yaml:"weight"`
	DictionaryBonus    float64 `json:"dictionary_bonus" yaml:"dictionary_bonus"`
	BrandableBonus     float64 `json:"brandable_bonus" yaml:"brandable_bonus"`
	BrandableMinLength int     `json:"brandable_min_length" yaml:"brandable_min_length"`
	BrandableMaxLength int     `json:"brandable_max_length" yaml:"brandable_max_length"`
}

type TLDScarcityFactor struct {
	Weight  float64               `json:"weight" yaml:"weight"`
	Bonuses map[TLDBucket]float64 `json:"bonuses" yaml:"bonuses"`
}

type DemandFactor struct {
	Weight   float64 `json:"weight" yaml:"weight"`
	PerOffer float64 `json:"per_offer" yaml:"per_offer"`
	Cap      float64 `json:"cap" yaml:"cap"`
}

type MomentumWeights struct {
	ActivityDelta ActivityDeltaFactor `json:"activity_delta" yaml:"activity_delta"`
	RecentEvents  RecentEventsFactor  `json:"recent_events" yaml:"recent_events"`
}

type ActivityDeltaFactor struct {
	Weight float64 `json:"weight" yaml:"weight"`
	// WeeklyToMonthly scales a 7 day count to a 30 day equivalent (30/7 ≈ 4.3).
	WeeklyToMonthly float64 `json:"weekly_to_monthly" yaml:"weekly_to_monthly"`
}

type RecentEventsFactor struct {
	Weight   float64       `json:"weight" yaml:"weight"`
	Window   time.Duration `json:"window" yaml:"window"`
	PerEvent float64       `json:"per_event" yaml:"per_event"`
	Cap      float64       `json:"cap" yaml:"cap"`
}

// ForecastWeights combine the other three sub-scores. RiskWeight is negative:
// higher risk lowers the forecast.
type ForecastWeights struct {
	Base           float64 `json:"base" yaml:"base"`
	MomentumWeight float64 `json:"momentum_weight" yaml:"momentum_weight"`
	RarityWeight   float64 `json:"rarity_weight" yaml:"rarity_weight"`
	RiskWeight     float64 `json:"risk_weight" yaml:"risk_weight"`
	IntervalBase   float64 `json:"interval_base" yaml:"interval_base"`
	IntervalRisk   float64 `json:"interval_risk" yaml:"interval_risk"`
}

type ValuationConfig struct {
	BaseValue         float64 `json:"base_value" yaml:"base_value"`
	MinValue          float64 `json:"min_value" yaml:"min_value"`
	MarketCap         float64 `json:"market_cap" yaml:"market_cap"`
	OfferFactor       float64 `json:"offer_factor" yaml:"offer_factor"`
	ActivityFactor    float64 `json:"activity_factor" yaml:"activity_factor"`
	RiskShrink        float64 `json:"risk_shrink" yaml:"risk_shrink"`
	RiskFloor         float64 `json:"risk_floor" yaml:"risk_floor"`
	BaseConfidence    float64 `json:"base_confidence" yaml:"base_confidence"`
	ConfidenceStep    float64 `json:"confidence_step" yaml:"confidence_step"`
	MaxConfidence     float64 `json:"max_confidence" yaml:"max_confidence"`
	ActivityThreshold int     `json:"activity_threshold" yaml:"activity_threshold"`
	OfferThreshold    int     `json:"offer_threshold" yaml:"offer_threshold"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Version: "1.0.0",
		Risk: RiskWeights{
			ExpiryBuffer: ExpiryBufferFactor{Weight: 0.45, HighRiskDays: 30, LowRiskDays: 180},
			LockStatus:   PenaltyFactor{Weight: 0.25, Penalty: 25},
			Registrar:    PenaltyFactor{Weight: 0.15, Penalty: 15},
			Renewal:      ThresholdBonus{Weight: 0.10, Threshold: 2, Bonus: -10},
			Liquidity:    ThresholdBonus{Weight: 0.05, Threshold: 3, Bonus: -5},
		},
		Rarity: RarityWeights{
			Length: LengthFactor{Weight: 0.40, ShortLength: 4, LongLength: 12},
			Dictionary: DictionaryFactor{
				Weight:             0.25,
				DictionaryBonus:    25,
				BrandableBonus:     15,
				BrandableMinLength: 4,
				BrandableMaxLength: 8,
			},
			TLDScarcity: TLDScarcityFactor{
				Weight: 0.25,
				Bonuses: map[TLDBucket]float64{
					BucketUltra:    25,
					BucketRare:     20,
					BucketCommon:   10,
					BucketAbundant: 0,
				},
			},
			Demand: DemandFactor{Weight: 0.10, PerOffer: 2, Cap: 10},
		},
		Momentum: MomentumWeights{
			ActivityDelta: ActivityDeltaFactor{Weight: 0.70, WeeklyToMonthly: 4.3},
			RecentEvents:  RecentEventsFactor{Weight: 0.30, Window: 72 * time.Hour, PerEvent: 33, Cap: 100},
		},
		Forecast: ForecastWeights{
			Base:           50,
			MomentumWeight: 0.5,
			RarityWeight:   0.3,
			RiskWeight:     -0.4,
			IntervalBase:   0.10,
			IntervalRisk:   0.10,
		},
		Valuation: ValuationConfig{
			BaseValue:         100,
			MinValue:          100,
			MarketCap:         3,
			OfferFactor:       0.1,
			ActivityFactor:    0.02,
			RiskShrink:        0.7,
			RiskFloor:         0.3,
			BaseConfidence:    70,
			ConfidenceStep:    10,
			MaxConfidence:     95,
			ActivityThreshold: 10,
			OfferThreshold:    3,
		},
	}
}

// Validate checks the factor weights of every weighted sub-score sum to 1.0 and that
// thresholds are ordered. The engine itself never calls it.
func (w ScoringWeights) Validate() error {
	sums := map[string]float64{
		"risk": w.Risk.ExpiryBuffer.Weight + w.Risk.LockStatus.Weight + w.Risk.Registrar.Weight +
			w.Risk.Renewal.Weight + w.Risk.Liquidity.Weight,
		"rarity": w.Rarity.Length.Weight + w.Rarity.Dictionary.Weight + w.Rarity.TLDScarcity.Weight +
			w.Rarity.Demand.Weight,
		"momentum": w.Momentum.ActivityDelta.Weight + w.Momentum.RecentEvents.Weight,
	}
	for _, name := range []string{"risk", "rarity", "momentum"} {
		if math.Abs(sums[name]-1.0) > weightSumTolerance {
			return fmt.Errorf("%s weights sum to %.4f, must sum to 1.0", name, sums[name])
		}
	}

	if w.Risk.ExpiryBuffer.LowRiskDays <= w.Risk.ExpiryBuffer.HighRiskDays {
		return fmt.Errorf("expiry low_risk_days (%.0f) must be greater than high_risk_days (%.0f)",
			w.Risk.ExpiryBuffer.LowRiskDays, w.Risk.ExpiryBuffer.HighRiskDays)
	}
	if w.Rarity.Length.LongLength <= w.Rarity.Length.ShortLength {
		return fmt.Errorf("length long_length (%d) must be greater than short_length (%d)",
			w.Rarity.Length.LongLength, w.Rarity.Length.ShortLength)
	}
	if w.Valuation.MinValue <= 0 {
		return fmt.Errorf("valuation min_value must be positive, got %.2f", w.Valuation.MinValue)
	}
	return nil
}
