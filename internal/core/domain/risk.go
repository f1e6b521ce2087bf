package domain

import (
	"fmt"
	"time"
)

const riskExplainerCount = 3

// CalculateRiskScore scores how likely a domain is to lapse or be hard to trade.
// Higher is riskier. The result is clamped to [0,100] and comes with the top factors.
func CalculateRiskScore(attrs DomainAttributes, w RiskWeights, now time.Time) (float64, []ScoreFactor) {
	days := attrs.DaysUntilExpiry(now)
	expiryRisk := ExpiryRisk(days, w.ExpiryBuffer)

	lockRisk := 0.0
	lockDesc := "Transfers unlocked"
	if attrs.LockStatus {
		lockRisk = w.LockStatus.Penalty
		lockDesc = "Transfer lock active"
	}

	registrarRisk := 0.0
	registrarDesc := fmt.Sprintf("Registrar %d is trusted", attrs.RegistrarID)
	if !IsTrustedRegistrar(attrs.RegistrarID) {
		registrarRisk = w.Registrar.Penalty
		registrarDesc = fmt.Sprintf("Registrar %d is not on the trusted list", attrs.RegistrarID)
	}

	renewalRisk := 0.0
	renewalDesc := fmt.Sprintf("%d renewals on record", attrs.RenewalCount)
	if attrs.RenewalCount >= w.Renewal.Threshold {
		renewalRisk = w.Renewal.Bonus
		renewalDesc = fmt.Sprintf("Renewed %d times", attrs.RenewalCount)
	}

	liquidityRisk := 0.0
	liquidityDesc := fmt.Sprintf("%d active offers", attrs.OfferCount)
	if attrs.OfferCount >= w.Liquidity.Threshold {
		liquidityRisk = w.Liquidity.Bonus
		liquidityDesc = fmt.Sprintf("Liquid market with %d active offers", attrs.OfferCount)
	}

	factors := []ScoreFactor{
		newFactor("Expiry Buffer", expiryRisk, w.ExpiryBuffer.Weight,
			fmt.Sprintf("%.0f days until expiry", days)),
		newFactor("Lock Status", lockRisk, w.LockStatus.Weight, lockDesc),
		newFactor("Registrar Quality", registrarRisk, w.Registrar.Weight, registrarDesc),
		newFactor("Renewal History", renewalRisk, w.Renewal.Weight, renewalDesc),
		newFactor("Liquidity Signal", liquidityRisk, w.Liquidity.Weight, liquidityDesc),
	}

	return ClampScore(sumContributions(factors)), TopFactors(factors, riskExplainerCount)
}

// ExpiryRisk maps days-until-expiry to a 0-100 risk: 100 inside the high risk
// threshold, 0 beyond the low risk threshold, linear in between.
func ExpiryRisk(days float64, f ExpiryBufferFactor) float64 {
	if days <= f.HighRiskDays {
		return 100
	}
	if days >= f.LowRiskDays {
		return 0
	}
	return 100 - (days-f.HighRiskDays)/(f.LowRiskDays-f.HighRiskDays)*100
}

func newFactor(name string, value, weight float64, description string) ScoreFactor {
	return ScoreFactor{
		Name:         name,
		Value:        value,
		Weight:       weight,
		Contribution: value * weight,
		Description:  description,
	}
}
