package service

import (
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
)

// AlertPolicy decides which snapshots are worth a notification. Zero thresholds disable
// the matching alert.
type AlertPolicy struct {
	RiskThreshold     float64
	ExpiryWarningDays float64
}

// Evaluate returns the alerts a snapshot triggers at now, high risk first.
func (p AlertPolicy) Evaluate(snap domain.ScoreSnapshot, now time.Time) []ports.ScoreAlert {
	var alerts []ports.ScoreAlert
	days := snap.ExpiresAt.Sub(now).Hours() / 24

	if p.RiskThreshold > 0 && snap.Scores.Risk >= p.RiskThreshold {
		alerts = append(alerts, newAlert(ports.AlertHighRisk, snap, days, snap.Scores.Explainers.Risk))
	}
	if p.ExpiryWarningDays > 0 && !snap.ExpiresAt.IsZero() && days >= 0 && days <= p.ExpiryWarningDays {
		alerts = append(alerts, newAlert(ports.AlertExpiring, snap, days, snap.Scores.Explainers.Risk))
	}

	return alerts
}

func newAlert(kind ports.AlertKind, snap domain.ScoreSnapshot, days float64, factors []domain.ScoreFactor) ports.ScoreAlert {
	return ports.ScoreAlert{
		Kind:            kind,
		Domain:          snap.FQDN(),
		Source:          snap.Source,
		Risk:            snap.Scores.Risk,
		Rarity:          snap.Scores.Rarity,
		Forecast:        snap.Scores.Forecast,
		CurrentValue:    snap.Scores.CurrentValue,
		DaysToExpiry:    days,
		ValuationSource: snap.Scores.ValuationSource,
		TopFactors:      factors,
	}
}

// dispatch sends one alert through the notifier method matching its kind.
func dispatch(n ports.Notifier, alert ports.ScoreAlert) error {
	switch alert.Kind {
	case ports.AlertExpiring:
		return n.NotifyExpiring(alert)
	default:
		return n.NotifyHighRisk(alert)
	}
}
