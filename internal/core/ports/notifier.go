package ports

import "github.com/dometrics/dometrics/internal/core/domain"

// Notifier defines the interface for sending notifications to external systems
type Notifier interface {
	// NotifyHighRisk sends notification for domains whose risk crossed the threshold
	NotifyHighRisk(alert ScoreAlert) error

	// NotifyExpiring sends notification for domains close to expiry
	NotifyExpiring(alert ScoreAlert) error
}

type AlertKind string

const (
	AlertHighRisk AlertKind = "high_risk"
	AlertExpiring AlertKind = "expiring"
)

type ScoreAlert struct {
	Kind            AlertKind
	Domain          string
	Source          string
	Risk            float64
	Rarity          float64
	Forecast        float64
	CurrentValue    float64
	DaysToExpiry    float64
	ValuationSource domain.ValuationSource
	TopFactors      []domain.ScoreFactor
}
