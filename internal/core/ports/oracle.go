package ports

import (
	"context"

	"github.com/dometrics/dometrics/internal/core/domain"
)

// ValuationRequest is what a valuation oracle receives for one domain.
type ValuationRequest struct {
	Name         string
	TLD          string
	OfferCount   int
	Activity7d   int
	Activity30d  int
	DaysToExpiry float64
	Risk         float64
	Rarity       float64
	Momentum     float64
}

// ValuationOracle is an external service estimating a domain's USD value.
// It may be slow, disabled or wrong; callers sanitize and fall back.
type ValuationOracle interface {
	Valuate(ctx context.Context, req ValuationRequest) (*domain.OracleValuation, error)
	IsEnabled() bool
	Name() string
}
