package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
)

// DomainSource supplies raw domain records from a registry.
type DomainSource interface {
	FetchDomains(ctx context.Context) ([]domain.DomainAttributes, error)
	Name() string
}

// ScoreRepository persists score snapshots. Find methods take the normalized name and TLD.
type ScoreRepository interface {
	SaveBatch(ctx context.Context, snapshots []domain.ScoreSnapshot) error
	FindLatest(ctx context.Context, name, tld string) (*domain.ScoreSnapshot, error)
	FindHistory(ctx context.Context, name, tld string, limit int) ([]domain.ScoreSnapshot, error)
	FindSince(ctx context.Context, since time.Time, limit int) ([]domain.ScoreSnapshot, error)
}

// ScoreCache stores sanitized oracle valuations for a short time. Sub-scores are never
// cached. Get returns (nil, nil) on a miss.
type ScoreCache interface {
	Get(ctx context.Context, key string) (*domain.ValueEstimate, error)
	Set(ctx context.Context, key string, value domain.ValueEstimate, ttl time.Duration) error
}

// ErrNotFound is wrapped by repository lookups that match nothing.
var ErrNotFound = errors.New("not found")
