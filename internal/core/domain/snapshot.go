package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScoreSnapshot is a persisted scoring result for one domain at one point in time.
type ScoreSnapshot struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	TLD       string       `json:"tld"`
	TokenID   string       `json:"token_id,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
	Source    string       `json:"source"` // registry source that supplied the attributes
	Scores    DomainScores `json:"scores"`
}

// NewScoreSnapshot stamps a new snapshot id on a scoring result.
func NewScoreSnapshot(attrs DomainAttributes, scores DomainScores, source string) ScoreSnapshot {
	return ScoreSnapshot{
		ID:        uuid.New(),
		Name:      attrs.normalizedName(),
		TLD:       attrs.normalizedTLD(),
		TokenID:   attrs.TokenID,
		ExpiresAt: attrs.ExpiresAt,
		Source:    source,
		Scores:    scores,
	}
}

// FQDN returns "name.tld".
func (s ScoreSnapshot) FQDN() string {
	if s.TLD == "" {
		return s.Name
	}
	return s.Name + "." + s.TLD
}
