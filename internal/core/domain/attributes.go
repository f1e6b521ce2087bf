package domain

import (
	"strings"
	"time"
)

type EventType string

const (
	EventTransfer  EventType = "transfer"
	EventOffer     EventType = "offer"
	EventSale      EventType = "sale"
	EventRenewal   EventType = "renewal"
	EventListing   EventType = "listing"
	EventTokenized EventType = "tokenized"
)

// DomainEvent is a single on-chain or marketplace event for a domain token.
type DomainEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// DomainAttributes is the raw record the engine scores. It is never mutated by the engine.
type DomainAttributes struct {
	Name         string        `json:"name"`
	TLD          string        `json:"tld"`
	TokenID      string        `json:"token_id,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at"`
	LockStatus   bool          `json:"lock_status"`
	RegistrarID  int           `json:"registrar_id"`
	RenewalCount int           `json:"renewal_count"`
	OfferCount   int           `json:"offer_count"`
	Activity7d   int           `json:"activity_7d"`
	Activity30d  int           `json:"activity_30d"`
	RecentEvents []DomainEvent `json:"recent_events,omitempty"`
}

// FQDN returns "name.tld", or just the name when no TLD is set.
func (a DomainAttributes) FQDN() string {
	if a.TLD == "" {
		return a.Name
	}
	return a.Name + "." + a.TLD
}

// normalizedName is the label used by every lookup: lower-case, no surrounding space.
func (a DomainAttributes) normalizedName() string {
	return strings.ToLower(strings.TrimSpace(a.Name))
}

func (a DomainAttributes) normalizedTLD() string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a.TLD), "."))
}

// DaysUntilExpiry returns the fractional number of days between now and ExpiresAt.
// Negative once the domain has expired.
func (a DomainAttributes) DaysUntilExpiry(now time.Time) float64 {
	return a.ExpiresAt.Sub(now).Hours() / 24
}

// Normalized returns a copy with name and TLD in their lookup form.
func (a DomainAttributes) Normalized() DomainAttributes {
	a.Name = a.normalizedName()
	a.TLD = a.normalizedTLD()
	return a
}
