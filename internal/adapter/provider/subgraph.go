package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dometrics/dometrics/internal/adapter/resilient"
	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/rs/zerolog"
)

const (
	defaultSubgraphPageSize = 100
	maxSubgraphPages        = 200

	week  = 7 * 24 * time.Hour
	month = 30 * 24 * time.Hour
)

const namesQuery = `query Names($first: Int!, $skip: Int!) {
  names(first: $first, skip: $skip, orderBy: expiresAt) {
    name
    tokenId
    expiresAt
    transferLocked
    registrarIanaId
    renewalCount
    offerCount
    activities(where: {since: "30d"}) {
      type
      createdAt
    }
  }
}`

// SubgraphProvider pages through tokenized names exposed by a GraphQL subgraph.
type SubgraphProvider struct {
	client   *resilient.Client
	url      string
	pageSize int
	now      func() time.Time
	log      zerolog.Logger
}

func NewSubgraphProvider(client *resilient.Client, url string, pageSize int, log zerolog.Logger) *SubgraphProvider {
	if pageSize <= 0 {
		pageSize = defaultSubgraphPageSize
	}
	return &SubgraphProvider{
		client:   client,
		url:      url,
		pageSize: pageSize,
		now:      time.Now,
		log:      log.With().Str("source", "subgraph").Logger(),
	}
}

func (p *SubgraphProvider) Name() string {
	return "subgraph"
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type subgraphResponse struct {
	Data struct {
		Names []subgraphName `json:"names"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type subgraphName struct {
	Name            string             `json:"name"` // "crypto.io"
	TokenID         string             `json:"tokenId"`
	ExpiresAt       string             `json:"expiresAt"` // RFC3339
	TransferLocked  bool               `json:"transferLocked"`
	RegistrarIanaID int                `json:"registrarIanaId"`
	RenewalCount    int                `json:"renewalCount"`
	OfferCount      int                `json:"offerCount"`
	Activities      []subgraphActivity `json:"activities"`
}

type subgraphActivity struct {
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

func (p *SubgraphProvider) FetchDomains(ctx context.Context) ([]domain.DomainAttributes, error) {
	now := p.now()

	var domains []domain.DomainAttributes
	for page := 0; page < maxSubgraphPages; page++ {
		names, err := p.fetchPage(ctx, page*p.pageSize)
		if err != nil {
			return nil, fmt.Errorf("subgraph page %d: %w", page, err)
		}

		for _, n := range names {
			attrs, ok := toAttributes(n, now)
			if !ok {
				p.log.Debug().Str("name", n.Name).Msg("skipping unparseable name")
				continue
			}
			domains = append(domains, attrs)
		}

		if len(names) < p.pageSize {
			return domains, nil
		}
	}

	p.log.Warn().Int("pages", maxSubgraphPages).Msg("page limit reached, results truncated")
	return domains, nil
}

func (p *SubgraphProvider) fetchPage(ctx context.Context, skip int) ([]subgraphName, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:     namesQuery,
		Variables: map[string]interface{}{"first": p.pageSize, "skip": skip},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data subgraphResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode subgraph json: %w", err)
	}

	if len(data.Errors) > 0 {
		messages := make([]string, 0, len(data.Errors))
		for _, e := range data.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("subgraph errors: %s", strings.Join(messages, "; "))
	}

	return data.Data.Names, nil
}

// toAttributes derives the 7 and 30 day activity counts from the activity list.
func toAttributes(n subgraphName, now time.Time) (domain.DomainAttributes, bool) {
	name, tld := domain.ParseDomainName(n.Name)
	if name == "" || tld == "" {
		return domain.DomainAttributes{}, false
	}

	expiresAt, _ := time.Parse(time.RFC3339, n.ExpiresAt)

	attrs := domain.DomainAttributes{
		Name:         name,
		TLD:          tld,
		TokenID:      n.TokenID,
		ExpiresAt:    expiresAt,
		LockStatus:   n.TransferLocked,
		RegistrarID:  n.RegistrarIanaID,
		RenewalCount: n.RenewalCount,
		OfferCount:   n.OfferCount,
	}

	for _, a := range n.Activities {
		ts, err := time.Parse(time.RFC3339, a.CreatedAt)
		if err != nil || ts.After(now) {
			continue
		}
		age := now.Sub(ts)
		if age <= month {
			attrs.Activity30d++
			attrs.RecentEvents = append(attrs.RecentEvents, domain.DomainEvent{
				Type:      mapActivityType(a.Type),
				Timestamp: ts,
			})
		}
		if age <= week {
			attrs.Activity7d++
		}
	}

	return attrs, true
}

func mapActivityType(activity string) domain.EventType {
	switch strings.ToUpper(activity) {
	case "TRANSFER", "TRANSFERRED":
		return domain.EventTransfer
	case "OFFER", "OFFER_RECEIVED":
		return domain.EventOffer
	case "SALE", "PURCHASED":
		return domain.EventSale
	case "RENEWAL", "RENEWED":
		return domain.EventRenewal
	case "LISTING", "LISTED":
		return domain.EventListing
	case "TOKENIZED", "MINTED":
		return domain.EventTokenized
	default:
		return domain.EventType(strings.ToLower(activity))
	}
}
