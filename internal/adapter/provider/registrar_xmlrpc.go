package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog"
)

const registrarDateLayout = "2006-01-02"

// RegistrarProvider lists the domains held on a registrar account through an XML-RPC
// API that takes username and password as the first two parameters of every call.
type RegistrarProvider struct {
	username    string
	password    string
	registrarID int
	rpc         *xmlrpc.Client
	log         zerolog.Logger
}

// registrarDomain is one entry of the getDomains reply.
type registrarDomain struct {
	Domain         string `xmlrpc:"domain"`
	Paid           bool   `xmlrpc:"paid"`
	Registered     bool   `xmlrpc:"registered"`
	RenewalStatus  string `xmlrpc:"renewal_status"`
	ExpirationDate string `xmlrpc:"expiration_date"`
	ReferenceNo    int    `xmlrpc:"reference_no"`
}

// NewRegistrarProvider creates an XML-RPC client for endpoint. registrarID is the IANA
// id reported for every domain on the account.
func NewRegistrarProvider(endpoint, username, password string, registrarID int, timeout time.Duration, log zerolog.Logger) (*RegistrarProvider, error) {
	transport := &http.Transport{ResponseHeaderTimeout: timeout}

	c, err := xmlrpc.NewClient(endpoint, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}

	return &RegistrarProvider{
		username:    username,
		password:    password,
		registrarID: registrarID,
		rpc:         c,
		log:         log.With().Str("source", "registrar").Logger(),
	}, nil
}

func (p *RegistrarProvider) Name() string {
	return "registrar"
}

func (p *RegistrarProvider) FetchDomains(ctx context.Context) ([]domain.DomainAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var reply []registrarDomain
	if err := p.rpc.Call("getDomains", []interface{}{p.username, p.password}, &reply); err != nil {
		return nil, fmt.Errorf("getDomains failed: %w", err)
	}

	p.log.Debug().
		Int("domains", len(reply)).
		Dur("duration_ms", time.Since(start)).
		Msg("registrar API call successful")

	domains := make([]domain.DomainAttributes, 0, len(reply))
	for _, d := range reply {
		if !d.Registered {
			continue
		}
		name, tld := domain.ParseDomainName(d.Domain)
		if name == "" || tld == "" {
			continue
		}

		expiresAt, err := time.Parse(registrarDateLayout, d.ExpirationDate)
		if err != nil {
			p.log.Debug().Str("domain", d.Domain).Str("expiration_date", d.ExpirationDate).Msg("unparseable expiry")
		}

		domains = append(domains, domain.DomainAttributes{
			Name:        name,
			TLD:         tld,
			ExpiresAt:   expiresAt,
			RegistrarID: p.registrarID,
			// a paid, normally renewing domain has been renewed at least once
			RenewalCount: renewalCount(d),
		})
	}

	return domains, nil
}

func renewalCount(d registrarDomain) int {
	if d.Paid && d.RenewalStatus == "NORMAL" {
		return 1
	}
	return 0
}
