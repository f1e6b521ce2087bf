package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func float(v float64) *float64 { return &v }

func sampleAttrs(name, tld string) domain.DomainAttributes {
	return domain.DomainAttributes{
		Name:         name,
		TLD:          tld,
		ExpiresAt:    fixedNow.Add(200 * 24 * time.Hour),
		RegistrarID:  1068,
		RenewalCount: 3,
		OfferCount:   5,
		Activity7d:   10,
		Activity30d:  20,
	}
}

type fakeOracle struct {
	enabled  bool
	calls    int32
	valuate  func(ctx context.Context, req ports.ValuationRequest) (*domain.OracleValuation, error)
	lastName atomic.Value
}

func (f *fakeOracle) Valuate(ctx context.Context, req ports.ValuationRequest) (*domain.OracleValuation, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastName.Store(req.Name)
	return f.valuate(ctx, req)
}

func (f *fakeOracle) IsEnabled() bool { return f.enabled }
func (f *fakeOracle) Name() string    { return "fake" }
func (f *fakeOracle) Calls() int      { return int(atomic.LoadInt32(&f.calls)) }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.ValueEstimate
	failGet bool
	failSet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]domain.ValueEstimate)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*domain.ValueEstimate, error) {
	if c.failGet {
		return nil, errors.New("cache down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value domain.ValueEstimate, ttl time.Duration) error {
	if c.failSet {
		return errors.New("cache down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

type staticSource struct {
	name    string
	domains []domain.DomainAttributes
	err     error
}

func (s *staticSource) FetchDomains(ctx context.Context) ([]domain.DomainAttributes, error) {
	return s.domains, s.err
}

func (s *staticSource) Name() string { return s.name }

type memoryRepo struct {
	mu        sync.Mutex
	saved     []domain.ScoreSnapshot
	failAfter int // fail every SaveBatch call after this many successes; -1 never
	calls     int
}

func (r *memoryRepo) SaveBatch(ctx context.Context, snapshots []domain.ScoreSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAfter >= 0 && r.calls > r.failAfter {
		return errors.New("db unavailable")
	}
	r.saved = append(r.saved, snapshots...)
	return nil
}

func (r *memoryRepo) FindLatest(ctx context.Context, name, tld string) (*domain.ScoreSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (r *memoryRepo) FindHistory(ctx context.Context, name, tld string, limit int) ([]domain.ScoreSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (r *memoryRepo) FindSince(ctx context.Context, since time.Time, limit int) ([]domain.ScoreSnapshot, error) {
	return nil, errors.New("not implemented")
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []ports.ScoreAlert
	err    error
}

func (n *recordingNotifier) NotifyHighRisk(alert ports.ScoreAlert) error {
	return n.record(alert)
}

func (n *recordingNotifier) NotifyExpiring(alert ports.ScoreAlert) error {
	return n.record(alert)
}

func (n *recordingNotifier) record(alert ports.ScoreAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}
