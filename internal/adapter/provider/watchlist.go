package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dometrics/dometrics/internal/adapter/resilient"
	"github.com/dometrics/dometrics/internal/core/domain"
)

// WatchListProvider reads one domain per line from a local file or a URL. Entries only
// carry a name and TLD, so they score on rarity alone.
type WatchListProvider struct {
	client *resilient.Client
	path   string
	url    string
}

func NewWatchListFile(path string) *WatchListProvider {
	return &WatchListProvider{path: path}
}

func NewWatchListURL(client *resilient.Client, url string) *WatchListProvider {
	return &WatchListProvider{client: client, url: url}
}

func (p *WatchListProvider) Name() string {
	return "watchlist"
}

func (p *WatchListProvider) FetchDomains(ctx context.Context) ([]domain.DomainAttributes, error) {
	if p.path != "" {
		f, err := os.Open(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open watch list: %w", err)
		}
		defer f.Close()
		return ParseWatchList(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch watch list from %s: %s", p.url, resp.Status)
	}

	return ParseWatchList(resp.Body)
}

// ParseWatchList skips blank lines and "#" or "//" comments, including trailing ones.
func ParseWatchList(r io.Reader) ([]domain.DomainAttributes, error) {
	var domains []domain.DomainAttributes
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			line = fields[0]
		}

		name, tld := domain.ParseDomainName(line)
		if name == "" || tld == "" {
			continue
		}

		domains = append(domains, domain.DomainAttributes{Name: name, TLD: tld})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	return domains, nil
}
