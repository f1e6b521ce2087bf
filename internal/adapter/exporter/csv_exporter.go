package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
)

const (
	defaultWindow = 24 * time.Hour
	maxFeedRows   = 10000
)

var csvHeader = []string{
	"id", "domain", "source", "token_id", "expires_at", "risk", "rarity", "momentum", "forecast",
	"forecast_low", "forecast_high", "current_value", "projected_value", "value_confidence",
	"valuation_source", "weights_version", "computed_at",
}

// CSVExporter exports score snapshots as a flat CSV feed for spreadsheets and BI tools
type CSVExporter struct {
	repo ports.ScoreRepository
}

func NewCSVExporter(repo ports.ScoreRepository) *CSVExporter {
	return &CSVExporter{repo: repo}
}

// Export generates a CSV feed of snapshots computed since the given time, newest first.
func (e *CSVExporter) Export(ctx context.Context, since time.Time) (string, error) {
	snapshots, err := fetchSince(ctx, e.repo, since)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	w := csv.NewWriter(&output)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, s := range snapshots {
		if err := w.Write(csvRecord(s)); err != nil {
			return "", fmt.Errorf("failed to write CSV row for %s: %w", s.FQDN(), err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	return output.String(), nil
}

func csvRecord(s domain.ScoreSnapshot) []string {
	expires := ""
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return []string{
		s.ID.String(),
		s.FQDN(),
		s.Source,
		s.TokenID,
		expires,
		formatFloat(s.Scores.Risk),
		formatFloat(s.Scores.Rarity),
		formatFloat(s.Scores.Momentum),
		formatFloat(s.Scores.Forecast),
		formatFloat(s.Scores.ForecastLow),
		formatFloat(s.Scores.ForecastHigh),
		formatFloat(s.Scores.CurrentValue),
		formatFloat(s.Scores.ProjectedValue),
		formatFloat(s.Scores.ValueConfidence),
		string(s.Scores.ValuationSource),
		s.Scores.WeightsVersion,
		s.Scores.ComputedAt.UTC().Format(time.RFC3339),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// fetchSince defaults to the last 24 hours when since is zero.
func fetchSince(ctx context.Context, repo ports.ScoreRepository, since time.Time) ([]domain.ScoreSnapshot, error) {
	if since.IsZero() {
		since = time.Now().Add(-defaultWindow)
	}

	snapshots, err := repo.FindSince(ctx, since, maxFeedRows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	return snapshots, nil
}
