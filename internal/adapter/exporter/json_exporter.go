package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/google/uuid"
)

// JSONExporter exports score snapshots as a single JSON bundle
type JSONExporter struct {
	repo ports.ScoreRepository
	now  func() time.Time
}

func NewJSONExporter(repo ports.ScoreRepository) *JSONExporter {
	return &JSONExporter{repo: repo, now: time.Now}
}

// FeedBundle is the top-level JSON feed document
type FeedBundle struct {
	Type        string                 `json:"type"`
	ID          string                 `json:"id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Since       time.Time              `json:"since"`
	Count       int                    `json:"count"`
	Snapshots   []domain.ScoreSnapshot `json:"snapshots"`
}

// Export generates the JSON feed of snapshots computed since the given time.
func (e *JSONExporter) Export(ctx context.Context, since time.Time) (string, error) {
	if since.IsZero() {
		since = e.now().Add(-defaultWindow)
	}

	snapshots, err := fetchSince(ctx, e.repo, since)
	if err != nil {
		return "", err
	}
	if snapshots == nil {
		snapshots = []domain.ScoreSnapshot{}
	}

	bundle := FeedBundle{
		Type:        "score-feed",
		ID:          fmt.Sprintf("feed--%s", uuid.New().String()),
		GeneratedAt: e.now().UTC(),
		Since:       since.UTC(),
		Count:       len(snapshots),
		Snapshots:   snapshots,
	}

	jsonData, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal feed bundle: %w", err)
	}

	return string(jsonData), nil
}
