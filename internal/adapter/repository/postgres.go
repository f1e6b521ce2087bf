package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS score_snapshots (
		id               UUID PRIMARY KEY,
		name             TEXT NOT NULL,
		tld              TEXT NOT NULL,
		token_id         TEXT NOT NULL DEFAULT '',
		expires_at       TIMESTAMPTZ,
		source           TEXT NOT NULL,
		risk             DOUBLE PRECISION NOT NULL,
		rarity           DOUBLE PRECISION NOT NULL,
		momentum         DOUBLE PRECISION NOT NULL,
		forecast         DOUBLE PRECISION NOT NULL,
		current_value    DOUBLE PRECISION NOT NULL,
		valuation_source TEXT NOT NULL,
		weights_version  TEXT NOT NULL,
		scores           JSONB NOT NULL,
		computed_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_score_snapshots_domain ON score_snapshots (name, tld, computed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_score_snapshots_computed ON score_snapshots (computed_at DESC);
`

const selectColumns = `id, name, tld, token_id, expires_at, source, scores`

type PostgresRepository struct {
	db *pgxpool.Pool
}

var _ ports.ScoreRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Connect opens a pool and checks the database is reachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the snapshot table and its indexes if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveBatch(ctx context.Context, snapshots []domain.ScoreSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO score_snapshots (id, name, tld, token_id, expires_at, source, risk, rarity, momentum,
			forecast, current_value, valuation_source, weights_version, scores, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	for _, s := range snapshots {
		scores, err := json.Marshal(s.Scores)
		if err != nil {
			return fmt.Errorf("failed to encode scores for %s: %w", s.FQDN(), err)
		}
		batch.Queue(query,
			s.ID,
			s.Name,
			s.TLD,
			s.TokenID,
			nullableTime(s.ExpiresAt),
			s.Source,
			s.Scores.Risk,
			s.Scores.Rarity,
			s.Scores.Momentum,
			s.Scores.Forecast,
			s.Scores.CurrentValue,
			string(s.Scores.ValuationSource),
			s.Scores.WeightsVersion,
			scores,
			s.Scores.ComputedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) FindLatest(ctx context.Context, name, tld string) (*domain.ScoreSnapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM score_snapshots
		WHERE name = $1 AND tld = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`

	snapshot, err := scanSnapshot(r.db.QueryRow(ctx, query, name, tld))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for %s.%s: %w", name, tld, ports.ErrNotFound)
		}
		return nil, err
	}

	return snapshot, nil
}

func (r *PostgresRepository) FindHistory(ctx context.Context, name, tld string, limit int) ([]domain.ScoreSnapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM score_snapshots
		WHERE name = $1 AND tld = $2
		ORDER BY computed_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, name, tld, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s.%s: %w", name, tld, err)
	}

	return collectSnapshots(rows)
}

func (r *PostgresRepository) FindSince(ctx context.Context, since time.Time, limit int) ([]domain.ScoreSnapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM score_snapshots
		WHERE computed_at >= $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots since %v: %w", since, err)
	}

	return collectSnapshots(rows)
}

func collectSnapshots(rows pgx.Rows) ([]domain.ScoreSnapshot, error) {
	defer rows.Close()

	var snapshots []domain.ScoreSnapshot

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*domain.ScoreSnapshot, error) {
	var (
		s         domain.ScoreSnapshot
		expiresAt *time.Time
		scores    []byte
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.TLD,
		&s.TokenID,
		&expiresAt,
		&s.Source,
		&scores,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if expiresAt != nil {
		s.ExpiresAt = *expiresAt
	}
	if err := json.Unmarshal(scores, &s.Scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores for %s: %w", s.FQDN(), err)
	}

	return &s, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
