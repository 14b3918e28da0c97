package inference

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/HarshSankhe/behavior-guard-insight/internal/pagination"
	"github.com/HarshSankhe/behavior-guard-insight/internal/scoring"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Migrate creates the assessments table if it doesn't exist. cmd/migrate
// runs the same schema through goose; this path covers DATABASE_URL-only
// deployments without a migration step.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assessments (
			id                    VARCHAR(36) PRIMARY KEY,
			user_id               VARCHAR(255) NOT NULL,
			session_id            VARCHAR(255) NOT NULL,
			risk_score            INTEGER NOT NULL CHECK (risk_score >= 0 AND risk_score <= 100),
			factors               JSONB NOT NULL DEFAULT '{}',
			model_used            VARCHAR(255) NOT NULL,
			reconstruction_error  DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
			event_count           INTEGER NOT NULL DEFAULT 0,
			anomalies             JSONB NOT NULL DEFAULT '[]',
			feature_count         INTEGER NOT NULL DEFAULT 0,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_assessments_user
			ON assessments (user_id, created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_assessments_high_risk
			ON assessments (created_at DESC) WHERE risk_score >= 80;
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	factorsJSON, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	anomaliesJSON, err := json.Marshal(a.Details.Anomalies)
	if err != nil {
		return fmt.Errorf("failed to marshal anomalies: %w", err)
	}
	if a.Details.Anomalies == nil {
		anomaliesJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, user_id, session_id, risk_score, factors,
			model_used, reconstruction_error, confidence, event_count,
			anomalies, feature_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID, a.UserID, a.SessionID, a.RiskScore, factorsJSON,
		a.Details.ModelUsed, a.Details.ReconstructionError, a.Details.Confidence,
		a.Details.EventCount, anomaliesJSON, a.Details.FeatureCount, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*Assessment, error) {
	query := `
		SELECT id, user_id, session_id, risk_score, factors,
		       model_used, reconstruction_error, confidence, event_count,
		       anomalies, feature_count, created_at
		FROM assessments
		WHERE user_id = $1`
	args := []any{userID}

	if cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanAssessments(rows)
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessments WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) RecentHighRisk(ctx context.Context, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, risk_score, factors,
		       model_used, reconstruction_error, confidence, event_count,
		       anomalies, feature_count, created_at
		FROM assessments
		WHERE risk_score >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`, HighRiskScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list high-risk assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanAssessments(rows)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&n)
	return n, err
}

func scanAssessments(rows *sql.Rows) ([]*Assessment, error) {
	var result []*Assessment
	for rows.Next() {
		a := &Assessment{}
		var factorsJSON, anomaliesJSON []byte

		if err := rows.Scan(
			&a.ID, &a.UserID, &a.SessionID, &a.RiskScore, &factorsJSON,
			&a.Details.ModelUsed, &a.Details.ReconstructionError, &a.Details.Confidence,
			&a.Details.EventCount, &anomaliesJSON, &a.Details.FeatureCount, &a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}

		a.Factors = make(map[string]scoring.Factor)
		_ = json.Unmarshal(factorsJSON, &a.Factors)
		_ = json.Unmarshal(anomaliesJSON, &a.Details.Anomalies)
		result = append(result, a)
	}
	return result, rows.Err()
}
