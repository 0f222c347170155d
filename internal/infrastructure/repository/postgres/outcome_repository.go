package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

// OutcomeRepository persists analysis outcomes for audit. Every
// decision the engine takes over a supplier description ends up here,
// including the failed ones.
type OutcomeRepository struct {
	db *sql.DB
}

func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *OutcomeRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_outcomes (
	id TEXT PRIMARY KEY,
	searched_description TEXT NOT NULL,
	supplier_code TEXT,
	product_found BOOLEAN NOT NULL DEFAULT FALSE,
	similarity INTEGER NOT NULL DEFAULT 0,
	confidence TEXT NOT NULL,
	product_match JSONB,
	action TEXT NOT NULL,
	registration_data JSONB,
	justification TEXT NOT NULL,
	registered BOOLEAN NOT NULL DEFAULT FALSE,
	linked BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_outcomes_action ON analysis_outcomes(action);
CREATE INDEX IF NOT EXISTS idx_analysis_outcomes_created_at ON analysis_outcomes(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save implements ports.OutcomeStore.
func (r *OutcomeRepository) Save(ctx context.Context, outcome *domain.AnalysisOutcome) error {
	matchJSON, err := marshalNullable(outcome.ProductMatch)
	if err != nil {
		return fmt.Errorf("marshal product match: %w", err)
	}
	registrationJSON, err := marshalNullable(outcome.RegistrationData)
	if err != nil {
		return fmt.Errorf("marshal registration data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_outcomes (
	id, searched_description, supplier_code, product_found, similarity, confidence, product_match,
	action, registration_data, justification, registered, linked, error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		outcome.ID, outcome.SearchedDescription, outcome.SupplierCode, outcome.ProductFound,
		outcome.Similarity, string(outcome.Confidence), matchJSON, string(outcome.Action),
		registrationJSON, outcome.Justification, outcome.Registered, outcome.Linked,
		outcome.Error, outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis outcome: %w", err)
	}
	return nil
}

// GetByID implements ports.OutcomeStore.
func (r *OutcomeRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisOutcome, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, searched_description, supplier_code, product_found, similarity, confidence, product_match,
	action, registration_data, justification, registered, linked, error_message, created_at
FROM analysis_outcomes
WHERE id = $1
`, id)

	var outcome domain.AnalysisOutcome
	var confidence, action string
	var matchRaw, registrationRaw []byte

	err := row.Scan(
		&outcome.ID, &outcome.SearchedDescription, &outcome.SupplierCode, &outcome.ProductFound,
		&outcome.Similarity, &confidence, &matchRaw, &action, &registrationRaw,
		&outcome.Justification, &outcome.Registered, &outcome.Linked, &outcome.Error, &outcome.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrOutcomeNotFound, "outcome.get", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan analysis outcome: %w", err)
	}

	outcome.Confidence = domain.Confidence(confidence)
	outcome.Action = domain.RequiredAction(action)
	if len(matchRaw) > 0 {
		var match domain.Candidate
		if err := json.Unmarshal(matchRaw, &match); err != nil {
			return nil, fmt.Errorf("unmarshal product match: %w", err)
		}
		outcome.ProductMatch = &match
	}
	if len(registrationRaw) > 0 {
		var data domain.RegistrationData
		if err := json.Unmarshal(registrationRaw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal registration data: %w", err)
		}
		outcome.RegistrationData = &data
	}
	return &outcome, nil
}

// ListRecent returns the newest outcomes, most recent first.
func (r *OutcomeRepository) ListRecent(ctx context.Context, limit int) ([]domain.AnalysisOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, searched_description, supplier_code, product_found, similarity, confidence,
	action, justification, registered, linked, error_message, created_at
FROM analysis_outcomes
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.AnalysisOutcome
	for rows.Next() {
		var outcome domain.AnalysisOutcome
		var confidence, action string
		if err := rows.Scan(
			&outcome.ID, &outcome.SearchedDescription, &outcome.SupplierCode, &outcome.ProductFound,
			&outcome.Similarity, &confidence, &action, &outcome.Justification,
			&outcome.Registered, &outcome.Linked, &outcome.Error, &outcome.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent outcome: %w", err)
		}
		outcome.Confidence = domain.Confidence(confidence)
		outcome.Action = domain.RequiredAction(action)
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent outcomes: %w", err)
	}
	return outcomes, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *domain.Candidate:
		if t == nil {
			return nil, nil
		}
	case *domain.RegistrationData:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
