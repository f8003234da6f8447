// Package runs stores bordereau runs so their results can be read back by
// reporting consumers.
package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/cession/internal/domain"
)

// Kind tells what a run was applied with
type Kind string

const (
	KindProgram    Kind = "program"
	KindTreatyBook Kind = "treaty_book"
)

// Run is one stored bordereau computation
type Run struct {
	ID              string                 `json:"id"`
	Kind            Kind                   `json:"kind"`
	ProgramName     string                 `json:"program_name,omitempty"`
	ClaimBasis      domain.ClaimBasis      `json:"claim_basis,omitempty"`
	CalculationDate domain.Date            `json:"calculation_date"`
	PolicyCount     int                    `json:"policy_count"`
	TotalExposure   float64                `json:"total_exposure"`
	TotalCededLayer float64                `json:"total_ceded_to_layer_100pct"`
	TotalCeded      float64                `json:"total_ceded_to_reinsurer"`
	TotalRetained   float64                `json:"total_retained_by_cedant"`
	Results         []*domain.PolicyResult `json:"results,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewRun builds a run from computed results, filling in the totals
func NewRun(kind Kind, results []*domain.PolicyResult) *Run {
	run := &Run{Kind: kind, PolicyCount: len(results), Results: results}
	for _, r := range results {
		run.TotalExposure += r.Exposure
		run.TotalCededLayer += r.CededToLayer100Pct
		run.TotalCeded += r.CededToReinsurer
		run.TotalRetained += r.RetainedByCedant
	}
	return run
}

// Repository handles runs database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new runs repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

// Create stores a run and returns its generated ID.
// ID and CreatedAt are set on the given run.
func (r *Repository) Create(run *Run) (string, error) {
	payload, err := json.Marshal(run.Results)
	if err != nil {
		return "", fmt.Errorf("failed to encode run results: %w", err)
	}

	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err = r.db.Exec(`
		INSERT INTO runs
		(id, kind, program_name, claim_basis, calculation_date, policy_count,
		 total_exposure, total_ceded_layer, total_ceded, total_retained, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Kind),
		run.ProgramName,
		string(run.ClaimBasis),
		run.CalculationDate.String(),
		run.PolicyCount,
		run.TotalExposure,
		run.TotalCededLayer,
		run.TotalCeded,
		run.TotalRetained,
		string(payload),
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Info().
		Str("run_id", run.ID).
		Str("kind", string(run.Kind)).
		Int("policies", run.PolicyCount).
		Msg("Run stored")

	return run.ID, nil
}

// Get returns a run with its results, or nil if it does not exist
func (r *Repository) Get(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, kind, program_name, claim_basis, calculation_date, policy_count,
		       total_exposure, total_ceded_layer, total_ceded, total_retained, created_at, results
		FROM runs WHERE id = ?
	`, id)

	var payload string
	run, err := scanRun(row, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(payload), &run.Results); err != nil {
		return nil, fmt.Errorf("failed to decode results of run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs without their results
func (r *Repository) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, kind, program_name, claim_basis, calculation_date, policy_count,
		       total_exposure, total_ceded_layer, total_ceded, total_retained, created_at
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run. It reports whether a run was removed.
func (r *Repository) Delete(id string) (bool, error) {
	res, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return n > 0, nil
}

// DeleteOlderThan removes runs created before cutoff and returns how many
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM runs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun reads the summary columns, plus the results column when payload is set
func scanRun(s scanner, payload *string) (*Run, error) {
	var (
		run             Run
		kind            string
		claimBasis      string
		calculationDate string
		createdAt       int64
	)
	dest := []interface{}{
		&run.ID, &kind, &run.ProgramName, &claimBasis, &calculationDate, &run.PolicyCount,
		&run.TotalExposure, &run.TotalCededLayer, &run.TotalCeded, &run.TotalRetained, &createdAt,
	}
	if payload != nil {
		dest = append(dest, payload)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	date, err := domain.ParseDate(calculationDate)
	if err != nil {
		return nil, err
	}
	run.Kind = Kind(kind)
	run.ClaimBasis = domain.ClaimBasis(claimBasis)
	run.CalculationDate = date
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &run, nil
}
