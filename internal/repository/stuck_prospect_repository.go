package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// StuckProspectRepository is the operator queue for prospects no tier could serve.
type StuckProspectRepository interface {
	Record(ctx context.Context, stuck *domain.StuckProspect) error
	ListOpen(ctx context.Context, limit int) ([]domain.StuckProspect, error)
	Resolve(ctx context.Context, prospectID string) error
}

type stuckProspectRepository struct {
	pool *pgxpool.Pool
}

// NewStuckProspectRepository builds repository.
func NewStuckProspectRepository(pool *pgxpool.Pool) StuckProspectRepository {
	return &stuckProspectRepository{pool: pool}
}

func (r *stuckProspectRepository) Record(ctx context.Context, stuck *domain.StuckProspect) error {
	const query = `
        INSERT INTO stuck_prospects (prospect_id, property_id, reason, attempts)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (prospect_id) DO UPDATE
            SET reason=EXCLUDED.reason, attempts=EXCLUDED.attempts, created_at=NOW(), resolved_at=NULL
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		stuck.ProspectID,
		stuck.PropertyID,
		stuck.Reason,
		stuck.Attempts,
	).Scan(&stuck.CreatedAt)
}

func (r *stuckProspectRepository) ListOpen(ctx context.Context, limit int) ([]domain.StuckProspect, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT prospect_id, property_id, reason, attempts, created_at, resolved_at
        FROM stuck_prospects WHERE resolved_at IS NULL
        ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StuckProspect
	for rows.Next() {
		var stuck domain.StuckProspect
		if err := rows.Scan(&stuck.ProspectID, &stuck.PropertyID, &stuck.Reason, &stuck.Attempts, &stuck.CreatedAt, &stuck.ResolvedAt); err != nil {
			return nil, err
		}
		result = append(result, stuck)
	}
	return result, rows.Err()
}

func (r *stuckProspectRepository) Resolve(ctx context.Context, prospectID string) error {
	const query = `UPDATE stuck_prospects SET resolved_at=NOW() WHERE prospect_id=$1 AND resolved_at IS NULL`
	_, err := r.pool.Exec(ctx, query, prospectID)
	return err
}
