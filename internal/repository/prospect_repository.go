package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// ProspectRepository reads prospects created by lead intake.
type ProspectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Prospect, error)
	// ListStalled returns prospects whose chain was expired but never
	// re-dispatched: every assignment is EXPIRED, the latest one before
	// expiredBefore, and no open operator alert exists.
	ListStalled(ctx context.Context, expiredBefore time.Time, limit int) ([]domain.Prospect, error)
}

type prospectRepository struct {
	pool *pgxpool.Pool
}

// NewProspectRepository builds repository.
func NewProspectRepository(pool *pgxpool.Pool) ProspectRepository {
	return &prospectRepository{pool: pool}
}

func (r *prospectRepository) GetByID(ctx context.Context, id string) (*domain.Prospect, error) {
	const query = `SELECT id, property_id, created_at FROM prospects WHERE id=$1`
	var prospect domain.Prospect
	if err := r.pool.QueryRow(ctx, query, id).Scan(&prospect.ID, &prospect.PropertyID, &prospect.CreatedAt); err != nil {
		return nil, err
	}
	return &prospect, nil
}

func (r *prospectRepository) ListStalled(ctx context.Context, expiredBefore time.Time, limit int) ([]domain.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT p.id, p.property_id, p.created_at
        FROM prospects p
        JOIN (
            SELECT prospect_id, MAX(expired_at) AS last_expired
            FROM assignments
            GROUP BY prospect_id
            HAVING COUNT(*) FILTER (WHERE status <> 'EXPIRED') = 0
        ) chain ON chain.prospect_id = p.id
        WHERE chain.last_expired <= $1
          AND NOT EXISTS (
            SELECT 1 FROM stuck_prospects s
            WHERE s.prospect_id = p.id AND s.resolved_at IS NULL)
        ORDER BY chain.last_expired ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, expiredBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Prospect
	for rows.Next() {
		var prospect domain.Prospect
		if err := rows.Scan(&prospect.ID, &prospect.PropertyID, &prospect.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, prospect)
	}
	return result, rows.Err()
}
