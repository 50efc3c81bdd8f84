package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// AuditRepository stores assignment audit entries.
type AuditRepository interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Detail == nil {
		record.Detail = map[string]any{}
	}
	const query = `
        INSERT INTO assignment_audit (id, assignment_id, prospect_id, broker_id, action, status, reason_type, detail)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		record.ID,
		record.AssignmentID,
		record.ProspectID,
		record.BrokerID,
		record.Action,
		record.Status,
		record.ReasonType,
		record.Detail,
	).Scan(&record.CreatedAt)
}

func (r *auditRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]domain.AuditRecord, error) {
	const query = `
        SELECT id, assignment_id, prospect_id, broker_id, action, status, reason_type, detail, created_at
        FROM assignment_audit WHERE assignment_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.AssignmentID,
			&record.ProspectID,
			&record.BrokerID,
			&record.Action,
			&record.Status,
			&record.ReasonType,
			&record.Detail,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
