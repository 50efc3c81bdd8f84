package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// AssignmentRepository persists dispatch attempts. Status changes happen only
// through Claim and ExpireIfDue, both single conditional writes.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	ListByProspect(ctx context.Context, prospectID string) ([]domain.Assignment, error)
	// Claim moves the broker's pending assignment for the prospect to ACCEPTED
	// when it is still within its deadline. ok is false when nothing matched.
	Claim(ctx context.Context, prospectID, brokerID string, now time.Time) (assignment *domain.Assignment, ok bool, err error)
	// ExpireIfDue moves a pending assignment past its deadline to EXPIRED.
	ExpireIfDue(ctx context.Context, id string, now time.Time) (assignment *domain.Assignment, ok bool, err error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Assignment, error)
	BrokerStats(ctx context.Context, brokerID string) (domain.BrokerStats, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

const assignmentColumns = `a.id, a.prospect_id, a.broker_id, a.broker_kind, a.status, a.reason,
               a.created_at, a.deadline, a.accepted_at, a.expired_at`

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	reason, err := domain.MarshalReason(assignment.Reason)
	if err != nil {
		return err
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create assignment: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// An empty kind is filled from the broker row. The stored kind is never updated.
	const insert = `
        INSERT INTO assignments (id, prospect_id, broker_id, broker_kind, status, reason, created_at, deadline, accepted_at)
        VALUES ($1,$2,$3,
                COALESCE(NULLIF($4,''), (SELECT kind FROM brokers WHERE id=$3), ''),
                $5,$6,$7,$8,$9)
        RETURNING broker_kind`
	if err := tx.QueryRow(ctx, insert,
		assignment.ID,
		assignment.ProspectID,
		assignment.BrokerID,
		string(assignment.BrokerKind),
		assignment.Status,
		reason,
		assignment.CreatedAt,
		assignment.Deadline,
		assignment.AcceptedAt,
	).Scan(&assignment.BrokerKind); err != nil {
		if isActiveAssignmentConflict(err) {
			return ErrActiveAssignmentExists
		}
		return fmt.Errorf("insert assignment: %w", err)
	}

	const touchBroker = `UPDATE brokers SET last_assigned_at=$2 WHERE id=$1`
	if _, err := tx.Exec(ctx, touchBroker, assignment.BrokerID, assignment.CreatedAt); err != nil {
		return fmt.Errorf("touch broker: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isActiveAssignmentConflict(err) {
			return ErrActiveAssignmentExists
		}
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments a
        WHERE a.id=$1`
	return scanAssignment(r.pool.QueryRow(ctx, query, id))
}

func (r *assignmentRepository) ListByProspect(ctx context.Context, prospectID string) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments a
        WHERE a.prospect_id=$1
        ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.pool.Query(ctx, query, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (r *assignmentRepository) Claim(ctx context.Context, prospectID, brokerID string, now time.Time) (*domain.Assignment, bool, error) {
	query := `
        WITH claimed AS (
            UPDATE assignments SET status='ACCEPTED', accepted_at=$3, updated_at=NOW()
            WHERE prospect_id=$1 AND broker_id=$2 AND status='PENDING'
              AND (deadline IS NULL OR deadline > $3)
            RETURNING *
        )
        SELECT ` + assignmentColumns + `
        FROM claimed a`
	return conditionalWrite(r.pool.QueryRow(ctx, query, prospectID, brokerID, now))
}

func (r *assignmentRepository) ExpireIfDue(ctx context.Context, id string, now time.Time) (*domain.Assignment, bool, error) {
	query := `
        WITH expired AS (
            UPDATE assignments SET status='EXPIRED', expired_at=$2, updated_at=NOW()
            WHERE id=$1 AND status='PENDING' AND deadline IS NOT NULL AND deadline <= $2
            RETURNING *
        )
        SELECT ` + assignmentColumns + `
        FROM expired a`
	return conditionalWrite(r.pool.QueryRow(ctx, query, id, now))
}

func (r *assignmentRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + assignmentColumns + `
        FROM assignments a
        WHERE a.status='PENDING' AND a.deadline <= $1
        ORDER BY a.deadline ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (r *assignmentRepository) BrokerStats(ctx context.Context, brokerID string) (domain.BrokerStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='EXPIRED'),
               COUNT(*) FILTER (WHERE status='ACCEPTED' AND deadline IS NOT NULL),
               COUNT(*) FILTER (WHERE status='ACCEPTED' AND deadline IS NOT NULL AND accepted_at <= deadline)
        FROM assignments WHERE broker_id=$1`
	stats := domain.BrokerStats{BrokerID: brokerID}
	if err := r.pool.QueryRow(ctx, query, brokerID).Scan(
		&stats.Received,
		&stats.Expired,
		&stats.Accepted,
		&stats.AcceptedWithinSLA,
	); err != nil {
		return domain.BrokerStats{}, err
	}
	return stats, nil
}

func conditionalWrite(row pgx.Row) (*domain.Assignment, bool, error) {
	assignment, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return assignment, true, nil
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var (
		assignment domain.Assignment
		reason     []byte
	)
	if err := row.Scan(
		&assignment.ID,
		&assignment.ProspectID,
		&assignment.BrokerID,
		&assignment.BrokerKind,
		&assignment.Status,
		&reason,
		&assignment.CreatedAt,
		&assignment.Deadline,
		&assignment.AcceptedAt,
		&assignment.ExpiredAt,
	); err != nil {
		return nil, err
	}
	decoded, err := domain.UnmarshalReason(reason)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", assignment.ID, err)
	}
	assignment.Reason = decoded
	return &assignment, nil
}

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	var result []domain.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *assignment)
	}
	return result, rows.Err()
}
