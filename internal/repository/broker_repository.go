package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// BrokerRepository resolves brokers and eligibility.
type BrokerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Broker, error)
	// FindEligible returns the next broker of tier for the property, skipping
	// exclude. A nil broker with nil error means the pool has no candidate.
	FindEligible(ctx context.Context, property *domain.Property, tier domain.Tier, exclude []string) (*domain.Broker, error)
}

type brokerRepository struct {
	pool *pgxpool.Pool
}

// NewBrokerRepository creates repository.
func NewBrokerRepository(pool *pgxpool.Pool) BrokerRepository {
	return &brokerRepository{pool: pool}
}

const brokerColumns = `b.id, b.name, b.email, b.kind, b.on_duty, b.active, b.last_assigned_at, b.created_at`

func (r *brokerRepository) GetByID(ctx context.Context, id string) (*domain.Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers b WHERE b.id=$1`
	broker, err := scanBroker(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT state, city FROM broker_coverage WHERE broker_id=$1 ORDER BY state, city`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Coverage
		if err := rows.Scan(&c.State, &c.City); err != nil {
			return nil, err
		}
		broker.Coverage = append(broker.Coverage, c)
	}
	return broker, rows.Err()
}

// FindEligible picks the least recently assigned broker. External and internal
// tiers require coverage of the property's area; the plantonista pool prefers
// covering brokers but falls back to any on-duty broker.
func (r *brokerRepository) FindEligible(ctx context.Context, property *domain.Property, tier domain.Tier, exclude []string) (*domain.Broker, error) {
	if property == nil {
		return nil, errors.New("property required")
	}
	if exclude == nil {
		exclude = []string{}
	}

	covers := `EXISTS (
            SELECT 1 FROM broker_coverage c
            WHERE c.broker_id = b.id AND UPPER(c.state) = UPPER($1)
              AND (c.city = '' OR UPPER(c.city) = UPPER($2)))`

	var tierClause string
	switch tier {
	case domain.TierExternal:
		tierClause = `b.kind = 'EXTERNAL' AND ` + covers
	case domain.TierInternal:
		tierClause = `b.kind = 'INTERNAL' AND ` + covers
	case domain.TierPlantonista:
		tierClause = `b.on_duty`
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	query := fmt.Sprintf(`SELECT %s FROM brokers b
        WHERE b.active AND %s AND NOT (b.id = ANY($3))
        ORDER BY %s DESC, b.last_assigned_at ASC NULLS FIRST, b.created_at ASC, b.id ASC
        LIMIT 1`, brokerColumns, tierClause, covers)

	broker, err := scanBroker(r.pool.QueryRow(ctx, query, property.State, property.City, exclude))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return broker, nil
}

func scanBroker(row pgx.Row) (*domain.Broker, error) {
	var broker domain.Broker
	if err := row.Scan(
		&broker.ID,
		&broker.Name,
		&broker.Email,
		&broker.Kind,
		&broker.OnDuty,
		&broker.Active,
		&broker.LastAssignedAt,
		&broker.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &broker, nil
}
