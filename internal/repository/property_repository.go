package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// PropertyRepository reads properties and their owner-broker link.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
	GetOwnerLink(ctx context.Context, propertyID string) (*string, error)
}

type propertyRepository struct {
	pool *pgxpool.Pool
}

// NewPropertyRepository builds repository.
func NewPropertyRepository(pool *pgxpool.Pool) PropertyRepository {
	return &propertyRepository{pool: pool}
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	const query = `SELECT id, state, city, owner_broker_id FROM properties WHERE id=$1`
	var property domain.Property
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&property.ID,
		&property.State,
		&property.City,
		&property.OwnerBrokerID,
	); err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *propertyRepository) GetOwnerLink(ctx context.Context, propertyID string) (*string, error) {
	const query = `SELECT owner_broker_id FROM properties WHERE id=$1`
	var owner *string
	if err := r.pool.QueryRow(ctx, query, propertyID).Scan(&owner); err != nil {
		return nil, err
	}
	if owner != nil && *owner == "" {
		return nil, nil
	}
	return owner, nil
}
