package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

type brokerStore struct{ s *Store }

func (r *brokerStore) GetByID(_ context.Context, id string) (*domain.Broker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.brokers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &b, nil
}

func (r *brokerStore) FindEligible(_ context.Context, property *domain.Property, tier domain.Tier, exclude []string) (*domain.Broker, error) {
	if property == nil {
		return nil, fmt.Errorf("property required")
	}
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var candidates []domain.Broker
	for _, b := range r.s.brokers {
		if !b.Active {
			continue
		}
		if _, skip := excluded[b.ID]; skip {
			continue
		}
		switch tier {
		case domain.TierExternal:
			if b.Kind != domain.BrokerKindExternal || !b.CoversProperty(property) {
				continue
			}
		case domain.TierInternal:
			if b.Kind != domain.BrokerKindInternal || !b.CoversProperty(property) {
				continue
			}
		case domain.TierPlantonista:
			if !b.OnDuty {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown tier %q", tier)
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ca, cb := a.CoversProperty(property), b.CoversProperty(property); ca != cb {
			return ca
		}
		if la, lb := a.LastAssignedAt, b.LastAssignedAt; (la == nil) != (lb == nil) {
			return la == nil
		} else if la != nil && !la.Equal(*lb) {
			return la.Before(*lb)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	chosen := candidates[0]
	return &chosen, nil
}

type propertyStore struct{ s *Store }

func (r *propertyStore) GetByID(_ context.Context, id string) (*domain.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.properties[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r *propertyStore) GetOwnerLink(_ context.Context, propertyID string) (*string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.properties[propertyID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !p.HasOwnerLink() {
		return nil, nil
	}
	owner := *p.OwnerBrokerID
	return &owner, nil
}

type prospectStore struct{ s *Store }

func (r *prospectStore) GetByID(_ context.Context, id string) (*domain.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r *prospectStore) ListStalled(_ context.Context, expiredBefore time.Time, limit int) ([]domain.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type chain struct {
		active      bool
		lastExpired time.Time
	}
	chains := make(map[string]*chain)
	for _, a := range r.s.assignments {
		c, ok := chains[a.ProspectID]
		if !ok {
			c = &chain{}
			chains[a.ProspectID] = c
		}
		if a.Active() {
			c.active = true
		} else if a.ExpiredAt != nil && a.ExpiredAt.After(c.lastExpired) {
			c.lastExpired = *a.ExpiredAt
		}
	}

	var result []domain.Prospect
	for id, c := range chains {
		if c.active || c.lastExpired.After(expiredBefore) {
			continue
		}
		if stuck, ok := r.s.stuck[id]; ok && stuck.ResolvedAt == nil {
			continue
		}
		if p, ok := r.s.prospects[id]; ok {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return chains[result[i].ID].lastExpired.Before(chains[result[j].ID].lastExpired)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type auditStore struct{ s *Store }

func (r *auditStore) Append(_ context.Context, record *domain.AuditRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if record.ID == "" {
		record.ID = fmt.Sprintf("audit-%d", len(r.s.audit)+1)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.s.audit = append(r.s.audit, *record)
	return nil
}

func (r *auditStore) ListByAssignment(_ context.Context, assignmentID string) ([]domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.AuditRecord
	for _, record := range r.s.audit {
		if record.AssignmentID == assignmentID {
			result = append(result, record)
		}
	}
	return result, nil
}

type stuckStore struct{ s *Store }

func (r *stuckStore) Record(_ context.Context, stuck *domain.StuckProspect) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stuck.CreatedAt = time.Now()
	stuck.ResolvedAt = nil
	r.s.stuck[stuck.ProspectID] = *stuck
	return nil
}

func (r *stuckStore) ListOpen(_ context.Context, limit int) ([]domain.StuckProspect, error) {
	if limit <= 0 {
		limit = 50
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.StuckProspect
	for _, stuck := range r.s.stuck {
		if stuck.ResolvedAt == nil {
			result = append(result, stuck)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *stuckStore) Resolve(_ context.Context, prospectID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stuck, ok := r.s.stuck[prospectID]
	if !ok || stuck.ResolvedAt != nil {
		return nil
	}
	now := time.Now()
	stuck.ResolvedAt = &now
	r.s.stuck[prospectID] = stuck
	return nil
}
