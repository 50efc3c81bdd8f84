// Package memory provides in-process implementations of the repository
// interfaces. The service falls back to it when no Postgres DSN is set.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/repository"
)

// Store holds all entities behind a single mutex so conditional writes are
// evaluated and applied in one critical section.
type Store struct {
	mu          sync.Mutex
	properties  map[string]domain.Property
	brokers     map[string]domain.Broker
	prospects   map[string]domain.Prospect
	assignments []*domain.Assignment
	audit       []domain.AuditRecord
	stuck       map[string]domain.StuckProspect
}

// New returns an empty store.
func New() *Store {
	return &Store{
		properties: make(map[string]domain.Property),
		brokers:    make(map[string]domain.Broker),
		prospects:  make(map[string]domain.Prospect),
		stuck:      make(map[string]domain.StuckProspect),
	}
}

// PutProperty inserts or replaces a property.
func (s *Store) PutProperty(p domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
}

// PutBroker inserts or replaces a broker.
func (s *Store) PutBroker(b domain.Broker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.brokers[b.ID] = b
}

// RemoveBroker deletes a broker. Its assignments keep the kind recorded at creation.
func (s *Store) RemoveBroker(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.brokers, id)
}

// PutProspect inserts or replaces a prospect.
func (s *Store) PutProspect(p domain.Prospect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.prospects[p.ID] = p
}

func (s *Store) Assignments() repository.AssignmentRepository       { return &assignmentStore{s} }
func (s *Store) Brokers() repository.BrokerRepository               { return &brokerStore{s} }
func (s *Store) Properties() repository.PropertyRepository          { return &propertyStore{s} }
func (s *Store) Prospects() repository.ProspectRepository           { return &prospectStore{s} }
func (s *Store) Audit() repository.AuditRepository                  { return &auditStore{s} }
func (s *Store) StuckProspects() repository.StuckProspectRepository { return &stuckStore{s} }

type assignmentStore struct{ s *Store }

func (r *assignmentStore) Create(_ context.Context, assignment *domain.Assignment) error {
	if _, err := domain.MarshalReason(assignment.Reason); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.assignments {
		if existing.ProspectID == assignment.ProspectID && existing.Active() {
			return repository.ErrActiveAssignmentExists
		}
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	b, known := r.s.brokers[assignment.BrokerID]
	if assignment.BrokerKind == domain.BrokerKindUnknown && known {
		assignment.BrokerKind = b.Kind
	}
	stored := *assignment
	r.s.assignments = append(r.s.assignments, &stored)

	if known {
		at := assignment.CreatedAt
		b.LastAssignedAt = &at
		r.s.brokers[b.ID] = b
	}
	return nil
}

func (r *assignmentStore) GetByID(_ context.Context, id string) (*domain.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.ID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *assignmentStore) ListByProspect(_ context.Context, prospectID string) ([]domain.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Assignment
	for _, a := range r.s.assignments {
		if a.ProspectID == prospectID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *assignmentStore) Claim(_ context.Context, prospectID, brokerID string, now time.Time) (*domain.Assignment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.ProspectID != prospectID || a.BrokerID != brokerID || a.Status != domain.AssignmentStatusPending {
			continue
		}
		if a.Deadline != nil && !a.Deadline.After(now) {
			continue
		}
		at := now
		a.Status = domain.AssignmentStatusAccepted
		a.AcceptedAt = &at
		out := *a
		return &out, true, nil
	}
	return nil, false, nil
}

func (r *assignmentStore) ExpireIfDue(_ context.Context, id string, now time.Time) (*domain.Assignment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.ID != id {
			continue
		}
		if a.Status != domain.AssignmentStatusPending || a.Deadline == nil || a.Deadline.After(now) {
			return nil, false, nil
		}
		at := now
		a.Status = domain.AssignmentStatusExpired
		a.ExpiredAt = &at
		out := *a
		return &out, true, nil
	}
	return nil, false, nil
}

func (r *assignmentStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Assignment
	for _, a := range r.s.assignments {
		if a.Status == domain.AssignmentStatusPending && a.Deadline != nil && !a.Deadline.After(now) {
			result = append(result, *a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Deadline.Before(*result[j].Deadline)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *assignmentStore) BrokerStats(_ context.Context, brokerID string) (domain.BrokerStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := domain.BrokerStats{BrokerID: brokerID}
	for _, a := range r.s.assignments {
		if a.BrokerID != brokerID {
			continue
		}
		stats.Received++
		switch {
		case a.Status == domain.AssignmentStatusExpired:
			stats.Expired++
		case a.Status == domain.AssignmentStatusAccepted && a.Deadline != nil:
			stats.Accepted++
			if a.AcceptedAt != nil && !a.AcceptedAt.After(*a.Deadline) {
				stats.AcceptedWithinSLA++
			}
		}
	}
	return stats, nil
}
