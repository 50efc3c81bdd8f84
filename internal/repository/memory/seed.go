package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// Seed is the JSON document accepted by Load.
type Seed struct {
	Properties []struct {
		ID            string  `json:"id"`
		State         string  `json:"state"`
		City          string  `json:"city"`
		OwnerBrokerID *string `json:"owner_broker_id"`
	} `json:"properties"`
	Brokers []struct {
		ID       string            `json:"id"`
		Name     string            `json:"name"`
		Email    string            `json:"email"`
		Kind     domain.BrokerKind `json:"kind"`
		OnDuty   bool              `json:"on_duty"`
		Active   *bool             `json:"active"`
		Coverage []struct {
			State string `json:"state"`
			City  string `json:"city"`
		} `json:"coverage"`
	} `json:"brokers"`
	Prospects []struct {
		ID         string `json:"id"`
		PropertyID string `json:"property_id"`
	} `json:"prospects"`
}

// Load decodes a seed document into the store.
func (s *Store) Load(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, p := range seed.Properties {
		s.PutProperty(domain.Property{ID: p.ID, State: p.State, City: p.City, OwnerBrokerID: p.OwnerBrokerID})
	}
	for _, b := range seed.Brokers {
		switch b.Kind {
		case domain.BrokerKindExternal, domain.BrokerKindInternal:
		default:
			return fmt.Errorf("broker %s: unknown kind %q", b.ID, b.Kind)
		}
		broker := domain.Broker{
			ID:     b.ID,
			Name:   b.Name,
			Email:  b.Email,
			Kind:   b.Kind,
			OnDuty: b.OnDuty,
			Active: b.Active == nil || *b.Active,
		}
		for _, c := range b.Coverage {
			broker.Coverage = append(broker.Coverage, domain.Coverage{State: c.State, City: c.City})
		}
		s.PutBroker(broker)
	}
	for _, p := range seed.Prospects {
		if !s.hasProperty(p.PropertyID) {
			return fmt.Errorf("prospect %s: unknown property %q", p.ID, p.PropertyID)
		}
		s.PutProspect(domain.Prospect{ID: p.ID, PropertyID: p.PropertyID})
	}
	return nil
}

func (s *Store) hasProperty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.properties[id]
	return ok
}
