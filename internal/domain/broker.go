package domain

import (
	"strings"
	"time"
)

// BrokerKind separates partner brokers from in-house brokers.
type BrokerKind string

const (
	BrokerKindExternal BrokerKind = "EXTERNAL"
	BrokerKindInternal BrokerKind = "INTERNAL"
	// BrokerKindUnknown is used when the broker row can no longer be resolved.
	BrokerKindUnknown BrokerKind = ""
)

// Coverage is one geographic area a broker serves. Empty City covers the whole state.
type Coverage struct {
	State string
	City  string
}

// Covers reports whether the area includes the property.
func (c Coverage) Covers(p *Property) bool {
	if p == nil || !strings.EqualFold(c.State, p.State) {
		return false
	}
	return c.City == "" || strings.EqualFold(c.City, p.City)
}

// Broker is a real estate agent that can receive prospects.
type Broker struct {
	ID       string
	Name     string
	Email    string
	Kind     BrokerKind
	OnDuty   bool
	Active   bool
	Coverage []Coverage
	// LastAssignedAt drives round-robin among equally eligible brokers.
	LastAssignedAt *time.Time
	CreatedAt      time.Time
}

// CoversProperty reports whether any coverage area includes the property.
func (b *Broker) CoversProperty(p *Property) bool {
	for _, c := range b.Coverage {
		if c.Covers(p) {
			return true
		}
	}
	return false
}
