package events

import (
	"time"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAssignmentCreated  EventType = "assignment.created"
	EventAssignmentAccepted EventType = "assignment.accepted"
	EventAssignmentExpired  EventType = "assignment.expired"
	EventProspectStuck      EventType = "prospect.stuck"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	ProspectID   string      `json:"prospect_id"`
	AssignmentID string      `json:"assignment_id,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// AssignmentPayload carries the assignment snapshot for created, accepted
// and expired events. Expiry is set on expired events only.
type AssignmentPayload struct {
	Assignment domain.Assignment `json:"assignment"`
	Expiry     *ExpiryDetail     `json:"expiry,omitempty"`
}

// ExpiryDetail records why an assignment was expired.
type ExpiryDetail struct {
	Source         string `json:"source"`
	Classification string `json:"classification"`
	SLAMinutes     int    `json:"sla_minutes"`
}

// ProspectStuckPayload describes a chain that ran out of brokers.
type ProspectStuckPayload struct {
	PropertyID string `json:"property_id"`
	Attempts   int    `json:"attempts"`
	Reason     string `json:"reason"`
}
