package domain

import "time"

// AssignmentStatus enumerates lifecycle states for an assignment.
type AssignmentStatus string

const (
	AssignmentStatusPending  AssignmentStatus = "PENDING"
	AssignmentStatusAccepted AssignmentStatus = "ACCEPTED"
	AssignmentStatusExpired  AssignmentStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentStatusAccepted || s == AssignmentStatusExpired
}

// Assignment is one attempt to route a prospect to a broker.
type Assignment struct {
	ID         string
	ProspectID string
	BrokerID   string
	// BrokerKind is the broker's kind when the assignment was created.
	// BrokerKindUnknown only on rows whose broker could not be resolved then.
	BrokerKind BrokerKind
	Status     AssignmentStatus
	Reason     Reason
	CreatedAt  time.Time
	Deadline   *time.Time
	AcceptedAt *time.Time
	ExpiredAt  *time.Time
}

// Active reports whether the assignment still holds the prospect (pending or won).
func (a *Assignment) Active() bool {
	return a.Status != AssignmentStatusExpired
}

// IsOwnerLink reports whether the assignment came from an owner-broker link.
func (a *Assignment) IsOwnerLink() bool {
	_, ok := a.Reason.(OwnerLinkReason)
	return ok
}

// IsPlantonista reports whether the assignment is the on-duty fallback.
func (a *Assignment) IsPlantonista() bool {
	_, ok := a.Reason.(PlantonistaFallbackReason)
	return ok
}

// Tier returns the tier recorded in the reason.
func (a *Assignment) Tier() (Tier, bool) {
	if a.Reason == nil {
		return "", false
	}
	return ReasonTier(a.Reason)
}
