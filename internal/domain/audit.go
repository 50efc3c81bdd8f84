package domain

import "time"

// AuditAction captures what happened to an assignment.
type AuditAction string

const (
	AuditActionCreated  AuditAction = "ASSIGNMENT_CREATED"
	AuditActionAccepted AuditAction = "ASSIGNMENT_ACCEPTED"
	AuditActionExpired  AuditAction = "ASSIGNMENT_EXPIRED"
)

// AuditRecord is an append-only snapshot of an assignment transition.
type AuditRecord struct {
	ID           string
	AssignmentID string
	ProspectID   string
	BrokerID     string
	Action       AuditAction
	Status       AssignmentStatus
	ReasonType   ReasonType
	Detail       map[string]any
	CreatedAt    time.Time
}

// StuckProspect is an operator-queue entry for a prospect no tier could serve.
type StuckProspect struct {
	ProspectID string
	PropertyID string
	Reason     string
	Attempts   int
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
