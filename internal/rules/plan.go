package rules

import (
	"time"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// Plan is everything needed to persist the next assignment except the broker.
type Plan struct {
	Tier     domain.Tier
	Status   domain.AssignmentStatus
	Deadline *time.Time
	Reason   domain.Reason
}

// PlanOwnerLink describes the single assignment created for an owner-linked property.
func PlanOwnerLink() Plan {
	return Plan{
		Status: domain.AssignmentStatusAccepted,
		Reason: domain.OwnerLinkReason{},
	}
}

// PlanAttempt combines deadline, disposition and reason for a tiered attempt.
func PlanAttempt(sel TierSelection, history []domain.Assignment, now time.Time, s domain.DispatchSettings) (Plan, error) {
	deadline, err := ComputeDeadline(sel.Tier, false, now, s)
	if err != nil {
		return Plan{}, err
	}
	status, err := ComputeDisposition(sel.Tier, false)
	if err != nil {
		return Plan{}, err
	}
	reason, err := BuildReason(sel, history)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Tier: sel.Tier, Status: status, Deadline: deadline, Reason: reason}, nil
}
