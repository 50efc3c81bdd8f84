package rules

import (
	"fmt"
	"time"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// SLAMinutes returns the acceptance window of a tier. Non-positive settings
// collapse to zero, which makes the assignment due immediately.
func SLAMinutes(tier domain.Tier, s domain.DispatchSettings) int {
	var minutes int
	switch tier {
	case domain.TierExternal:
		minutes = s.ExternalSLAMinutes
	case domain.TierInternal:
		minutes = s.InternalSLAMinutes
	}
	if minutes < 0 {
		return 0
	}
	return minutes
}

// ComputeDeadline returns when an attempt in tier must be accepted, or nil when
// the attempt carries no SLA.
func ComputeDeadline(tier domain.Tier, ownerLink bool, now time.Time, s domain.DispatchSettings) (*time.Time, error) {
	if ownerLink || tier == domain.TierPlantonista {
		return nil, nil
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: tier %q", ErrInvalidInput, tier)
	}
	deadline := now.Add(time.Duration(SLAMinutes(tier, s)) * time.Minute)
	return &deadline, nil
}

// ComputeDisposition returns the status a new assignment is created with.
func ComputeDisposition(tier domain.Tier, ownerLink bool) (domain.AssignmentStatus, error) {
	if ownerLink || tier == domain.TierPlantonista {
		return domain.AssignmentStatusAccepted, nil
	}
	if !tier.Valid() {
		return "", fmt.Errorf("%w: tier %q", ErrInvalidInput, tier)
	}
	return domain.AssignmentStatusPending, nil
}
