package rules

import (
	"fmt"
	"time"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// ExpiryDecision explains whether an assignment breached its SLA.
type ExpiryDecision struct {
	Expired    bool
	Reason     string
	SLAMinutes int
	Deadline   *time.Time
}

// ClassifyExpiry decides whether the assignment is past its SLA at now.
func ClassifyExpiry(a *domain.Assignment, now time.Time, s domain.DispatchSettings) (ExpiryDecision, error) {
	if a == nil {
		return ExpiryDecision{}, fmt.Errorf("%w: nil assignment", ErrInvalidInput)
	}
	decision := ExpiryDecision{Deadline: a.Deadline}
	if tier, ok := a.Tier(); ok {
		decision.SLAMinutes = SLAMinutes(tier, s)
	}

	switch {
	case a.Deadline == nil:
		decision.Reason = "no SLA (auto-accepted or owner link)"
		return decision, nil
	case a.IsOwnerLink():
		decision.Reason = "owner link assignments never expire"
		return decision, nil
	case a.Status == domain.AssignmentStatusAccepted:
		decision.Reason = "already accepted"
		return decision, nil
	case a.Status == domain.AssignmentStatusExpired:
		decision.Expired = true
		decision.Reason = "already expired"
		return decision, nil
	}

	if !a.Deadline.After(now) {
		decision.Expired = true
		decision.Reason = fmt.Sprintf("SLA of %d minutes breached at %s", decision.SLAMinutes, a.Deadline.UTC().Format(time.RFC3339))
		return decision, nil
	}
	decision.Reason = fmt.Sprintf("within SLA, %s remaining", a.Deadline.Sub(now).Truncate(time.Second))
	return decision, nil
}
