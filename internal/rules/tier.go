package rules

import (
	"fmt"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// TierSelection is the outcome of next-tier selection.
type TierSelection struct {
	Tier             domain.Tier
	Attempt          int
	Limit            int
	ExternalAttempts int
	InternalAttempts int
}

// CountAttempts tallies tiered attempts in history. Owner-link and plantonista
// entries are not attempts; a broker of unknown kind counts as external.
func CountAttempts(history []domain.Assignment) (external, internal int) {
	for i := range history {
		a := &history[i]
		if a.IsOwnerLink() || a.IsPlantonista() {
			continue
		}
		if a.BrokerKind == domain.BrokerKindInternal {
			internal++
		} else {
			external++
		}
	}
	return external, internal
}

// SelectTier picks the tier for the next attempt. Once any internal attempt
// exists the external tier is closed for the prospect.
func SelectTier(history []domain.Assignment, s domain.DispatchSettings) (TierSelection, error) {
	if err := validateHistory(history); err != nil {
		return TierSelection{}, err
	}
	external, internal := CountAttempts(history)
	sel := TierSelection{ExternalAttempts: external, InternalAttempts: internal}

	switch {
	case external < s.MaxExternalAttempts && internal == 0:
		sel.Tier = domain.TierExternal
		sel.Attempt = external + 1
		sel.Limit = s.MaxExternalAttempts
	case internal < s.MaxInternalAttempts:
		sel.Tier = domain.TierInternal
		sel.Attempt = internal + 1
		sel.Limit = s.MaxInternalAttempts
	default:
		sel.Tier = domain.TierPlantonista
		sel.Attempt = 1
		sel.Limit = 1
	}
	return sel, nil
}

// Escalate moves a selection to the next tier when its pool had no candidate.
// It returns false once the plantonista tier is exhausted.
func Escalate(sel TierSelection, s domain.DispatchSettings) (TierSelection, bool) {
	next := TierSelection{ExternalAttempts: sel.ExternalAttempts, InternalAttempts: sel.InternalAttempts}
	switch sel.Tier {
	case domain.TierExternal:
		if sel.InternalAttempts < s.MaxInternalAttempts {
			next.Tier = domain.TierInternal
			next.Attempt = sel.InternalAttempts + 1
			next.Limit = s.MaxInternalAttempts
			return next, true
		}
		fallthrough
	case domain.TierInternal:
		next.Tier = domain.TierPlantonista
		next.Attempt = 1
		next.Limit = 1
		return next, true
	default:
		return TierSelection{}, false
	}
}

// MaxChainLength is the most assignments a prospect can accumulate before the
// plantonista fallback concludes the chain.
func MaxChainLength(s domain.DispatchSettings) int {
	return max(s.MaxExternalAttempts, 0) + max(s.MaxInternalAttempts, 0) + 1
}

func validateHistory(history []domain.Assignment) error {
	if len(history) == 0 {
		return nil
	}
	prospectID := history[0].ProspectID
	for i := range history {
		if history[i].ProspectID == "" || history[i].ProspectID != prospectID {
			return fmt.Errorf("%w: history mixes prospects %q and %q", ErrInvalidInput, prospectID, history[i].ProspectID)
		}
		if history[i].Reason == nil {
			return fmt.Errorf("%w: assignment %s has no reason", ErrInvalidInput, history[i].ID)
		}
	}
	return nil
}
