package rules

import (
	"fmt"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// BuildReason produces the audit record for an attempt chosen by sel.
func BuildReason(sel TierSelection, history []domain.Assignment) (domain.Reason, error) {
	switch sel.Tier {
	case domain.TierExternal:
		return domain.ExternalTierReason{Attempt: sel.Attempt, Limit: sel.Limit}, nil
	case domain.TierInternal:
		return domain.InternalTierReason{Attempt: sel.Attempt, Limit: sel.Limit}, nil
	case domain.TierPlantonista:
		return domain.PlantonistaFallbackReason{
			PreviousBrokerID: previousBroker(history),
			Attempts:         sel.ExternalAttempts + sel.InternalAttempts,
		}, nil
	default:
		return nil, fmt.Errorf("%w: tier %q", ErrInvalidInput, sel.Tier)
	}
}

func previousBroker(history []domain.Assignment) *string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsOwnerLink() {
			continue
		}
		id := history[i].BrokerID
		return &id
	}
	return nil
}
