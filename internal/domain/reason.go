package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ReasonType tags the variant of a Reason.
type ReasonType string

const (
	ReasonOwnerLink           ReasonType = "OWNER_LINK"
	ReasonExternalTier        ReasonType = "EXTERNAL_TIER"
	ReasonInternalTier        ReasonType = "INTERNAL_TIER"
	ReasonPlantonistaFallback ReasonType = "PLANTONISTA_FALLBACK"
)

// ErrUnknownReason is returned when decoding a reason with an unrecognised tag.
var ErrUnknownReason = errors.New("unknown assignment reason")

// Reason records why an assignment exists. The set of implementations is closed:
// OwnerLinkReason, ExternalTierReason, InternalTierReason and PlantonistaFallbackReason.
type Reason interface {
	Type() ReasonType
	Describe() string
	isReason()
}

// OwnerLinkReason marks an assignment created from the property's owner-broker link.
type OwnerLinkReason struct{}

// ExternalTierReason marks the Nth attempt in the external broker pool.
type ExternalTierReason struct {
	Attempt int `json:"attempt"`
	Limit   int `json:"limit"`
}

// InternalTierReason marks the Nth attempt in the internal broker pool.
type InternalTierReason struct {
	Attempt int `json:"attempt"`
	Limit   int `json:"limit"`
}

// PlantonistaFallbackReason marks the unconditional on-duty fallback.
type PlantonistaFallbackReason struct {
	PreviousBrokerID *string `json:"previous_broker_id,omitempty"`
	Attempts         int     `json:"attempts"`
}

func (OwnerLinkReason) Type() ReasonType           { return ReasonOwnerLink }
func (ExternalTierReason) Type() ReasonType        { return ReasonExternalTier }
func (InternalTierReason) Type() ReasonType        { return ReasonInternalTier }
func (PlantonistaFallbackReason) Type() ReasonType { return ReasonPlantonistaFallback }

func (OwnerLinkReason) isReason()           {}
func (ExternalTierReason) isReason()        {}
func (InternalTierReason) isReason()        {}
func (PlantonistaFallbackReason) isReason() {}

func (OwnerLinkReason) Describe() string {
	return "owner-broker link on property"
}

func (r ExternalTierReason) Describe() string {
	return fmt.Sprintf("external tier attempt %d/%d", r.Attempt, r.Limit)
}

func (r InternalTierReason) Describe() string {
	return fmt.Sprintf("internal tier attempt %d/%d", r.Attempt, r.Limit)
}

func (r PlantonistaFallbackReason) Describe() string {
	if r.PreviousBrokerID == nil {
		return fmt.Sprintf("plantonista fallback after %d attempts", r.Attempts)
	}
	return fmt.Sprintf("plantonista fallback after %d attempts (previous broker %s)", r.Attempts, *r.PreviousBrokerID)
}

// ReasonTier maps a reason to the tier it was created in. Owner links have no tier.
func ReasonTier(r Reason) (Tier, bool) {
	switch r.(type) {
	case ExternalTierReason:
		return TierExternal, true
	case InternalTierReason:
		return TierInternal, true
	case PlantonistaFallbackReason:
		return TierPlantonista, true
	default:
		return "", false
	}
}

type reasonEnvelope struct {
	Type             ReasonType `json:"type"`
	Attempt          int        `json:"attempt,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	PreviousBrokerID *string    `json:"previous_broker_id,omitempty"`
	Attempts         int        `json:"attempts,omitempty"`
}

// MarshalReason encodes a reason as a tagged JSON object.
func MarshalReason(r Reason) ([]byte, error) {
	env := reasonEnvelope{}
	switch v := r.(type) {
	case OwnerLinkReason:
		env.Type = ReasonOwnerLink
	case ExternalTierReason:
		env.Type, env.Attempt, env.Limit = ReasonExternalTier, v.Attempt, v.Limit
	case InternalTierReason:
		env.Type, env.Attempt, env.Limit = ReasonInternalTier, v.Attempt, v.Limit
	case PlantonistaFallbackReason:
		env.Type, env.PreviousBrokerID, env.Attempts = ReasonPlantonistaFallback, v.PreviousBrokerID, v.Attempts
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownReason, r)
	}
	return json.Marshal(env)
}

// UnmarshalReason decodes a tagged JSON reason.
func UnmarshalReason(data []byte) (Reason, error) {
	var env reasonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode reason: %w", err)
	}
	switch env.Type {
	case ReasonOwnerLink:
		return OwnerLinkReason{}, nil
	case ReasonExternalTier:
		return ExternalTierReason{Attempt: env.Attempt, Limit: env.Limit}, nil
	case ReasonInternalTier:
		return InternalTierReason{Attempt: env.Attempt, Limit: env.Limit}, nil
	case ReasonPlantonistaFallback:
		return PlantonistaFallbackReason{PreviousBrokerID: env.PreviousBrokerID, Attempts: env.Attempts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReason, env.Type)
	}
}
