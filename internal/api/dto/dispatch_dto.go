package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/service"
)

// DispatchRequest is the optional body of POST /v1/prospects/:id/dispatch.
type DispatchRequest struct {
	PropertyID string `json:"property_id" validate:"omitempty,max=128,printascii"`
}

// ReasonView renders the tagged reason with a readable description.
type ReasonView struct {
	Record      json.RawMessage `json:"record"`
	Description string          `json:"description"`
}

// AssignmentView is the API representation of an assignment.
type AssignmentView struct {
	ID         string                  `json:"id"`
	ProspectID string                  `json:"prospect_id"`
	BrokerID   string                  `json:"broker_id"`
	BrokerKind domain.BrokerKind       `json:"broker_kind,omitempty"`
	Status     domain.AssignmentStatus `json:"status"`
	Tier       domain.Tier             `json:"tier,omitempty"`
	Reason     ReasonView              `json:"reason"`
	CreatedAt  time.Time               `json:"created_at"`
	Deadline   *time.Time              `json:"deadline,omitempty"`
	AcceptedAt *time.Time              `json:"accepted_at,omitempty"`
	ExpiredAt  *time.Time              `json:"expired_at,omitempty"`
}

// DispatchResponse wraps a dispatch outcome.
type DispatchResponse struct {
	Created    bool            `json:"created"`
	Assignment *AssignmentView `json:"assignment"`
}

// AcceptResponse reports a claim attempt.
type AcceptResponse struct {
	Accepted   bool            `json:"accepted"`
	Reason     string          `json:"reason,omitempty"`
	Assignment *AssignmentView `json:"assignment,omitempty"`
}

// ExpireResponse reports an operator force-expire.
type ExpireResponse struct {
	Expired    bool            `json:"expired"`
	Assignment *AssignmentView `json:"assignment,omitempty"`
	Next       *AssignmentView `json:"next,omitempty"`
}

// BrokerStatsResponse carries per-broker aggregates.
type BrokerStatsResponse struct {
	BrokerID          string  `json:"broker_id"`
	Received          int64   `json:"received"`
	Expired           int64   `json:"expired"`
	Accepted          int64   `json:"accepted"`
	AcceptedWithinSLA int64   `json:"accepted_within_sla"`
	ComplianceRate    float64 `json:"compliance_rate"`
}

// NewAssignmentView converts a domain assignment; nil stays nil.
func NewAssignmentView(a *domain.Assignment) *AssignmentView {
	if a == nil {
		return nil
	}
	view := &AssignmentView{
		ID:         a.ID,
		ProspectID: a.ProspectID,
		BrokerID:   a.BrokerID,
		BrokerKind: a.BrokerKind,
		Status:     a.Status,
		CreatedAt:  a.CreatedAt,
		Deadline:   a.Deadline,
		AcceptedAt: a.AcceptedAt,
		ExpiredAt:  a.ExpiredAt,
	}
	if tier, ok := a.Tier(); ok {
		view.Tier = tier
	}
	if a.Reason != nil {
		if raw, err := domain.MarshalReason(a.Reason); err == nil {
			view.Reason.Record = raw
		}
		view.Reason.Description = a.Reason.Describe()
	}
	return view
}

// NewAcceptResponse converts a service result.
func NewAcceptResponse(res service.AcceptResult) AcceptResponse {
	return AcceptResponse{
		Accepted:   res.Accepted,
		Reason:     res.Reason,
		Assignment: NewAssignmentView(res.Assignment),
	}
}

// NewBrokerStatsResponse converts aggregates.
func NewBrokerStatsResponse(s domain.BrokerStats) BrokerStatsResponse {
	return BrokerStatsResponse{
		BrokerID:          s.BrokerID,
		Received:          s.Received,
		Expired:           s.Expired,
		Accepted:          s.Accepted,
		AcceptedWithinSLA: s.AcceptedWithinSLA,
		ComplianceRate:    s.ComplianceRate,
	}
}
