package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/events"
	"github.com/spec-kit/lead-dispatch/internal/observability"
	"github.com/spec-kit/lead-dispatch/internal/repository"
	"github.com/spec-kit/lead-dispatch/internal/rules"
	"github.com/spec-kit/lead-dispatch/internal/settings"
	apperrors "github.com/spec-kit/lead-dispatch/pkg/util/errorutil"
)

// Rejection reasons returned to brokers whose accept did not go through.
const (
	RejectAlreadyClaimed = "already claimed"
	RejectExpired        = "expired"
	RejectNotAssigned    = "not assigned to you"
)

// ExpirySource labels what triggered an expiry.
type ExpirySource string

const (
	ExpirySourceSweeper  ExpirySource = "sweeper"
	ExpirySourceAccept   ExpirySource = "accept"
	ExpirySourceOperator ExpirySource = "operator"
)

// DispatchService runs the escalation chain for prospects.
type DispatchService struct {
	assignments repository.AssignmentRepository
	brokers     repository.BrokerRepository
	properties  repository.PropertyRepository
	prospects   repository.ProspectRepository
	stuck       repository.StuckProspectRepository
	settings    settings.Provider
	bus         events.Bus
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// DispatchDependencies bundles collaborators for the dispatch service.
type DispatchDependencies struct {
	AssignmentRepo repository.AssignmentRepository
	BrokerRepo     repository.BrokerRepository
	PropertyRepo   repository.PropertyRepository
	ProspectRepo   repository.ProspectRepository
	StuckRepo      repository.StuckProspectRepository
	Settings       settings.Provider
	Bus            events.Bus
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Clock          func() time.Time
}

// DispatchOutcome is the assignment a dispatch produced or found.
type DispatchOutcome struct {
	Assignment *domain.Assignment
	// Created is false when the prospect already had an active assignment.
	Created bool
}

// AcceptResult reports a broker's claim attempt.
type AcceptResult struct {
	Accepted   bool
	Reason     string
	Assignment *domain.Assignment
}

// ExpiryOutcome reports what HandleExpiry did.
type ExpiryOutcome struct {
	Expired    bool
	Assignment *domain.Assignment
	Next       *domain.Assignment
}

// NewDispatchService constructs the service.
func NewDispatchService(deps DispatchDependencies) *DispatchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DispatchService{
		assignments: deps.AssignmentRepo,
		brokers:     deps.BrokerRepo,
		properties:  deps.PropertyRepo,
		prospects:   deps.ProspectRepo,
		stuck:       deps.StuckRepo,
		settings:    deps.Settings,
		bus:         deps.Bus,
		logger:      logger,
		metrics:     deps.Metrics,
		now:         clock,
	}
}

// Dispatch creates the next assignment for a prospect. propertyID may be empty,
// in which case the prospect's own property is used.
func (s *DispatchService) Dispatch(ctx context.Context, prospectID, propertyID string) (DispatchOutcome, error) {
	prospect, err := s.prospects.GetByID(ctx, prospectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DispatchOutcome{}, notFound("prospect", "prospect_id", prospectID, ErrProspectNotFound)
		}
		return DispatchOutcome{}, storeError("load prospect", err)
	}
	if propertyID != "" && propertyID != prospect.PropertyID {
		return DispatchOutcome{}, propertyMismatch(prospectID, propertyID)
	}
	property, err := s.properties.GetByID(ctx, prospect.PropertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DispatchOutcome{}, notFound("property", "property_id", prospect.PropertyID, ErrPropertyNotFound)
		}
		return DispatchOutcome{}, storeError("load property", err)
	}

	history, err := s.assignments.ListByProspect(ctx, prospect.ID)
	if err != nil {
		return DispatchOutcome{}, storeError("load assignment history", err)
	}
	if active := activeAssignment(history); active != nil {
		return DispatchOutcome{Assignment: active}, nil
	}

	owner, err := s.properties.GetOwnerLink(ctx, property.ID)
	if err != nil {
		return DispatchOutcome{}, storeError("load owner link", err)
	}
	now := s.now()
	if owner != nil {
		return s.persist(ctx, prospect, domain.Broker{ID: *owner}, rules.PlanOwnerLink(), now)
	}

	cfg := s.settings.Get(ctx)
	sel, err := rules.SelectTier(history, cfg)
	if err != nil {
		return DispatchOutcome{}, apperrors.NewInternalError(err)
	}

	exclude := attemptedBrokers(history)
	var broker *domain.Broker
	for {
		broker, err = s.brokers.FindEligible(ctx, property, sel.Tier, exclude)
		if err != nil {
			return DispatchOutcome{}, storeError("resolve eligible broker", err)
		}
		if broker != nil {
			break
		}
		s.logger.Info("no eligible broker in tier",
			zap.String("prospect_id", prospect.ID),
			zap.String("tier", string(sel.Tier)))
		next, ok := rules.Escalate(sel, cfg)
		if !ok {
			return DispatchOutcome{}, s.markStuck(ctx, prospect, sel)
		}
		sel = next
	}

	plan, err := rules.PlanAttempt(sel, history, now, cfg)
	if err != nil {
		return DispatchOutcome{}, apperrors.NewInternalError(err)
	}
	return s.persist(ctx, prospect, *broker, plan, now)
}

func (s *DispatchService) persist(ctx context.Context, prospect *domain.Prospect, broker domain.Broker, plan rules.Plan, now time.Time) (DispatchOutcome, error) {
	assignment := &domain.Assignment{
		ID:         uuid.NewString(),
		ProspectID: prospect.ID,
		BrokerID:   broker.ID,
		BrokerKind: broker.Kind,
		Status:     plan.Status,
		Reason:     plan.Reason,
		CreatedAt:  now,
		Deadline:   plan.Deadline,
	}
	if plan.Status == domain.AssignmentStatusAccepted {
		acceptedAt := assignment.CreatedAt
		assignment.AcceptedAt = &acceptedAt
	}

	if err := s.assignments.Create(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrActiveAssignmentExists) {
			// A concurrent dispatch for the same prospect got there first.
			history, listErr := s.assignments.ListByProspect(ctx, prospect.ID)
			if listErr != nil {
				return DispatchOutcome{}, storeError("load assignment history", listErr)
			}
			return DispatchOutcome{Assignment: activeAssignment(history)}, nil
		}
		return DispatchOutcome{}, storeError("create assignment", err)
	}

	s.metrics.RecordAssignment(ctx, string(plan.Tier), string(assignment.Status))
	s.logger.Info("assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("prospect_id", assignment.ProspectID),
		zap.String("broker_id", assignment.BrokerID),
		zap.String("reason", assignment.Reason.Describe()))
	s.publish(ctx, events.EventAssignmentCreated, assignment)
	if s.stuck != nil {
		if err := s.stuck.Resolve(ctx, prospect.ID); err != nil {
			s.logger.Warn("resolve stuck entry failed", zap.String("prospect_id", prospect.ID), zap.Error(err))
		}
	}
	return DispatchOutcome{Assignment: assignment, Created: true}, nil
}

func (s *DispatchService) markStuck(ctx context.Context, prospect *domain.Prospect, sel rules.TierSelection) error {
	attempts := sel.ExternalAttempts + sel.InternalAttempts
	s.logger.Error("prospect stuck: plantonista tier has no eligible broker",
		zap.String("prospect_id", prospect.ID),
		zap.String("property_id", prospect.PropertyID),
		zap.Int("attempts", attempts))
	s.metrics.RecordStuck(ctx)

	entry := &domain.StuckProspect{
		ProspectID: prospect.ID,
		PropertyID: prospect.PropertyID,
		Reason:     "no eligible plantonista broker",
		Attempts:   attempts,
	}
	if s.stuck != nil {
		if err := s.stuck.Record(ctx, entry); err != nil {
			s.logger.Error("failed to queue stuck prospect", zap.String("prospect_id", prospect.ID), zap.Error(err))
		}
	}
	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.Event{
			ID:         uuid.NewString(),
			Type:       events.EventProspectStuck,
			ProspectID: prospect.ID,
			Timestamp:  s.now(),
			Payload: events.ProspectStuckPayload{
				PropertyID: prospect.PropertyID,
				Attempts:   attempts,
				Reason:     entry.Reason,
			},
		})
	}
	return noEligibleBroker(prospect.ID)
}

// Accept claims the broker's pending assignment for the prospect. A lost race
// or a late claim is reported in the result, not as an error. A late claim on
// a still pending assignment marks it expired; the follow-up assignment is left
// to the sweeper's stalled-chain recovery, so Accept never creates one.
func (s *DispatchService) Accept(ctx context.Context, prospectID, brokerID string) (AcceptResult, error) {
	now := s.now()
	claimed, ok, err := s.assignments.Claim(ctx, prospectID, brokerID, now)
	if err != nil {
		return AcceptResult{}, storeError("claim assignment", err)
	}
	if ok {
		s.metrics.RecordClaim(ctx, "accepted")
		s.logger.Info("assignment accepted",
			zap.String("assignment_id", claimed.ID),
			zap.String("prospect_id", prospectID),
			zap.String("broker_id", brokerID))
		s.publish(ctx, events.EventAssignmentAccepted, claimed)
		return AcceptResult{Accepted: true, Assignment: claimed}, nil
	}

	history, err := s.assignments.ListByProspect(ctx, prospectID)
	if err != nil {
		return AcceptResult{}, storeError("load assignment history", err)
	}
	own := latestFor(history, brokerID)
	result := AcceptResult{Assignment: own}
	switch {
	case own == nil:
		result.Reason = RejectNotAssigned
	case own.Status == domain.AssignmentStatusExpired:
		result.Reason = RejectExpired
	case own.Status == domain.AssignmentStatusPending && own.Deadline != nil && !own.Deadline.After(now):
		result.Reason = RejectExpired
		if expired, ok, err := s.markExpired(ctx, own.ID, ExpirySourceAccept); err != nil {
			s.logger.Warn("lazy expiry failed", zap.String("assignment_id", own.ID), zap.Error(err))
		} else if ok {
			result.Assignment = expired
		}
	default:
		result.Reason = RejectAlreadyClaimed
	}
	s.metrics.RecordClaim(ctx, "rejected")
	s.logger.Debug("claim rejected",
		zap.String("prospect_id", prospectID),
		zap.String("broker_id", brokerID),
		zap.String("reason", result.Reason))
	return result, nil
}

// HandleExpiry expires an overdue assignment and dispatches the next attempt.
// It is a no-op when the assignment is no longer pending or not yet due.
func (s *DispatchService) HandleExpiry(ctx context.Context, assignmentID string) (ExpiryOutcome, error) {
	return s.expire(ctx, assignmentID, ExpirySourceSweeper)
}

// ForceExpire is the operator entry point; it only takes effect once the
// assignment is due.
func (s *DispatchService) ForceExpire(ctx context.Context, assignmentID string) (ExpiryOutcome, error) {
	return s.expire(ctx, assignmentID, ExpirySourceOperator)
}

func (s *DispatchService) expire(ctx context.Context, assignmentID string, source ExpirySource) (ExpiryOutcome, error) {
	expired, ok, err := s.markExpired(ctx, assignmentID, source)
	if err != nil || !ok {
		return ExpiryOutcome{}, err
	}

	outcome := ExpiryOutcome{Expired: true, Assignment: expired}
	next, err := s.Dispatch(ctx, expired.ProspectID, "")
	if err != nil {
		return outcome, fmt.Errorf("escalate prospect %s: %w", expired.ProspectID, err)
	}
	outcome.Next = next.Assignment
	return outcome, nil
}

// markExpired classifies the assignment against the current settings and, when
// it is past its SLA, applies the conditional expiry. ok is false when the
// assignment is not due or another caller already moved it.
func (s *DispatchService) markExpired(ctx context.Context, assignmentID string, source ExpirySource) (*domain.Assignment, bool, error) {
	current, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, notFound("assignment", "assignment_id", assignmentID, ErrAssignmentNotFound)
		}
		return nil, false, storeError("load assignment", err)
	}

	now := s.now()
	decision, err := rules.ClassifyExpiry(current, now, s.settings.Get(ctx))
	if err != nil {
		return nil, false, apperrors.NewInternalError(err)
	}
	if !decision.Expired || current.Status != domain.AssignmentStatusPending {
		s.logger.Debug("expiry skipped",
			zap.String("assignment_id", assignmentID),
			zap.String("source", string(source)),
			zap.String("classification", decision.Reason))
		return nil, false, nil
	}

	expired, ok, err := s.assignments.ExpireIfDue(ctx, assignmentID, now)
	if err != nil {
		return nil, false, storeError("expire assignment", err)
	}
	if !ok {
		s.logger.Debug("expiry lost race", zap.String("assignment_id", assignmentID), zap.String("source", string(source)))
		return nil, false, nil
	}

	s.metrics.RecordExpiry(ctx, string(source))
	s.logger.Info("assignment expired",
		zap.String("assignment_id", expired.ID),
		zap.String("prospect_id", expired.ProspectID),
		zap.String("broker_id", expired.BrokerID),
		zap.String("source", string(source)),
		zap.String("classification", decision.Reason),
		zap.Int("sla_minutes", decision.SLAMinutes))
	s.emit(ctx, events.EventAssignmentExpired, events.AssignmentPayload{
		Assignment: *expired,
		Expiry: &events.ExpiryDetail{
			Source:         string(source),
			Classification: decision.Reason,
			SLAMinutes:     decision.SLAMinutes,
		},
	})
	return expired, true, nil
}

// Overdue lists pending assignments whose deadline has passed.
func (s *DispatchService) Overdue(ctx context.Context, limit int) ([]domain.Assignment, error) {
	overdue, err := s.assignments.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return nil, storeError("list overdue assignments", err)
	}
	return overdue, nil
}

// RecoverStalled re-dispatches prospects whose chain ended in an expiry
// without a follow-up assignment, e.g. because the store failed mid-escalation.
func (s *DispatchService) RecoverStalled(ctx context.Context, grace time.Duration, limit int) (int, error) {
	stalled, err := s.prospects.ListStalled(ctx, s.now().Add(-grace), limit)
	if err != nil {
		return 0, storeError("list stalled prospects", err)
	}
	recovered := 0
	for _, prospect := range stalled {
		outcome, err := s.Dispatch(ctx, prospect.ID, prospect.PropertyID)
		if err != nil {
			if !errors.Is(err, ErrNoEligibleBroker) {
				s.logger.Warn("stalled prospect recovery failed", zap.String("prospect_id", prospect.ID), zap.Error(err))
			}
			continue
		}
		if outcome.Created {
			recovered++
		}
	}
	return recovered, nil
}

// History returns every assignment of the prospect in creation order.
func (s *DispatchService) History(ctx context.Context, prospectID string) ([]domain.Assignment, error) {
	if _, err := s.prospects.GetByID(ctx, prospectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("prospect", "prospect_id", prospectID, ErrProspectNotFound)
		}
		return nil, storeError("load prospect", err)
	}
	history, err := s.assignments.ListByProspect(ctx, prospectID)
	if err != nil {
		return nil, storeError("load assignment history", err)
	}
	return history, nil
}

// BrokerStats aggregates a broker's outcomes and SLA compliance rate.
func (s *DispatchService) BrokerStats(ctx context.Context, brokerID string) (domain.BrokerStats, error) {
	if _, err := s.brokers.GetByID(ctx, brokerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BrokerStats{}, notFound("broker", "broker_id", brokerID, ErrBrokerNotFound)
		}
		return domain.BrokerStats{}, storeError("load broker", err)
	}
	stats, err := s.assignments.BrokerStats(ctx, brokerID)
	if err != nil {
		return domain.BrokerStats{}, storeError("aggregate broker stats", err)
	}
	stats.ComplianceRate = rules.ComplianceRate(stats.AcceptedWithinSLA, stats.Accepted, stats.Expired)
	return stats, nil
}

func (s *DispatchService) publish(ctx context.Context, eventType events.EventType, a *domain.Assignment) {
	if a == nil {
		return
	}
	s.emit(ctx, eventType, events.AssignmentPayload{Assignment: *a})
}

func (s *DispatchService) emit(ctx context.Context, eventType events.EventType, payload events.AssignmentPayload) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		ProspectID:   payload.Assignment.ProspectID,
		AssignmentID: payload.Assignment.ID,
		Timestamp:    s.now(),
		Payload:      payload,
	})
}

func activeAssignment(history []domain.Assignment) *domain.Assignment {
	for i := range history {
		if history[i].Active() {
			a := history[i]
			return &a
		}
	}
	return nil
}

func latestFor(history []domain.Assignment, brokerID string) *domain.Assignment {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].BrokerID == brokerID {
			a := history[i]
			return &a
		}
	}
	return nil
}

func attemptedBrokers(history []domain.Assignment) []string {
	seen := make(map[string]struct{}, len(history))
	ids := make([]string, 0, len(history))
	for _, a := range history {
		if _, ok := seen[a.BrokerID]; ok {
			continue
		}
		seen[a.BrokerID] = struct{}{}
		ids = append(ids, a.BrokerID)
	}
	return ids
}
