package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/events"
	"github.com/spec-kit/lead-dispatch/internal/repository"
)

// AuditService appends an audit record for every assignment transition.
// Handlers only enqueue; a single writer goroutine started by Start drains the
// queue with a bounded timeout per record.
type AuditService struct {
	bus     events.Bus
	audit   repository.AuditRepository
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	queue   chan *domain.AuditRecord
	done    chan struct{}
}

// Default queue bounds for the audit writer.
const (
	DefaultAuditQueueSize    = 1024
	DefaultAuditWriteTimeout = 5 * time.Second
)

// NewAuditService creates the service.
func NewAuditService(bus events.Bus, audit repository.AuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		bus:     bus,
		audit:   audit,
		logger:  logger,
		timeout: DefaultAuditWriteTimeout,
		queue:   make(chan *domain.AuditRecord, DefaultAuditQueueSize),
		done:    make(chan struct{}),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.bus == nil {
		return
	}
	a.bus.Subscribe(events.EventAssignmentCreated, a.handleAssignment(domain.AuditActionCreated))
	a.bus.Subscribe(events.EventAssignmentAccepted, a.handleAssignment(domain.AuditActionAccepted))
	a.bus.Subscribe(events.EventAssignmentExpired, a.handleAssignment(domain.AuditActionExpired))
	a.bus.Subscribe(events.EventProspectStuck, a.handleProspectStuck)
}

// Start launches the writer goroutine. It is a no-op after the first call.
func (a *AuditService) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.closed {
		return
	}
	a.started = true
	go a.run()
}

// Close stops accepting records and waits for the queued ones to be written.
func (a *AuditService) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	started := a.started
	a.mu.Unlock()

	if started {
		<-a.done
	}
}

func (a *AuditService) run() {
	defer close(a.done)
	for record := range a.queue {
		a.write(record)
	}
}

func (a *AuditService) write(record *domain.AuditRecord) {
	if a.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.audit.Append(ctx, record); err != nil {
		a.logger.Warn("audit append failed",
			zap.String("assignment_id", record.AssignmentID),
			zap.String("action", string(record.Action)),
			zap.Error(err))
	}
}

func (a *AuditService) enqueue(record *domain.AuditRecord) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Warn("audit record dropped: writer closed", zap.String("assignment_id", record.AssignmentID))
		return
	}
	select {
	case a.queue <- record:
	default:
		a.logger.Warn("audit record dropped: queue full",
			zap.String("assignment_id", record.AssignmentID),
			zap.String("action", string(record.Action)))
	}
}

func (a *AuditService) handleAssignment(action domain.AuditAction) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.AssignmentPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		record := auditRecordFor(action, &payload.Assignment)
		if payload.Expiry != nil {
			record.Detail["expiry_source"] = payload.Expiry.Source
			record.Detail["expiry_reason"] = payload.Expiry.Classification
			record.Detail["sla_minutes"] = payload.Expiry.SLAMinutes
		}
		record.CreatedAt = event.Timestamp
		a.enqueue(record)
		return nil
	}
}

func (a *AuditService) handleProspectStuck(_ context.Context, event events.Event) error {
	a.logger.Warn("ProspectStuck", zap.String("prospect_id", event.ProspectID), zap.Any("payload", event.Payload))
	return nil
}

func auditRecordFor(action domain.AuditAction, assignment *domain.Assignment) *domain.AuditRecord {
	detail := map[string]any{
		"reason": assignment.Reason.Describe(),
	}
	if assignment.Deadline != nil {
		detail["deadline"] = assignment.Deadline.UTC()
	}
	if tier, ok := assignment.Tier(); ok {
		detail["tier"] = string(tier)
	}
	if assignment.BrokerKind != domain.BrokerKindUnknown {
		detail["broker_kind"] = string(assignment.BrokerKind)
	}
	return &domain.AuditRecord{
		AssignmentID: assignment.ID,
		ProspectID:   assignment.ProspectID,
		BrokerID:     assignment.BrokerID,
		Action:       action,
		Status:       assignment.Status,
		ReasonType:   assignment.Reason.Type(),
		Detail:       detail,
	}
}
