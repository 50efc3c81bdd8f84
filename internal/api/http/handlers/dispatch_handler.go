package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-dispatch/internal/api/dto"
	"github.com/spec-kit/lead-dispatch/internal/auth"
	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/service"
	apperrors "github.com/spec-kit/lead-dispatch/pkg/util/errorutil"
)

// DispatchHandler exposes the dispatch engine over HTTP.
type DispatchHandler struct {
	service *service.DispatchService
}

// NewDispatchHandler constructs handler.
func NewDispatchHandler(dispatchService *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{service: dispatchService}
}

// Dispatch POST /v1/prospects/:id/dispatch.
func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	prospectID := c.Params("id")
	if err := dto.ValidateID("prospect_id", prospectID); err != nil {
		return err
	}
	var req dto.DispatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if err := dto.Validate(req); err != nil {
			return err
		}
	}

	outcome, err := h.service.Dispatch(c.UserContext(), prospectID, req.PropertyID)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.DispatchResponse{
		Created:    outcome.Created,
		Assignment: dto.NewAssignmentView(outcome.Assignment),
	}})
}

// Accept POST /v1/prospects/:id/accept. A rejected claim answers 409 with the
// reason in the body.
func (h *DispatchHandler) Accept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Broker == nil {
		return apperrors.NewUnauthorized("broker required")
	}
	prospectID := c.Params("id")
	if err := dto.ValidateID("prospect_id", prospectID); err != nil {
		return err
	}

	result, err := h.service.Accept(c.UserContext(), prospectID, principal.Broker.ID)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewAcceptResponse(result)})
}

// History GET /v1/prospects/:id/assignments.
func (h *DispatchHandler) History(c *fiber.Ctx) error {
	prospectID := c.Params("id")
	if err := dto.ValidateID("prospect_id", prospectID); err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), prospectID)
	if err != nil {
		return err
	}
	items := make([]*dto.AssignmentView, 0, len(history))
	for i := range history {
		items = append(items, dto.NewAssignmentView(&history[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ForceExpire POST /v1/assignments/:id/expire.
func (h *DispatchHandler) ForceExpire(c *fiber.Ctx) error {
	assignmentID := c.Params("id")
	if err := dto.ValidateID("assignment_id", assignmentID); err != nil {
		return err
	}
	outcome, err := h.service.ForceExpire(c.UserContext(), assignmentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ExpireResponse{
		Expired:    outcome.Expired,
		Assignment: dto.NewAssignmentView(outcome.Assignment),
		Next:       dto.NewAssignmentView(outcome.Next),
	}})
}

// BrokerStats GET /v1/brokers/:id/stats. Brokers may only read their own.
func (h *DispatchHandler) BrokerStats(c *fiber.Ctx) error {
	brokerID := c.Params("id")
	if err := dto.ValidateID("broker_id", brokerID); err != nil {
		return err
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.SubjectType == domain.SubjectTypeBroker && principal.SubjectID != brokerID {
		return apperrors.NewForbidden("brokers may only read their own stats")
	}
	stats, err := h.service.BrokerStats(c.UserContext(), brokerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBrokerStatsResponse(stats)})
}
