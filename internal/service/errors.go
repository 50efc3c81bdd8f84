package service

import (
	"errors"
	"net/http"

	apperrors "github.com/spec-kit/lead-dispatch/pkg/util/errorutil"
)

var (
	// ErrNoEligibleBroker means every tier, plantonista included, came back empty.
	ErrNoEligibleBroker = errors.New("no eligible broker in any tier")
	// ErrStoreUnavailable wraps retryable persistence failures.
	ErrStoreUnavailable   = errors.New("assignment store unavailable")
	ErrProspectNotFound   = errors.New("prospect not found")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrPropertyMismatch   = errors.New("prospect does not belong to property")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrBrokerNotFound     = errors.New("broker not found")
)

func storeError(message string, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewUnavailable(message, errors.Join(ErrStoreUnavailable, err))
}

func notFound(resource, key, id string, sentinel error) error {
	return &apperrors.DomainError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{key: id},
		Err:        sentinel,
	}
}

func noEligibleBroker(prospectID string) error {
	return &apperrors.DomainError{
		Code:       "NO_ELIGIBLE_BROKER",
		Message:    "no broker available in any tier, prospect queued for an operator",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"prospect_id": prospectID},
		Err:        ErrNoEligibleBroker,
	}
}

func propertyMismatch(prospectID, propertyID string) error {
	return &apperrors.DomainError{
		Code:       "VALIDATION_FAILED",
		Message:    "prospect does not belong to property",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"prospect_id": prospectID, "property_id": propertyID},
		Err:        ErrPropertyMismatch,
	}
}
