package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	apperrors "github.com/spec-kit/lead-dispatch/pkg/util/errorutil"
)

// RequireBroker ensures a broker is authenticated.
func RequireBroker() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeBroker || principal.Broker == nil {
			return apperrors.NewForbidden("broker required")
		}
		return c.Next()
	}
}

// RequireOperator ensures an operator is authenticated.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeOperator {
			return apperrors.NewForbidden("operator required")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (broker or operator).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
