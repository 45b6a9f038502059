package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core/approval"
)

// superAdminMiddleware lets active superadmins through and stores their Profile in the context.
func superAdminMiddleware(orch *approval.Orchestrator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			profile, err := orch.Authorize(ctx.Request().Context(), contextCaller(ctx))
			if err != nil {
				return errors.Wrap(err, "authorizing superadmin")
			}
			ctx.Set(contextProfileKey, profile)
			return next(ctx)
		}
	}
}
