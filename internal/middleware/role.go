package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tuition-marketplace/internal/access"
)

// RequireRole admits the request when the caller's persisted role is one of
// roles, or any active caller when roles is empty. The token's role is never
// trusted; on success the identity carries the live role.
func RequireRole(policy *access.Policy, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var idp *access.Identity
			if id, ok := CurrentIdentity(c); ok {
				idp = &id
			}
			live, err := policy.Authorize(c.Request().Context(), idp, roles...)
			if err != nil {
				return fail(c, err)
			}
			id := *idp
			id.Role = live
			SetIdentity(c, id)
			return next(c)
		}
	}
}
