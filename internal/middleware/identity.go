package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
)

const identityKey = "identity"

// SetIdentity stores id on the echo context and on the request context so
// that services reached through c.Request().Context() see it too.
func SetIdentity(c echo.Context, id access.Identity) {
	c.Set(identityKey, id)
	req := c.Request()
	c.SetRequest(req.WithContext(access.WithIdentity(req.Context(), id)))
}

// CurrentIdentity returns the identity set by JWTAuth, with the live role
// once RequireRole has run.
func CurrentIdentity(c echo.Context) (access.Identity, bool) {
	id, ok := c.Get(identityKey).(access.Identity)
	return id, ok && id.Email != ""
}

// userKey identifies the caller for rate limiting. Anonymous callers share
// the "anon" bucket of their IP.
func userKey(c echo.Context) string {
	if id, ok := CurrentIdentity(c); ok {
		return id.Email
	}
	return "anon"
}

func fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	return c.JSON(apperr.Status(kind), echo.Map{"error": kind, "message": apperr.Message(err)})
}
