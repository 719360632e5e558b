package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

// JWTAuth validates the Bearer access token and attaches the decoded
// identity (email and role at issuance) to the request. It performs no
// store lookups.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return fail(c, apperr.New(apperr.Unauthorized, "missing bearer token"))
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return fail(c, apperr.Wrap(apperr.InvalidToken, "invalid or expired token", err))
			}
			SetIdentity(c, access.Identity{Email: strings.ToLower(claims.Subject), Role: claims.Role})
			return next(c)
		}
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}
