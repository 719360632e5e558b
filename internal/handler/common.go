// Package handler holds the echo handlers. Handlers decode input, call one
// service method under a bounded context and render the result; every
// failure goes through respondError.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/middleware"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/service"
)

// storeTimeout bounds the store and provider calls of one request.
const storeTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// respondError renders err as {"error": kind, "message": text}. Server side
// failures are logged with their cause, which is never sent to the client.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("kind", string(kind)),
			zap.String("path", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": kind, "message": apperr.Message(err)})
}

func badRequest(msg string) error {
	return apperr.New(apperr.Validation, msg)
}

// caller returns the authenticated identity. Routes using it are always
// behind JWTAuth, so a missing identity is a wiring error reported as 401.
func caller(c echo.Context) (access.Identity, error) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return access.Identity{}, apperr.New(apperr.Unauthorized, "authentication required")
	}
	return id, nil
}

// pageRequest reads ?page and ?limit. Missing values take the defaults;
// malformed ones are a validation error.
func pageRequest(c echo.Context) (model.PageRequest, error) {
	var pr model.PageRequest
	for name, dst := range map[string]*int{"page": &pr.Page, "limit": &pr.Limit} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return pr, badRequest(name + " must be a positive integer")
		}
		*dst = n
	}
	return pr.Normalize(), nil
}

// pathID parses the :id path parameter as an ObjectID.
func pathID(c echo.Context) (primitive.ObjectID, error) {
	return service.ParseID(c.Param("id"), "id")
}

var (
	_ Users        = (*service.UserService)(nil)
	_ Tuitions     = (*service.TuitionService)(nil)
	_ Applications = (*service.ApplicationService)(nil)
	_ Payments     = (*service.PaymentService)(nil)
	_ Stats        = (*service.AnalyticsService)(nil)
)
