package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// Stats is implemented by *service.AnalyticsService.
type Stats interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
}

type AdminHandler struct {
	Stats Stats
	Log   *zap.Logger
}

func NewAdminHandler(s Stats, log *zap.Logger) *AdminHandler {
	if s == nil {
		panic("nil Stats passed to NewAdminHandler")
	}
	return &AdminHandler{Stats: s, Log: log}
}

// AdminStats handles GET /admin-stats.
func (h *AdminHandler) AdminStats(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	st, err := h.Stats.Stats(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}
