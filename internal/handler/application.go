package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/service"
)

// Applications is implemented by *service.ApplicationService.
type Applications interface {
	Apply(ctx context.Context, caller access.Identity, in service.ApplyInput) (*model.Application, error)
	ForStudent(ctx context.Context, caller access.Identity, f model.ApplicationFilter, pr model.PageRequest) (service.Page[model.Application], error)
	Mine(ctx context.Context, caller access.Identity, status string, pr model.PageRequest) (service.Page[model.Application], error)
	SetStatus(ctx context.Context, caller access.Identity, id primitive.ObjectID, status string) (*model.Application, error)
	Withdraw(ctx context.Context, caller access.Identity, id primitive.ObjectID) error
}

type ApplicationHandler struct {
	Apps Applications
	Log  *zap.Logger
}

func NewApplicationHandler(a Applications, log *zap.Logger) *ApplicationHandler {
	if a == nil {
		panic("nil Applications passed to NewApplicationHandler")
	}
	return &ApplicationHandler{Apps: a, Log: log}
}

type applyReq struct {
	TuitionID      string  `json:"tuitionId"`
	TutorName      string  `json:"tutorName"`
	ExpectedSalary float64 `json:"expectedSalary"`
	Message        string  `json:"message"`
}

// Apply handles POST /apply-tuition.
func (h *ApplicationHandler) Apply(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req applyReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	tid, err := service.ParseID(req.TuitionID, "tuitionId")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	a, err := h.Apps.Apply(ctx, id, service.ApplyInput{
		TuitionID:      tid,
		TutorName:      req.TutorName,
		ExpectedSalary: req.ExpectedSalary,
		Message:        req.Message,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ForStudent handles GET /applications?tuitionId=&status=.
func (h *ApplicationHandler) ForStudent(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	f := model.ApplicationFilter{Status: strings.ToLower(c.QueryParam("status"))}
	if raw := c.QueryParam("tuitionId"); raw != "" {
		if f.TuitionID, err = service.ParseID(raw, "tuitionId"); err != nil {
			return respondError(c, h.Log, err)
		}
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Apps.ForStudent(ctx, id, f, pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Mine handles GET /my-applications.
func (h *ApplicationHandler) Mine(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Apps.Mine(ctx, id, strings.ToLower(c.QueryParam("status")), pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// SetStatus handles PATCH /application-status/:id.
func (h *ApplicationHandler) SetStatus(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	oid, err := pathID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	a, err := h.Apps.SetStatus(ctx, id, oid, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Withdraw handles DELETE /application/:id.
func (h *ApplicationHandler) Withdraw(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	oid, err := pathID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Apps.Withdraw(ctx, id, oid); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedCount": 1})
}
