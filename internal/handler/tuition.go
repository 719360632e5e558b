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

// Tuitions is implemented by *service.TuitionService.
type Tuitions interface {
	Create(ctx context.Context, caller access.Identity, in service.TuitionInput) (*model.Tuition, error)
	Get(ctx context.Context, id primitive.ObjectID) (*model.Tuition, error)
	List(ctx context.Context, f model.TuitionFilter, pr model.PageRequest) (service.Page[model.Tuition], error)
	Mine(ctx context.Context, caller access.Identity, status string, pr model.PageRequest) (service.Page[model.Tuition], error)
	Update(ctx context.Context, caller access.Identity, id primitive.ObjectID, p model.TuitionPatch) (*model.Tuition, error)
	Delete(ctx context.Context, caller access.Identity, id primitive.ObjectID) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*model.Tuition, error)
}

type TuitionHandler struct {
	Tuitions Tuitions
	Log      *zap.Logger
}

func NewTuitionHandler(t Tuitions, log *zap.Logger) *TuitionHandler {
	if t == nil {
		panic("nil Tuitions passed to NewTuitionHandler")
	}
	return &TuitionHandler{Tuitions: t, Log: log}
}

type tuitionReq struct {
	StudentName string  `json:"studentName"`
	Title       string  `json:"title"`
	Subject     string  `json:"subject"`
	Class       string  `json:"class"`
	Location    string  `json:"location"`
	Budget      float64 `json:"budget"`
	Schedule    string  `json:"schedule"`
	Description string  `json:"description"`
}

type tuitionPatchReq struct {
	Title       *string  `json:"title"`
	Subject     *string  `json:"subject"`
	Class       *string  `json:"class"`
	Location    *string  `json:"location"`
	Budget      *float64 `json:"budget"`
	Schedule    *string  `json:"schedule"`
	Description *string  `json:"description"`
}

type statusReq struct {
	Status string `json:"status"`
}

// Create handles POST /tuition.
func (h *TuitionHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req tuitionReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Tuitions.Create(ctx, id, service.TuitionInput(req))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// List handles GET /tuitions with search, subject, class, status and paging.
func (h *TuitionHandler) List(c echo.Context) error {
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Tuitions.List(ctx, model.TuitionFilter{
		Search:  strings.TrimSpace(c.QueryParam("search")),
		Subject: strings.TrimSpace(c.QueryParam("subject")),
		Class:   strings.TrimSpace(c.QueryParam("class")),
		Status:  strings.ToLower(c.QueryParam("status")),
	}, pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /tuitions/:id.
func (h *TuitionHandler) Get(c echo.Context) error {
	oid, err := pathID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Tuitions.Get(ctx, oid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Mine handles GET /my-tuitions.
func (h *TuitionHandler) Mine(c echo.Context) error {
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

	page, err := h.Tuitions.Mine(ctx, id, strings.ToLower(c.QueryParam("status")), pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Update handles PATCH /tuition/:id.
func (h *TuitionHandler) Update(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	oid, err := pathID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req tuitionPatchReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Tuitions.Update(ctx, id, oid, model.TuitionPatch(req))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /tuition/:id.
func (h *TuitionHandler) Delete(c echo.Context) error {
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

	if err := h.Tuitions.Delete(ctx, id, oid); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedCount": 1})
}

// SetStatus handles PATCH /admin/tuition-status/:id.
func (h *TuitionHandler) SetStatus(c echo.Context) error {
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

	t, err := h.Tuitions.SetStatus(ctx, oid, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
