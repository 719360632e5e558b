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

// Users is implemented by *service.UserService.
type Users interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, bool, error)
	RoleOf(ctx context.Context, email string) (string, error)
	List(ctx context.Context, f model.UserFilter, pr model.PageRequest) (service.Page[model.User], error)
	ListTutors(ctx context.Context, search string, pr model.PageRequest) (service.Page[model.User], error)
	Update(ctx context.Context, caller access.Identity, email string, p model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserHandler struct {
	Users Users
	Log   *zap.Logger
}

func NewUserHandler(u Users, log *zap.Logger) *UserHandler {
	if u == nil {
		panic("nil Users passed to NewUserHandler")
	}
	return &UserHandler{Users: u, Log: log}
}

type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type userPatchReq struct {
	Name       *string   `json:"name"`
	PhotoURL   *string   `json:"photoURL"`
	Phone      *string   `json:"phone"`
	Role       *string   `json:"role"`
	Status     *string   `json:"status"`
	Education  *string   `json:"education"`
	Subjects   *[]string `json:"subjects"`
	HourlyRate *float64  `json:"hourly_rate"`
}

func (r userPatchReq) patch() model.UserPatch {
	p := model.UserPatch{
		Name:       r.Name,
		PhotoURL:   r.PhotoURL,
		Phone:      r.Phone,
		Role:       r.Role,
		Status:     r.Status,
		Education:  r.Education,
		HourlyRate: r.HourlyRate,
	}
	if r.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*r.Role))
		p.Role = &role
	}
	if r.Subjects != nil {
		p.Subjects = append([]string{}, *r.Subjects...)
	}
	return p
}

// Register handles POST /users: 201 for a new user, 200 when the email was
// already registered, the password matched and only the login time moved.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, created, err := h.Users.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		PhotoURL: req.PhotoURL,
		Phone:    req.Phone,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"user": u, "created": created})
}

// List handles GET /users?email=&role=&page=&limit=.
func (h *UserHandler) List(c echo.Context) error {
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Users.List(ctx, model.UserFilter{
		Email:  c.QueryParam("email"),
		Role:   strings.ToLower(c.QueryParam("role")),
		Search: c.QueryParam("search"),
	}, pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Role handles GET /users/:email/role.
func (h *UserHandler) Role(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	role, err := h.Users.RoleOf(ctx, c.Param("email"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role": role})
}

// Tutors handles GET /tutors?search=.
func (h *UserHandler) Tutors(c echo.Context) error {
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Users.ListTutors(ctx, c.QueryParam("search"), pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Update handles PATCH /users/:email.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req userPatchReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, id, c.Param("email"), req.patch())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Delete handles DELETE /user/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	oid, err := pathID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, oid); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedCount": 1})
}
