// Package router registers every endpoint with its guards.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/handler"
	"github.com/iliyamo/tuition-marketplace/internal/middleware"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// Handlers groups the handler sets mounted by Register.
type Handlers struct {
	Health       echo.HandlerFunc
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Tuitions     *handler.TuitionHandler
	Applications *handler.ApplicationHandler
	Payments     *handler.PaymentHandler
	Admin        *handler.AdminHandler
}

// Guards builds per-route middleware chains. Routes are guarded one by one
// rather than through root groups, so unknown paths still answer 404.
//
// Limit runs after JWTAuth on authenticated routes so that user based key
// strategies see the caller, and before the role lookup so rejected
// requests cost no store round trip. A nil Limit disables rate limiting.
type Guards struct {
	JWTSecret string
	Policy    *access.Policy
	Limit     echo.MiddlewareFunc
}

func (g Guards) limit() echo.MiddlewareFunc {
	if g.Limit == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return g.Limit
}

// public rate limits anonymous routes per IP.
func (g Guards) public() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{g.limit()}
}

// bearer requires a valid access token only.
func (g Guards) bearer() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(g.JWTSecret), g.limit()}
}

// roles requires a valid token and a live role among roles. With no roles
// any active user passes and the handler sees the live role.
func (g Guards) roles(roles ...string) []echo.MiddlewareFunc {
	return append(g.bearer(), middleware.RequireRole(g.Policy, roles...))
}

// Register mounts all routes on e.
func Register(e *echo.Echo, h Handlers, g Guards) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, g)
	RegisterUsers(e, h.Users, g)
	RegisterTuitions(e, h.Tuitions, g)
	RegisterApplications(e, h.Applications, g)
	RegisterPayments(e, h.Payments, g)
	RegisterAdmin(e, h.Admin, h.Tuitions, h.Users, g)
}

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers token issuance. Logout inspects the bearer header
// itself, so none of these routes carry the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	e.POST("/jwt", a.Issue, g.public()...)
	e.POST("/jwt/refresh", a.Refresh, g.public()...)
	e.POST("/logout", a.Logout, g.public()...)
}

func RegisterUsers(e *echo.Echo, u *handler.UserHandler, g Guards) {
	e.POST("/users", u.Register, g.public()...)
	e.GET("/tutors", u.Tutors, g.public()...)

	e.GET("/users", u.List, g.bearer()...)
	e.GET("/users/:email/role", u.Role, g.bearer()...)
	// live role needed to tell self edits from admin edits
	e.PATCH("/users/:email", u.Update, g.roles()...)
}

func RegisterTuitions(e *echo.Echo, t *handler.TuitionHandler, g Guards) {
	e.GET("/tuitions", t.List, g.public()...)
	e.GET("/tuitions/:id", t.Get, g.public()...)

	student := g.roles(model.RoleStudent)
	e.POST("/tuition", t.Create, student...)
	e.GET("/my-tuitions", t.Mine, student...)
	e.PATCH("/tuition/:id", t.Update, student...)
	e.DELETE("/tuition/:id", t.Delete, student...)
}

func RegisterApplications(e *echo.Echo, a *handler.ApplicationHandler, g Guards) {
	tutor := g.roles(model.RoleTutor)
	e.POST("/apply-tuition", a.Apply, tutor...)
	e.GET("/my-applications", a.Mine, tutor...)
	e.DELETE("/application/:id", a.Withdraw, tutor...)

	student := g.roles(model.RoleStudent)
	e.GET("/applications", a.ForStudent, student...)
	e.PATCH("/application-status/:id", a.SetStatus, student...)
}

func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, g Guards) {
	student := g.roles(model.RoleStudent)
	e.POST("/create-checkout-session", p.CreateSession, student...)
	e.POST("/payment-success", p.Success, student...)
	e.GET("/payments", p.List, g.roles()...)

	// authenticated by the provider's signature; provider retries are not limited
	e.POST("/webhooks/stripe", p.Webhook)
}

func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, t *handler.TuitionHandler, u *handler.UserHandler, g Guards) {
	admin := g.roles(model.RoleAdmin)
	e.GET("/admin-stats", a.AdminStats, admin...)
	e.PATCH("/admin/tuition-status/:id", t.SetStatus, admin...)
	e.DELETE("/user/:id", u.Delete, admin...)
}
