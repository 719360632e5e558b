package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/middleware"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

const secret = "router-secret"

type fixedRoles map[string]string

func (f fixedRoles) RoleOf(_ context.Context, email string) (string, bool, error) {
	return f[email], true, nil
}

// limitSpy records who each limited request was attributed to.
type limitSpy struct{ seen []string }

func (l *limitSpy) mw(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		who := "anon"
		if id, ok := middleware.CurrentIdentity(c); ok {
			who = id.Email
		}
		l.seen = append(l.seen, who)
		return next(c)
	}
}

func TestLimiterSeesCaller(t *testing.T) {
	spy := &limitSpy{}
	g := Guards{
		JWTSecret: secret,
		Policy:    access.NewPolicy(fixedRoles{"s@x.io": model.RoleStudent}),
		Limit:     spy.mw,
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	e := echo.New()
	e.GET("/open", ok, g.public()...)
	e.GET("/mine", ok, g.roles(model.RoleStudent)...)

	tok, err := utils.NewAccessToken(secret, "s@x.io", model.RoleStudent, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/open", "/mine"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
	if len(spy.seen) != 2 || spy.seen[0] != "anon" || spy.seen[1] != "s@x.io" {
		t.Fatalf("limiter saw %v, want [anon s@x.io]", spy.seen)
	}
}

func TestUnauthenticatedRequestIsNotLimited(t *testing.T) {
	spy := &limitSpy{}
	g := Guards{JWTSecret: secret, Policy: access.NewPolicy(fixedRoles{}), Limit: spy.mw}
	e := echo.New()
	e.GET("/mine", func(c echo.Context) error { return nil }, g.bearer()...)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mine", nil))
	if rec.Code != http.StatusUnauthorized || len(spy.seen) != 0 {
		t.Fatalf("status=%d limited=%v", rec.Code, spy.seen)
	}
}

func TestNilLimitPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/open", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, Guards{}.public()...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
