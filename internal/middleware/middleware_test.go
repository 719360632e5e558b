package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/config"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

const secret = "test-secret"

type roleTable map[string]struct {
	role   string
	active bool
}

func (r roleTable) RoleOf(_ context.Context, email string) (string, bool, error) {
	u, ok := r[email]
	if !ok {
		return "", false, errors.New("user not found")
	}
	return u.role, u.active, nil
}

// serve runs a request through mws and returns the recorder plus the
// identity the final handler observed.
func serve(t *testing.T, header string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, access.Identity) {
	t.Helper()
	e := echo.New()
	var seen access.Identity
	h := func(c echo.Context) error {
		id, err := access.FromContext(c.Request().Context())
		if err != nil {
			t.Errorf("request context has no identity: %v", err)
		}
		seen = id
		return c.NoContent(http.StatusNoContent)
	}
	e.GET("/x", h, mws...)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if body["message"] == "" {
		t.Errorf("error body without message: %v", body)
	}
	return body["error"]
}

func bearer(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, email, role, 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	expired, _ := utils.NewAccessToken(secret, "s@x.io", "student", -1)
	tests := []struct {
		name   string
		header string
		status int
		kind   string
	}{
		{"missing", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"expired", "Bearer " + expired.Token, http.StatusUnauthorized, "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, tt.header, JWTAuth(secret))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := errorKind(t, rec); got != tt.kind {
				t.Fatalf("error = %q, want %q", got, tt.kind)
			}
		})
	}

	rec, id := serve(t, bearer(t, "S@x.io", "student"), JWTAuth(secret))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if id.Email != "s@x.io" || id.Role != "student" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestRequireRoleUsesLiveRole(t *testing.T) {
	roles := roleTable{
		"s@x.io":   {"admin", true}, // promoted after the token was issued
		"old@x.io": {"student", true},
		"off@x.io": {"admin", false},
	}
	policy := access.NewPolicy(roles)

	rec, id := serve(t, bearer(t, "s@x.io", "student"), JWTAuth(secret), RequireRole(policy, "admin"))
	if rec.Code != http.StatusNoContent || id.Role != "admin" {
		t.Fatalf("promoted user: status=%d identity=%+v", rec.Code, id)
	}

	// demoted after issuance: token still says admin
	rec, _ = serve(t, bearer(t, "old@x.io", "admin"), JWTAuth(secret), RequireRole(policy, "admin"))
	if rec.Code != http.StatusForbidden || errorKind(t, rec) != "forbidden" {
		t.Fatalf("demoted user: status=%d", rec.Code)
	}

	rec, _ = serve(t, bearer(t, "off@x.io", "admin"), JWTAuth(secret), RequireRole(policy, "admin"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("inactive user: status=%d", rec.Code)
	}

	rec, _ = serve(t, bearer(t, "ghost@x.io", "admin"), JWTAuth(secret), RequireRole(policy))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown user: status=%d", rec.Code)
	}

	rec, id = serve(t, bearer(t, "old@x.io", "tutor"), JWTAuth(secret), RequireRole(policy))
	if rec.Code != http.StatusNoContent || id.Role != "student" {
		t.Fatalf("any role: status=%d identity=%+v", rec.Code, id)
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireRole(access.NewPolicy(roleTable{}), "admin"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/tuitions", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/tuitions")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	if got := rateKey(cfg, c); got != "rl:ip:10.0.0.1:user:anon:route:GET /tuitions" {
		t.Fatalf("anon key = %q", got)
	}

	SetIdentity(c, access.Identity{Email: "s@x.io", Role: "student"})
	cfg.KeyStrategy = "user"
	if got := rateKey(cfg, c); got != "rl:user:s@x.io" {
		t.Fatalf("user key = %q", got)
	}
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, zap.NewNop())
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if retryAfterSeconds(1500) != 2 || retryAfterSeconds(-5) != 0 {
		t.Fatal("retry-after rounding")
	}
}
