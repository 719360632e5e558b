package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/config"
	"github.com/iliyamo/tuition-marketplace/internal/middleware"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

// Credentials is the part of the user store token issuance needs.
type Credentials interface {
	RoleOf(ctx context.Context, email string) (role string, active bool, err error)
	PasswordHash(ctx context.Context, email string) (string, error)
}

// RefreshTokens persists refresh token hashes.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, email, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, email string) error
}

var (
	_ Credentials   = (*repository.UserRepo)(nil)
	_ RefreshTokens = (*repository.TokenRepo)(nil)
)

// AuthHandler issues, rotates and revokes tokens. A pair is only issued for
// an email and password matching the stored bcrypt hash.
type AuthHandler struct {
	Cfg    config.Config
	Users  Credentials
	Tokens RefreshTokens
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u Credentials, t RefreshTokens, log *zap.Logger) *AuthHandler {
	if u == nil || t == nil {
		panic("nil store passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Issue handles POST /jwt with {email, password}.
func (h *AuthHandler) Issue(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return respondError(c, h.Log, badRequest("email and password are required"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	hash, err := h.Users.PasswordHash(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return respondError(c, h.Log, apperr.Wrap(apperr.Store, "credential lookup failed", err))
	}
	if !utils.VerifyPassword(hash, req.Password) {
		return respondError(c, h.Log, apperr.New(apperr.Unauthorized, "invalid email or password"))
	}

	role, err := h.liveRole(ctx, email)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	resp, err := h.issuePair(ctx, email, role)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /jwt/refresh: the presented refresh token is revoked
// and a new pair is issued with the current role.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return respondError(c, h.Log, badRequest("refresh_token is required"))
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	email, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return respondError(c, h.Log, apperr.New(apperr.InvalidToken, "invalid refresh token"))
		}
		return respondError(c, h.Log, apperr.Wrap(apperr.Store, "refresh lookup failed", err))
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, h.Log, apperr.Wrap(apperr.Store, "revoke refresh failed", err))
	}
	role, err := h.liveRole(ctx, email)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	resp, err := h.issuePair(ctx, email, role)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout handles POST /logout. A refresh_token in the body revokes that one
// session; otherwise a valid bearer token revokes every session of its user.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if refresh != "" {
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return respondError(c, h.Log, apperr.New(apperr.InvalidToken, "invalid refresh token"))
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, h.Log, apperr.Wrap(apperr.Store, "logout failed", err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	raw, ok := middleware.BearerToken(c)
	if !ok {
		return respondError(c, h.Log, badRequest("provide Authorization header or refresh_token"))
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return respondError(c, h.Log, apperr.Wrap(apperr.InvalidToken, "invalid or expired token", err))
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.Subject); err != nil {
		return respondError(c, h.Log, apperr.Wrap(apperr.Store, "logout failed", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) liveRole(ctx context.Context, email string) (string, error) {
	role, active, err := h.Users.RoleOf(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.New(apperr.Unauthorized, "user is not registered")
		}
		return "", apperr.Wrap(apperr.Store, "role lookup failed", err)
	}
	if !active {
		return "", apperr.New(apperr.Forbidden, "account is inactive")
	}
	return role, nil
}

func (h *AuthHandler) issuePair(ctx context.Context, email, role string) (*authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, email, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, "issue access token failed", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, "issue refresh token failed", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, email, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, apperr.Wrap(apperr.Store, "save refresh token failed", err)
	}
	return &authResp{
		User:    userPart{Email: email, Role: role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
