// Package access holds the authorization policy. It knows nothing about HTTP:
// the echo middleware in internal/middleware is a thin adapter over Policy.
package access

import (
	"context"
	"errors"

	"github.com/iliyamo/tuition-marketplace/internal/apperr"
)

// Identity is the decoded subject of a verified access token. Role is the
// role at issuance and may be stale.
type Identity struct {
	Email string
	Role  string
}

// RoleSource returns the persisted role of a user and whether the account
// is active.
type RoleSource interface {
	RoleOf(ctx context.Context, email string) (role string, active bool, err error)
}

// Policy decides whether an identity may run an operation.
type Policy struct {
	roles RoleSource
}

func NewPolicy(roles RoleSource) *Policy {
	if roles == nil {
		panic("nil RoleSource passed to NewPolicy")
	}
	return &Policy{roles: roles}
}

// Authorize looks up the caller's current role and checks it against allowed.
// An empty allowed list admits any active user. It returns the live role.
func (p *Policy) Authorize(ctx context.Context, id *Identity, allowed ...string) (string, error) {
	if id == nil || id.Email == "" {
		return "", apperr.New(apperr.Unauthorized, "authentication required")
	}
	role, active, err := p.roles.RoleOf(ctx, id.Email)
	if err != nil {
		return "", apperr.Wrap(apperr.Forbidden, "role lookup failed", err)
	}
	if !active {
		return "", apperr.New(apperr.Forbidden, "account is inactive")
	}
	if len(allowed) == 0 {
		return role, nil
	}
	for _, r := range allowed {
		if r == role {
			return role, nil
		}
	}
	return "", apperr.New(apperr.Forbidden, "role not permitted")
}

// ErrNoIdentity is returned by helpers that need an authenticated caller.
var ErrNoIdentity = errors.New("no identity in context")

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.Email == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
