package access

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/tuition-marketplace/internal/apperr"
)

type roleFunc func(ctx context.Context, email string) (string, bool, error)

func (f roleFunc) RoleOf(ctx context.Context, email string) (string, bool, error) {
	return f(ctx, email)
}

func fixedRoles(m map[string]string) RoleSource {
	return roleFunc(func(_ context.Context, email string) (string, bool, error) {
		r, ok := m[email]
		if !ok {
			return "", false, errors.New("not found")
		}
		return r, true, nil
	})
}

func TestAuthorizeUsesLiveRole(t *testing.T) {
	p := NewPolicy(fixedRoles(map[string]string{"t@x.io": "student"}))

	// token still says tutor, the store says student
	_, err := p.Authorize(context.Background(), &Identity{Email: "t@x.io", Role: "tutor"}, "tutor")
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}

	role, err := p.Authorize(context.Background(), &Identity{Email: "t@x.io", Role: "tutor"}, "student", "admin")
	if err != nil || role != "student" {
		t.Fatalf("Authorize = %q, %v", role, err)
	}
}

func TestAuthorizeFailures(t *testing.T) {
	inactive := roleFunc(func(context.Context, string) (string, bool, error) { return "admin", false, nil })

	tests := []struct {
		name string
		p    *Policy
		id   *Identity
		want apperr.Kind
	}{
		{"no identity", NewPolicy(fixedRoles(nil)), nil, apperr.Unauthorized},
		{"empty email", NewPolicy(fixedRoles(nil)), &Identity{}, apperr.Unauthorized},
		{"unknown user", NewPolicy(fixedRoles(nil)), &Identity{Email: "ghost@x.io"}, apperr.Forbidden},
		{"inactive", NewPolicy(inactive), &Identity{Email: "a@x.io"}, apperr.Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Authorize(context.Background(), tt.id, "admin")
			if got := apperr.KindOf(err); got != tt.want {
				t.Fatalf("kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuthorizeAnyRole(t *testing.T) {
	p := NewPolicy(fixedRoles(map[string]string{"a@x.io": "tutor"}))
	role, err := p.Authorize(context.Background(), &Identity{Email: "a@x.io"})
	if err != nil || role != "tutor" {
		t.Fatalf("Authorize = %q, %v", role, err)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("err = %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{Email: "s@x.io", Role: "student"})
	id, err := FromContext(ctx)
	if err != nil || id.Email != "s@x.io" {
		t.Fatalf("FromContext = %+v, %v", id, err)
	}
}
