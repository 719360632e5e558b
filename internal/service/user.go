package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

// UserService implements registration, profile edits and user listings.
type UserService struct {
	users      UserStore
	bcryptCost int
	log        *zap.Logger
}

func NewUserService(users UserStore, bcryptCost int, log *zap.Logger) *UserService {
	if users == nil {
		panic("nil UserStore passed to NewUserService")
	}
	return &UserService{users: users, bcryptCost: bcryptCost, log: log}
}

// RegisterInput is the body of POST /users.
type RegisterInput struct {
	Email    string
	Name     string
	PhotoURL string
	Phone    string
	Role     string
	Password string
}

// Register creates the user on first sight of email and otherwise stamps
// last_loggedIn. A repeat registration must present the password the account
// was created with. created reports which of the two happened.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (u *model.User, created bool, err error) {
	email := normEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, apperr.New(apperr.Validation, "a valid email is required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.touch(ctx, existing, in.Password)
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, false, storeErr(err, "user lookup failed")
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = model.RoleStudent
	}
	if role != model.RoleStudent && role != model.RoleTutor {
		return nil, false, apperr.New(apperr.Validation, "role must be student or tutor")
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordLength) {
			return nil, false, apperr.New(apperr.Validation, "password must be 8 to 72 characters")
		}
		return nil, false, apperr.Wrap(apperr.Store, "hash password failed", err)
	}

	at := now()
	u = &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		PhotoURL:     strings.TrimSpace(in.PhotoURL),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		Status:       model.UserActive,
		CreatedAt:    at,
		LastLoggedIn: at,
		UpdatedAt:    at,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, storeErr(err, "create user failed")
		}
		// lost a concurrent registration race; the other insert stands
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, storeErr(err, "user lookup failed")
		}
		return s.touch(ctx, existing, in.Password)
	}
	s.log.Info("user registered", zap.String("email", email), zap.String("role", role))
	return u, true, nil
}

func (s *UserService) touch(ctx context.Context, u *model.User, password string) (*model.User, bool, error) {
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, false, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	at := now()
	if _, err := s.users.TouchLogin(ctx, u.Email, at); err != nil {
		return nil, false, storeErr(err, "update last login failed")
	}
	u.LastLoggedIn = at
	return u, false, nil
}

// Get returns the user registered under email.
func (s *UserService) Get(ctx context.Context, email string) (*model.User, error) {
	u, err := s.users.GetByEmail(ctx, normEmail(email))
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	return u, nil
}

// RoleOf returns the persisted role of email.
func (s *UserService) RoleOf(ctx context.Context, email string) (string, error) {
	role, _, err := s.users.RoleOf(ctx, normEmail(email))
	if err != nil {
		return "", storeErr(err, "user not found")
	}
	return role, nil
}

func (s *UserService) List(ctx context.Context, f model.UserFilter, pr model.PageRequest) (Page[model.User], error) {
	if f.Role != "" && !model.ValidRole(f.Role) {
		return Page[model.User]{}, apperr.New(apperr.Validation, "unknown role")
	}
	pr = pr.Normalize()
	items, total, err := s.users.List(ctx, f, pr)
	if err != nil {
		return Page[model.User]{}, storeErr(err, "list users failed")
	}
	return newPage(items, total, pr), nil
}

// ListTutors lists active tutors, optionally searching name and subjects.
func (s *UserService) ListTutors(ctx context.Context, search string, pr model.PageRequest) (Page[model.User], error) {
	return s.List(ctx, model.UserFilter{
		Role:   model.RoleTutor,
		Status: model.UserActive,
		Search: strings.TrimSpace(search),
	}, pr)
}

// Update applies p to the user registered under email. The caller must be
// that user or an admin; only admins change role and status. Leaving the
// tutor role removes education, subjects and hourly_rate.
func (s *UserService) Update(ctx context.Context, caller access.Identity, email string, p model.UserPatch) (*model.User, error) {
	email = normEmail(email)
	isAdmin := caller.Role == model.RoleAdmin
	if normEmail(caller.Email) != email && !isAdmin {
		return nil, apperr.New(apperr.Forbidden, "you can only edit your own profile")
	}
	if p.Empty() {
		return nil, apperr.New(apperr.Validation, "nothing to update")
	}
	if (p.Role != nil || p.Status != nil) && !isAdmin {
		return nil, apperr.New(apperr.Forbidden, "only admins can change role or status")
	}
	if p.Role != nil && !model.ValidRole(*p.Role) {
		return nil, apperr.New(apperr.Validation, "unknown role")
	}
	if p.Status != nil && *p.Status != model.UserActive && *p.Status != model.UserInactive {
		return nil, apperr.New(apperr.Validation, "status must be active or inactive")
	}
	if p.HourlyRate != nil && *p.HourlyRate < 0 {
		return nil, apperr.New(apperr.Validation, "hourly_rate must not be negative")
	}

	current, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}

	nextRole := current.Role
	if p.Role != nil {
		nextRole = *p.Role
	}
	setsTutorFields := p.Education != nil || p.Subjects != nil || p.HourlyRate != nil
	if nextRole != model.RoleTutor {
		if setsTutorFields {
			return nil, apperr.New(apperr.Validation, "education, subjects and hourly_rate are tutor only")
		}
		if current.Role == model.RoleTutor {
			p.ClearTutorFields = true
		}
	}

	matched, _, err := s.users.Update(ctx, email, p, now())
	if err != nil {
		return nil, storeErr(err, "update user failed")
	}
	if matched == 0 {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if p.Role != nil && *p.Role != current.Role {
		s.log.Info("user role changed",
			zap.String("email", email),
			zap.String("from", current.Role),
			zap.String("to", *p.Role),
			zap.String("by", caller.Email))
	}
	return s.Get(ctx, email)
}

// Delete removes a user by id. Callers are admins.
func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "user not found")
	}
	n, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return storeErr(err, "delete user failed")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	s.log.Info("user deleted", zap.String("email", u.Email), zap.String("role", u.Role), zap.String("id", id.Hex()))
	return nil
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
