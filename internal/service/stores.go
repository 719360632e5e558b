// Package service owns the cross-entity rules of the marketplace. Services
// talk to the stores through the narrow interfaces below; the MongoDB
// repositories in internal/repository satisfy them.
package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	RoleOf(ctx context.Context, email string) (string, bool, error)
	TouchLogin(ctx context.Context, email string, at time.Time) (int64, error)
	Update(ctx context.Context, email string, p model.UserPatch, at time.Time) (int64, int64, error)
	List(ctx context.Context, f model.UserFilter, pr model.PageRequest) ([]model.User, int64, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error)
}

type TuitionStore interface {
	Create(ctx context.Context, t *model.Tuition) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Tuition, error)
	List(ctx context.Context, f model.TuitionFilter, pr model.PageRequest) ([]model.Tuition, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, owner string, p model.TuitionPatch, at time.Time) (int64, int64, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time, from ...string) (int64, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID, owner string) (int64, error)
}

type ApplicationStore interface {
	Create(ctx context.Context, a *model.Application) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Application, error)
	Exists(ctx context.Context, tuitionID primitive.ObjectID, tutor string) (bool, error)
	List(ctx context.Context, f model.ApplicationFilter, pr model.PageRequest) ([]model.Application, int64, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) (int64, int64, error)
	Resolve(ctx context.Context, tuitionID primitive.ObjectID, tutor string, at time.Time) (int64, int64, error)
	DeleteByTuition(ctx context.Context, tuitionID primitive.ObjectID) (int64, error)
	DeletePending(ctx context.Context, id primitive.ObjectID, tutor string) (int64, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByTransaction(ctx context.Context, transactionID string) (*model.Payment, error)
	List(ctx context.Context, f model.PaymentFilter, pr model.PageRequest) ([]model.Payment, int64, error)
}

type AnalyticsStore interface {
	RoleCounts(ctx context.Context) (map[string]int64, error)
	UserGrowth(ctx context.Context) ([]model.MonthPoint, error)
	TuitionGrowth(ctx context.Context) ([]model.MonthPoint, error)
	RevenueGrowth(ctx context.Context) ([]model.MonthPoint, error)
	CountUsers(ctx context.Context) (int64, error)
	CountTuitions(ctx context.Context) (int64, error)
	CountTuitionsByStatus(ctx context.Context, status string) (int64, error)
	Revenue(ctx context.Context) (float64, error)
	RecentUsers(ctx context.Context, n int64) ([]model.User, error)
	RecentTuitions(ctx context.Context, n int64) ([]model.Tuition, error)
	RecentPayments(ctx context.Context, n int64) ([]model.Payment, error)
}

var (
	_ UserStore        = (*repository.UserRepo)(nil)
	_ TuitionStore     = (*repository.TuitionRepo)(nil)
	_ ApplicationStore = (*repository.ApplicationRepo)(nil)
	_ PaymentStore     = (*repository.PaymentRepo)(nil)
	_ AnalyticsStore   = (*repository.AnalyticsRepo)(nil)
)

// Page is a page of records plus its pagination metadata.
type Page[T any] struct {
	Items []T        `json:"items"`
	Meta  model.Page `json:"pagination"`
}

func newPage[T any](items []T, total int64, pr model.PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: model.NewPage(total, pr)}
}

// storeErr translates a repository error into an *apperr.Error. Sentinel
// not-found values become NotFound with msg; duplicates become Conflict.
func storeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrTuitionNotFound),
		errors.Is(err, repository.ErrApplicationNotFound),
		errors.Is(err, repository.ErrPaymentNotFound):
		return apperr.Wrap(apperr.NotFound, msg, err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Wrap(apperr.Conflict, msg, err)
	default:
		return apperr.Wrap(apperr.Store, "store operation failed", err)
	}
}

// ParseID converts a hex ObjectID from a path or body into an id, or a
// Validation error naming field.
func ParseID(hex, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.Validation, "invalid "+field)
	}
	return id, nil
}

func now() time.Time { return time.Now().UTC() }
