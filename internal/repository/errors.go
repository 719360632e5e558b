// Package repository contains the MongoDB accessors, one per collection.
// Repositories return the sentinel values below so that services can tell
// "not there" and "already there" apart from infrastructure failures.
package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/tuition-marketplace/internal/model"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTuitionNotFound     = errors.New("tuition not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTokenNotFound       = errors.New("refresh token not found")

	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notFound maps mongo.ErrNoDocuments to the repository's sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return err
}

func duplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// findPage counts all matches of filter and decodes the requested page.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, pr model.PageRequest) ([]T, int64, error) {
	pr = pr.Normalize()
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(pr.Skip()).
		SetLimit(int64(pr.Limit))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]T, 0, pr.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
