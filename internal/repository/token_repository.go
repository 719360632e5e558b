package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// TokenRepo persists and validates refresh tokens by their hash. Expired
// documents are removed by the TTL index on expires_at.
type TokenRepo struct{ coll *mongo.Collection }

func NewTokenRepo(s *database.Store) *TokenRepo {
	return &TokenRepo{coll: s.Collection(database.RefreshTokensCollection)}
}

// StoreRefresh inserts a refresh token hash.
func (r *TokenRepo) StoreRefresh(ctx context.Context, email, tokenHash string, exp time.Time) error {
	_, err := r.coll.InsertOne(ctx, model.RefreshToken{
		Email:     normEmail(email),
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	})
	return duplicate(err)
}

// ValidateRefresh returns the owner's email if a non-revoked, non-expired
// token exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var t model.RefreshToken
	if err := r.coll.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&t); err != nil {
		return "", notFound(err, ErrTokenNotFound)
	}
	if t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return "", ErrTokenNotFound
	}
	return t.Email, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash, "revoked_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}})
	return err
}

// RevokeAllForUser revokes every active token of email.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, email string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"email": normEmail(email), "revoked_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}})
	return err
}
