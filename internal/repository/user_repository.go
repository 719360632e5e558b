package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// UserRepo mirrors the `users` collection.
type UserRepo struct{ coll *mongo.Collection }

func NewUserRepo(s *database.Store) *UserRepo {
	return &UserRepo{coll: s.Collection(database.UsersCollection)}
}

// Create inserts u and sets its ID. A second user with the same email
// yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normEmail(u.Email)
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return duplicate(err)
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.coll.FindOne(ctx, bson.M{"email": normEmail(email)}).Decode(&u); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	var u model.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// RoleOf returns the persisted role of email and whether the account is
// active. It is the live role source for authorization.
func (r *UserRepo) RoleOf(ctx context.Context, email string) (string, bool, error) {
	var u struct {
		Role   string `bson:"role"`
		Status string `bson:"status"`
	}
	opts := options.FindOne().SetProjection(bson.M{"role": 1, "status": 1})
	if err := r.coll.FindOne(ctx, bson.M{"email": normEmail(email)}, opts).Decode(&u); err != nil {
		return "", false, notFound(err, ErrUserNotFound)
	}
	return u.Role, u.Status != model.UserInactive, nil
}

// PasswordHash returns the stored bcrypt hash of email.
func (r *UserRepo) PasswordHash(ctx context.Context, email string) (string, error) {
	var u struct {
		Hash string `bson:"password_hash"`
	}
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 1})
	if err := r.coll.FindOne(ctx, bson.M{"email": normEmail(email)}, opts).Decode(&u); err != nil {
		return "", notFound(err, ErrUserNotFound)
	}
	return u.Hash, nil
}

// TouchLogin stamps last_loggedIn and returns the number of matched users.
func (r *UserRepo) TouchLogin(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"email": normEmail(email)},
		bson.M{"$set": bson.M{"last_loggedIn": at}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Update applies a partial update to the user identified by email.
func (r *UserRepo) Update(ctx context.Context, email string, p model.UserPatch, at time.Time) (matched, modified int64, err error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": normEmail(email)}, userPatchUpdate(p, at))
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// List returns one page of users matching f, newest first.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter, pr model.PageRequest) ([]model.User, int64, error) {
	return findPage[model.User](ctx, r.coll, userFilterDoc(f), bson.D{{Key: "created_at", Value: -1}}, pr)
}

// DeleteByID removes a user and reports how many documents were deleted.
func (r *UserRepo) DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func userFilterDoc(f model.UserFilter) bson.M {
	doc := bson.M{}
	if f.Email != "" {
		doc["email"] = normEmail(f.Email)
	}
	if f.Role != "" {
		doc["role"] = f.Role
	}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		doc["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"subjects": re},
		}
	}
	return doc
}

// userPatchUpdate translates a patch into an update document. Clearing
// tutor fields wins over setting them in the same patch.
func userPatchUpdate(p model.UserPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.PhotoURL != nil {
		set["photo_url"] = *p.PhotoURL
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	update := bson.M{}
	if p.ClearTutorFields {
		update["$unset"] = bson.M{"education": "", "subjects": "", "hourly_rate": ""}
	} else {
		if p.Education != nil {
			set["education"] = *p.Education
		}
		if p.Subjects != nil {
			set["subjects"] = p.Subjects
		}
		if p.HourlyRate != nil {
			set["hourly_rate"] = *p.HourlyRate
		}
	}
	update["$set"] = set
	return update
}
