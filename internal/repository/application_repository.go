package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// ApplicationRepo encapsulates queries on the `applications` collection.
type ApplicationRepo struct{ coll *mongo.Collection }

func NewApplicationRepo(s *database.Store) *ApplicationRepo {
	return &ApplicationRepo{coll: s.Collection(database.ApplicationsCollection)}
}

// Create inserts a and populates its ID. A second application by the same
// tutor for the same posting yields ErrDuplicate.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) error {
	a.TutorEmail = normEmail(a.TutorEmail)
	a.StudentEmail = normEmail(a.StudentEmail)
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, a)
	return duplicate(err)
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Application, error) {
	var a model.Application
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, notFound(err, ErrApplicationNotFound)
	}
	return &a, nil
}

// Exists reports whether tutor already applied to the posting.
func (r *ApplicationRepo) Exists(ctx context.Context, tuitionID primitive.ObjectID, tutor string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"tuition_id": tuitionID, "tutor_email": normEmail(tutor)})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns one page of applications matching f, newest first.
func (r *ApplicationRepo) List(ctx context.Context, f model.ApplicationFilter, pr model.PageRequest) ([]model.Application, int64, error) {
	return findPage[model.Application](ctx, r.coll, applicationFilterDoc(f), bson.D{{Key: "applied_at", Value: -1}}, pr)
}

func (r *ApplicationRepo) SetStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) (matched, modified int64, err error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status, "updated_at": at}})
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// Resolve accepts the application of tutor on the posting and rejects every
// other application on it.
func (r *ApplicationRepo) Resolve(ctx context.Context, tuitionID primitive.ObjectID, tutor string, at time.Time) (accepted, rejected int64, err error) {
	tutor = normEmail(tutor)
	acc, err := r.coll.UpdateOne(ctx,
		bson.M{"tuition_id": tuitionID, "tutor_email": tutor},
		bson.M{"$set": bson.M{"status": model.ApplicationAccepted, "updated_at": at}})
	if err != nil {
		return 0, 0, err
	}
	rej, err := r.coll.UpdateMany(ctx,
		bson.M{"tuition_id": tuitionID, "tutor_email": bson.M{"$ne": tutor}},
		bson.M{"$set": bson.M{"status": model.ApplicationRejected, "updated_at": at}})
	if err != nil {
		return acc.ModifiedCount, 0, err
	}
	return acc.ModifiedCount, rej.ModifiedCount, nil
}

// DeleteByTuition removes all applications of a posting.
func (r *ApplicationRepo) DeleteByTuition(ctx context.Context, tuitionID primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"tuition_id": tuitionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeletePending removes a still pending application owned by tutor.
func (r *ApplicationRepo) DeletePending(ctx context.Context, id primitive.ObjectID, tutor string) (int64, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":         id,
		"tutor_email": normEmail(tutor),
		"status":      model.ApplicationPending,
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func applicationFilterDoc(f model.ApplicationFilter) bson.M {
	doc := bson.M{}
	if !f.TuitionID.IsZero() {
		doc["tuition_id"] = f.TuitionID
	}
	if f.TutorEmail != "" {
		doc["tutor_email"] = normEmail(f.TutorEmail)
	}
	if f.StudentEmail != "" {
		doc["student_email"] = normEmail(f.StudentEmail)
	}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	return doc
}
