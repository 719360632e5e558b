package repository

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// TuitionRepo encapsulates queries on the `tuitions` collection.
type TuitionRepo struct{ coll *mongo.Collection }

func NewTuitionRepo(s *database.Store) *TuitionRepo {
	return &TuitionRepo{coll: s.Collection(database.TuitionsCollection)}
}

// Create inserts t and populates its ID.
func (r *TuitionRepo) Create(ctx context.Context, t *model.Tuition) error {
	t.StudentEmail = normEmail(t.StudentEmail)
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

// GetByID returns ErrTuitionNotFound when no posting has the id.
func (r *TuitionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Tuition, error) {
	var t model.Tuition
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, notFound(err, ErrTuitionNotFound)
	}
	return &t, nil
}

// List returns one page of postings matching f, newest first.
func (r *TuitionRepo) List(ctx context.Context, f model.TuitionFilter, pr model.PageRequest) ([]model.Tuition, int64, error) {
	return findPage[model.Tuition](ctx, r.coll, tuitionFilterDoc(f), bson.D{{Key: "created_at", Value: -1}}, pr)
}

// Update applies p to the posting only when it belongs to owner.
func (r *TuitionRepo) Update(ctx context.Context, id primitive.ObjectID, owner string, p model.TuitionPatch, at time.Time) (matched, modified int64, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "student_email": normEmail(owner)},
		bson.M{"$set": tuitionPatchSet(p, at)})
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// SetStatus changes the status of a posting. When from is non-empty the
// update only applies while the current status is one of from.
func (r *TuitionRepo) SetStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time, from ...string) (matched, modified int64, err error) {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status, "updated_at": at}})
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// Delete removes the posting when it belongs to owner.
func (r *TuitionRepo) Delete(ctx context.Context, id primitive.ObjectID, owner string) (int64, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "student_email": normEmail(owner)})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func tuitionFilterDoc(f model.TuitionFilter) bson.M {
	doc := bson.M{}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		doc["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"subject": re},
			bson.M{"location": re},
		}
	}
	if f.Subject != "" {
		doc["subject"] = f.Subject
	}
	if f.Class != "" {
		doc["class"] = f.Class
	}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	if f.StudentEmail != "" {
		doc["student_email"] = normEmail(f.StudentEmail)
	}
	return doc
}

func tuitionPatchSet(p model.TuitionPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Subject != nil {
		set["subject"] = *p.Subject
	}
	if p.Class != nil {
		set["class"] = *p.Class
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Budget != nil {
		set["budget"] = *p.Budget
	}
	if p.Schedule != nil {
		set["schedule"] = *p.Schedule
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	return set
}
