package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// PaymentRepo encapsulates queries on the `payments` collection.
type PaymentRepo struct{ coll *mongo.Collection }

func NewPaymentRepo(s *database.Store) *PaymentRepo {
	return &PaymentRepo{coll: s.Collection(database.PaymentsCollection)}
}

// Create inserts p. The unique index on transaction_id turns a second
// recording of the same transaction into ErrDuplicate.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	p.TutorEmail = normEmail(p.TutorEmail)
	p.StudentEmail = normEmail(p.StudentEmail)
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, p)
	return duplicate(err)
}

// GetByTransaction returns ErrPaymentNotFound when the transaction has not
// been recorded.
func (r *PaymentRepo) GetByTransaction(ctx context.Context, transactionID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.coll.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&p); err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

// List returns one page of payments, most recent first.
func (r *PaymentRepo) List(ctx context.Context, f model.PaymentFilter, pr model.PageRequest) ([]model.Payment, int64, error) {
	doc := bson.M{}
	if f.StudentEmail != "" {
		doc["student_email"] = normEmail(f.StudentEmail)
	}
	if f.TutorEmail != "" {
		doc["tutor_email"] = normEmail(f.TutorEmail)
	}
	return findPage[model.Payment](ctx, r.coll, doc, bson.D{{Key: "paid_at", Value: -1}}, pr)
}
