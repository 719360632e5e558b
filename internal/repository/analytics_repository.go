package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// AnalyticsRepo runs the read-only aggregations behind the admin dashboard.
type AnalyticsRepo struct {
	users    *mongo.Collection
	tuitions *mongo.Collection
	payments *mongo.Collection
}

func NewAnalyticsRepo(s *database.Store) *AnalyticsRepo {
	return &AnalyticsRepo{
		users:    s.Collection(database.UsersCollection),
		tuitions: s.Collection(database.TuitionsCollection),
		payments: s.Collection(database.PaymentsCollection),
	}
}

// RoleCounts returns the number of users per role.
func (r *AnalyticsRepo) RoleCounts(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$role"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Role  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

// UserGrowth buckets users by the month of created_at.
func (r *AnalyticsRepo) UserGrowth(ctx context.Context) ([]model.MonthPoint, error) {
	return monthly(ctx, r.users, "created_at", "")
}

// TuitionGrowth buckets postings by the month of created_at.
func (r *AnalyticsRepo) TuitionGrowth(ctx context.Context) ([]model.MonthPoint, error) {
	return monthly(ctx, r.tuitions, "created_at", "")
}

// RevenueGrowth buckets payments by the month of paid_at and sums amount.
func (r *AnalyticsRepo) RevenueGrowth(ctx context.Context) ([]model.MonthPoint, error) {
	return monthly(ctx, r.payments, "paid_at", "amount")
}

// CountUsers, CountTuitions and CountTuitionsByStatus back the totals.
func (r *AnalyticsRepo) CountUsers(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

func (r *AnalyticsRepo) CountTuitions(ctx context.Context) (int64, error) {
	return r.tuitions.CountDocuments(ctx, bson.M{})
}

func (r *AnalyticsRepo) CountTuitionsByStatus(ctx context.Context, status string) (int64, error) {
	return r.tuitions.CountDocuments(ctx, bson.M{"status": status})
}

// Revenue sums the amount of every recorded payment.
func (r *AnalyticsRepo) Revenue(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cur, err := r.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// RecentUsers, RecentTuitions and RecentPayments return the newest n
// documents of each collection for the activity feed.
func (r *AnalyticsRepo) RecentUsers(ctx context.Context, n int64) ([]model.User, error) {
	return recent[model.User](ctx, r.users, "created_at", n)
}

func (r *AnalyticsRepo) RecentTuitions(ctx context.Context, n int64) ([]model.Tuition, error) {
	return recent[model.Tuition](ctx, r.tuitions, "created_at", n)
}

func (r *AnalyticsRepo) RecentPayments(ctx context.Context, n int64) ([]model.Payment, error) {
	return recent[model.Payment](ctx, r.payments, "paid_at", n)
}

func recent[T any](ctx context.Context, coll *mongo.Collection, field string, n int64) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}}).SetLimit(n)
	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]T, 0, n)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// monthly groups documents by the calendar month of dateField, ascending.
// When sumField is set its values are summed into Amount.
func monthly(ctx context.Context, coll *mongo.Collection, dateField, sumField string) ([]model.MonthPoint, error) {
	cur, err := coll.Aggregate(ctx, monthlyPipeline(dateField, sumField))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []model.MonthPoint{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func monthlyPipeline(dateField, sumField string) mongo.Pipeline {
	group := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
			{Key: "format", Value: "%Y-%m"},
			{Key: "date", Value: "$" + dateField},
		}}}},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}
	if sumField != "" {
		group = append(group, bson.E{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$" + sumField}}})
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: dateField, Value: bson.D{{Key: "$type", Value: "date"}}}}}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
