package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// openTestStore connects to MONGO_TEST_URI and uses a throwaway database.
func openTestStore(t *testing.T) *database.Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	name := fmt.Sprintf("tuition_test_%d", time.Now().UnixNano())
	s, err := database.Open(ctx, uri, name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	t.Cleanup(func() {
		for _, coll := range []string{
			database.UsersCollection, database.TuitionsCollection, database.ApplicationsCollection,
			database.PaymentsCollection, database.RefreshTokensCollection,
		} {
			_ = s.Collection(coll).Drop(context.Background())
		}
		_ = s.Close(context.Background())
	})
	return s
}

func TestIntegrationUserEmailUnique(t *testing.T) {
	s := openTestStore(t)
	users := NewUserRepo(s)
	ctx := context.Background()

	now := time.Now().UTC()
	u := &model.User{Email: "A@example.com", Role: model.RoleStudent, Status: model.UserActive, CreatedAt: now}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &model.User{Email: "a@example.com", Role: model.RoleTutor, CreatedAt: now}
	if err := users.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create err = %v, want ErrDuplicate", err)
	}
	role, active, err := users.RoleOf(ctx, "a@example.com")
	if err != nil || role != model.RoleStudent || !active {
		t.Fatalf("RoleOf = %q %v %v", role, active, err)
	}
}

func TestIntegrationTutorFieldsCleared(t *testing.T) {
	s := openTestStore(t)
	users := NewUserRepo(s)
	ctx := context.Background()

	edu, rate := "MSc", 30.0
	u := &model.User{Email: "t@example.com", Role: model.RoleTutor, Education: &edu, Subjects: []string{"Math"}, HourlyRate: &rate}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	role := model.RoleStudent
	if _, _, err := users.Update(ctx, u.Email, model.UserPatch{Role: &role, ClearTutorFields: true}, time.Now()); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := users.GetByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Education != nil || got.Subjects != nil || got.HourlyRate != nil {
		t.Fatalf("tutor fields survived: %+v", got)
	}
}

func TestIntegrationPaymentTransactionUnique(t *testing.T) {
	s := openTestStore(t)
	payments := NewPaymentRepo(s)
	ctx := context.Background()

	p := model.Payment{TuitionID: primitive.NewObjectID(), TransactionID: "pi_123", Amount: 50, PaidAt: time.Now()}
	first := p
	if err := payments.Create(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := p
	if err := payments.Create(ctx, &second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestIntegrationResolveAndPaging(t *testing.T) {
	s := openTestStore(t)
	tuitions := NewTuitionRepo(s)
	apps := NewApplicationRepo(s)
	ctx := context.Background()

	base := time.Now().UTC()
	var first *model.Tuition
	for i := 0; i < 10; i++ {
		tu := &model.Tuition{StudentEmail: "s@example.com", Title: fmt.Sprintf("Math %d", i), Subject: "Math", Status: model.TuitionOpen, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := tuitions.Create(ctx, tu); err != nil {
			t.Fatalf("create tuition: %v", err)
		}
		if first == nil {
			first = tu
		}
	}
	items, total, err := tuitions.List(ctx, model.TuitionFilter{Search: "MATH"}, model.PageRequest{Page: 2, Limit: 6})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 10 || len(items) != 4 {
		t.Fatalf("total=%d len=%d, want 10/4", total, len(items))
	}

	for _, tutor := range []string{"x@example.com", "y@example.com"} {
		a := &model.Application{TuitionID: first.ID, TutorEmail: tutor, StudentEmail: "s@example.com", Status: model.ApplicationPending}
		if err := apps.Create(ctx, a); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if err := apps.Create(ctx, &model.Application{TuitionID: first.ID, TutorEmail: "X@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate application err = %v", err)
	}
	acc, rej, err := apps.Resolve(ctx, first.ID, "x@example.com", time.Now())
	if err != nil || acc != 1 || rej != 1 {
		t.Fatalf("Resolve = %d %d %v", acc, rej, err)
	}
}
