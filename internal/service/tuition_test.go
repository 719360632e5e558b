package service

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

var (
	student = access.Identity{Email: "s@x.io", Role: model.RoleStudent}
	tutorX  = access.Identity{Email: "x@x.io", Role: model.RoleTutor}
	tutorY  = access.Identity{Email: "y@x.io", Role: model.RoleTutor}
	adminID = access.Identity{Email: "root@x.io", Role: model.RoleAdmin}
)

func seedTuition(db *memDB, owner, status string) primitive.ObjectID {
	id := primitive.NewObjectID()
	db.tuitions[id] = &model.Tuition{
		ID:           id,
		StudentEmail: owner,
		Title:        "Class 9 Physics",
		Subject:      "physics",
		Class:        "9",
		Status:       status,
	}
	return id
}

func seedApplication(db *memDB, tuitionID primitive.ObjectID, tutor, status string) primitive.ObjectID {
	id := primitive.NewObjectID()
	db.apps[id] = &model.Application{
		ID:           id,
		TuitionID:    tuitionID,
		TutorEmail:   tutor,
		StudentEmail: db.tuitions[tuitionID].StudentEmail,
		Status:       status,
	}
	return id
}

func TestTuitionCreate(t *testing.T) {
	db := newMemDB()
	svc := NewTuitionService(memTuitions{db}, memApps{db}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, student, TuitionInput{Title: "Math"})
	wantKind(t, err, apperr.Validation)
	_, err = svc.Create(ctx, student, TuitionInput{Title: "Math", Subject: "math", Class: "8", Budget: -1})
	wantKind(t, err, apperr.Validation)

	tu, err := svc.Create(ctx, student, TuitionInput{Title: " Math ", Subject: "math", Class: "8", Budget: 200})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tu.Status != model.TuitionOpen || tu.StudentEmail != "s@x.io" || tu.Title != "Math" || tu.ID.IsZero() {
		t.Fatalf("unexpected tuition %+v", tu)
	}

	mine, err := svc.Mine(ctx, student, "", model.PageRequest{})
	if err != nil || mine.Meta.Total != 1 {
		t.Fatalf("mine = %+v, %v", mine, err)
	}
}

func TestTuitionOwnerRules(t *testing.T) {
	db := newMemDB()
	svc := NewTuitionService(memTuitions{db}, memApps{db}, zap.NewNop())
	ctx := context.Background()
	open := seedTuition(db, "s@x.io", model.TuitionOpen)
	assigned := seedTuition(db, "s@x.io", model.TuitionAssigned)
	patch := model.TuitionPatch{Title: strp("Advanced Physics")}

	_, err := svc.Update(ctx, tutorX, open, patch)
	wantKind(t, err, apperr.Forbidden)
	_, err = svc.Update(ctx, student, assigned, patch)
	wantKind(t, err, apperr.Conflict)
	_, err = svc.Update(ctx, student, open, model.TuitionPatch{})
	wantKind(t, err, apperr.Validation)
	_, err = svc.Update(ctx, student, open, model.TuitionPatch{Title: strp("  ")})
	wantKind(t, err, apperr.Validation)
	_, err = svc.Update(ctx, student, primitive.NewObjectID(), patch)
	wantKind(t, err, apperr.NotFound)

	tu, err := svc.Update(ctx, student, open, patch)
	if err != nil || tu.Title != "Advanced Physics" {
		t.Fatalf("update: %v %+v", err, tu)
	}

	wantKind(t, svc.Delete(ctx, student, assigned), apperr.Conflict)
	wantKind(t, svc.Delete(ctx, tutorX, open), apperr.Forbidden)
}

func TestTuitionDeleteRemovesApplications(t *testing.T) {
	db := newMemDB()
	svc := NewTuitionService(memTuitions{db}, memApps{db}, zap.NewNop())
	id := seedTuition(db, "s@x.io", model.TuitionOpen)
	other := seedTuition(db, "s@x.io", model.TuitionOpen)
	seedApplication(db, id, "x@x.io", model.ApplicationPending)
	seedApplication(db, id, "y@x.io", model.ApplicationRejected)
	keep := seedApplication(db, other, "x@x.io", model.ApplicationPending)

	if err := svc.Delete(context.Background(), student, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := db.tuitions[id]; ok {
		t.Fatal("tuition still present")
	}
	if len(db.apps) != 1 || db.apps[keep] == nil {
		t.Fatalf("applications left = %d", len(db.apps))
	}
}

func TestTuitionAdminStatus(t *testing.T) {
	db := newMemDB()
	svc := NewTuitionService(memTuitions{db}, memApps{db}, zap.NewNop())
	ctx := context.Background()
	open := seedTuition(db, "s@x.io", model.TuitionOpen)
	assigned := seedTuition(db, "s@x.io", model.TuitionAssigned)

	_, err := svc.SetStatus(ctx, open, model.TuitionAssigned)
	wantKind(t, err, apperr.Validation)
	_, err = svc.SetStatus(ctx, assigned, model.TuitionClosed)
	wantKind(t, err, apperr.Conflict)

	tu, err := svc.SetStatus(ctx, open, model.TuitionClosed)
	if err != nil || tu.Status != model.TuitionClosed {
		t.Fatalf("close: %v %+v", err, tu)
	}
	tu, err = svc.SetStatus(ctx, open, model.TuitionOpen)
	if err != nil || tu.Status != model.TuitionOpen {
		t.Fatalf("reopen: %v %+v", err, tu)
	}

	_, err = svc.List(ctx, model.TuitionFilter{Status: "archived"}, model.PageRequest{})
	wantKind(t, err, apperr.Validation)
}
