package repository

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tuition-marketplace/internal/model"
)

func strPtr(s string) *string { return &s }

func TestUserPatchUpdateClearsTutorFields(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rate := 25.0
	update := userPatchUpdate(model.UserPatch{
		Role:             strPtr(model.RoleStudent),
		Education:        strPtr("BSc"),
		HourlyRate:       &rate,
		ClearTutorFields: true,
	}, at)

	unset, ok := update["$unset"].(bson.M)
	if !ok {
		t.Fatalf("expected $unset, got %#v", update)
	}
	for _, f := range []string{"education", "subjects", "hourly_rate"} {
		if _, ok := unset[f]; !ok {
			t.Errorf("%s should be unset", f)
		}
	}
	set := update["$set"].(bson.M)
	if set["role"] != model.RoleStudent {
		t.Errorf("role = %v", set["role"])
	}
	if _, ok := set["education"]; ok {
		t.Error("education must not be set while clearing tutor fields")
	}
	if set["updated_at"] != at {
		t.Error("updated_at should be stamped")
	}
}

func TestUserPatchUpdateSetsTutorFields(t *testing.T) {
	update := userPatchUpdate(model.UserPatch{
		Subjects: []string{"Physics"},
		Name:     strPtr("Rahim"),
	}, time.Now())

	if _, ok := update["$unset"]; ok {
		t.Fatal("no $unset expected")
	}
	set := update["$set"].(bson.M)
	if set["name"] != "Rahim" {
		t.Errorf("name = %v", set["name"])
	}
	if subj, ok := set["subjects"].([]string); !ok || len(subj) != 1 {
		t.Errorf("subjects = %#v", set["subjects"])
	}
}

func TestTuitionFilterDoc(t *testing.T) {
	doc := tuitionFilterDoc(model.TuitionFilter{
		Search:       "math.",
		Class:        "Class 8",
		Status:       model.TuitionOpen,
		StudentEmail: "  Student@Example.com ",
	})

	or, ok := doc["$or"].(bson.A)
	if !ok || len(or) != 3 {
		t.Fatalf("$or = %#v", doc["$or"])
	}
	re := or[0].(bson.M)["title"].(primitive.Regex)
	if re.Pattern != `math\.` || re.Options != "i" {
		t.Errorf("regex = %#v, want escaped case-insensitive", re)
	}
	if doc["class"] != "Class 8" || doc["status"] != model.TuitionOpen {
		t.Errorf("exact filters missing: %#v", doc)
	}
	if doc["student_email"] != "student@example.com" {
		t.Errorf("student_email = %v", doc["student_email"])
	}
	if _, ok := doc["subject"]; ok {
		t.Error("empty subject must not filter")
	}
}

func TestTuitionFilterDocEmpty(t *testing.T) {
	if doc := tuitionFilterDoc(model.TuitionFilter{Search: "   "}); len(doc) != 0 {
		t.Fatalf("blank filter should match everything, got %#v", doc)
	}
}

func TestApplicationFilterDoc(t *testing.T) {
	id := primitive.NewObjectID()
	doc := applicationFilterDoc(model.ApplicationFilter{TuitionID: id, Status: model.ApplicationPending})
	if doc["tuition_id"] != id || doc["status"] != model.ApplicationPending {
		t.Fatalf("doc = %#v", doc)
	}
	if _, ok := doc["tutor_email"]; ok {
		t.Fatal("tutor_email should be absent")
	}
}

func TestMonthlyPipelineSumsOnlyWhenAsked(t *testing.T) {
	p := monthlyPipeline("paid_at", "amount")
	if len(p) != 3 {
		t.Fatalf("stages = %d", len(p))
	}
	group := p[1][0].Value.(bson.D)
	if len(group) != 3 || group[2].Key != "amount" {
		t.Fatalf("group = %#v", group)
	}
	if g := monthlyPipeline("created_at", "")[1][0].Value.(bson.D); len(g) != 2 {
		t.Fatalf("count-only group = %#v", g)
	}
}
