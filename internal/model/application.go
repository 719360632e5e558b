package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// Application is a tutor's request to be matched with a posting. The pair
// (TuitionID, TutorEmail) is unique.
type Application struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	TuitionID      primitive.ObjectID `bson:"tuition_id" json:"tuitionId"`
	TuitionTitle   string             `bson:"tuition_title,omitempty" json:"tuitionTitle,omitempty"`
	TutorEmail     string             `bson:"tutor_email" json:"tutorEmail"`
	TutorName      string             `bson:"tutor_name,omitempty" json:"tutorName,omitempty"`
	StudentEmail   string             `bson:"student_email" json:"studentEmail"`
	ExpectedSalary float64            `bson:"expected_salary,omitempty" json:"expectedSalary,omitempty"`
	Message        string             `bson:"message,omitempty" json:"message,omitempty"`
	Status         string             `bson:"status" json:"status"`
	AppliedAt      time.Time          `bson:"applied_at" json:"applied_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ApplicationFilter selects applications. Zero values are ignored.
type ApplicationFilter struct {
	TuitionID    primitive.ObjectID
	TutorEmail   string
	StudentEmail string
	Status       string
}
