package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Posting statuses. Assigned is terminal and only set by payment
// reconciliation.
const (
	TuitionOpen     = "open"
	TuitionAssigned = "assigned"
	TuitionClosed   = "closed"
)

// Tuition is a posting created by a student, stored in `tuitions`.
type Tuition struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	StudentEmail string             `bson:"student_email" json:"studentEmail"`
	StudentName  string             `bson:"student_name,omitempty" json:"studentName,omitempty"`
	Title        string             `bson:"title" json:"title"`
	Subject      string             `bson:"subject" json:"subject"`
	Class        string             `bson:"class" json:"class"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	Budget       float64            `bson:"budget,omitempty" json:"budget,omitempty"`
	Schedule     string             `bson:"schedule,omitempty" json:"schedule,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Status       string             `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// TuitionPatch is a partial update applied by the owning student.
type TuitionPatch struct {
	Title       *string
	Subject     *string
	Class       *string
	Location    *string
	Budget      *float64
	Schedule    *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p TuitionPatch) Empty() bool {
	return p.Title == nil && p.Subject == nil && p.Class == nil && p.Location == nil &&
		p.Budget == nil && p.Schedule == nil && p.Description == nil
}

// TuitionFilter selects postings. Search matches title, subject and location
// case-insensitively; the other fields are exact matches.
type TuitionFilter struct {
	Search       string
	Subject      string
	Class        string
	Status       string
	StudentEmail string
}
