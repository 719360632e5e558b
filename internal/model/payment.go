package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment records a completed checkout. TransactionID carries a unique index
// so a transaction is recorded at most once.
type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	TuitionID     primitive.ObjectID `bson:"tuition_id" json:"tuitionId"`
	TuitionTitle  string             `bson:"tuition_title,omitempty" json:"tuitionTitle,omitempty"`
	TutorEmail    string             `bson:"tutor_email" json:"tutorEmail"`
	StudentEmail  string             `bson:"student_email" json:"studentEmail"`
	Amount        float64            `bson:"amount" json:"amount"`
	Currency      string             `bson:"currency" json:"currency"`
	TransactionID string             `bson:"transaction_id" json:"transactionId"`
	SessionID     string             `bson:"session_id" json:"sessionId"`
	PaymentStatus string             `bson:"payment_status" json:"paymentStatus"`
	PaymentMethod string             `bson:"payment_method" json:"paymentMethod"`
	PaidAt        time.Time          `bson:"paid_at" json:"paid_at"`
}

// PaymentFilter selects payments for history listings.
type PaymentFilter struct {
	StudentEmail string
	TutorEmail   string
}
