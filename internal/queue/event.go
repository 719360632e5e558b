// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// PaymentRecordedQueue is the durable queue carrying PaymentRecordedEvent.
const PaymentRecordedQueue = "payment.recorded"

// PaymentRecordedEvent is published once per recorded payment, after the
// posting was assigned and its applications resolved.
type PaymentRecordedEvent struct {
	EventID       string  `json:"event_id"`
	PaymentID     string  `json:"payment_id"`
	TuitionID     string  `json:"tuition_id"`
	TuitionTitle  string  `json:"tuition_title"`
	StudentEmail  string  `json:"student_email"`
	TutorEmail    string  `json:"tutor_email"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	TransactionID string  `json:"transaction_id"`
	Rejected      int64   `json:"rejected_applications"`
	PaidAt        string  `json:"paid_at"`
}
