package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/payment"
	"github.com/iliyamo/tuition-marketplace/internal/queue"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
)

// Lifecycle states of a checkout. A session is initiated by CreateSession and
// reconciled exactly into recorded once; later reconciliations of the same
// transaction end in duplicate. A paid session for a posting that another
// payment already assigned is stored as refund_due and changes nothing else.
const (
	StateInitiated   = "initiated"
	StateReconciling = "reconciling"
	StateRecorded    = "recorded"
	StateDuplicate   = "duplicate"
	StateRefundDue   = "refund_due"
)

// PaymentConfig carries the checkout settings.
type PaymentConfig struct {
	Currency  string
	ClientURL string
}

// PaymentService runs the checkout lifecycle: it creates provider sessions
// and reconciles paid ones into a Payment, an assigned posting and resolved
// applications.
type PaymentService struct {
	provider  payment.Provider
	webhooks  payment.WebhookVerifier
	tuitions  TuitionStore
	apps      ApplicationStore
	payments  PaymentStore
	publisher EventPublisher
	cfg       PaymentConfig
	log       *zap.Logger
}

// NewPaymentService wires the lifecycle. webhooks and publisher may be nil.
func NewPaymentService(p payment.Provider, w payment.WebhookVerifier, t TuitionStore, a ApplicationStore, pay PaymentStore, pub EventPublisher, cfg PaymentConfig, log *zap.Logger) *PaymentService {
	if p == nil || t == nil || a == nil || pay == nil {
		panic("nil dependency passed to NewPaymentService")
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	return &PaymentService{provider: p, webhooks: w, tuitions: t, apps: a, payments: pay, publisher: pub, cfg: cfg, log: log}
}

// CheckoutInput is the body of POST /create-checkout-session.
type CheckoutInput struct {
	TuitionID  primitive.ObjectID
	TutorEmail string
	Amount     float64
}

// CreateSession asks the provider for a checkout of amount for hiring tutor
// on the caller's open posting. Nothing is stored locally.
func (s *PaymentService) CreateSession(ctx context.Context, caller access.Identity, in CheckoutInput) (*payment.Checkout, error) {
	tutor := normEmail(in.TutorEmail)
	if tutor == "" {
		return nil, apperr.New(apperr.Validation, "tutorEmail is required")
	}
	if in.Amount <= 0 || payment.MinorUnits(in.Amount, s.cfg.Currency) <= 0 {
		return nil, apperr.New(apperr.Validation, "amount must be positive")
	}
	t, err := s.tuitions.GetByID(ctx, in.TuitionID)
	if err != nil {
		return nil, storeErr(err, "tuition not found")
	}
	student := normEmail(caller.Email)
	if t.StudentEmail != student {
		return nil, apperr.New(apperr.Forbidden, "not your tuition")
	}
	if t.Status != model.TuitionOpen {
		return nil, apperr.New(apperr.Conflict, "tuition is not open")
	}
	applied, err := s.apps.Exists(ctx, t.ID, tutor)
	if err != nil {
		return nil, storeErr(err, "application lookup failed")
	}
	if !applied {
		return nil, apperr.New(apperr.Validation, "tutor has not applied to this tuition")
	}

	co, err := s.provider.CreateCheckout(ctx, payment.CheckoutRequest{
		TuitionID:    t.ID.Hex(),
		TuitionTitle: t.Title,
		TutorEmail:   tutor,
		StudentEmail: student,
		Amount:       in.Amount,
		Currency:     s.cfg.Currency,
		SuccessURL:   s.cfg.ClientURL + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.cfg.ClientURL + "/dashboard/payment-cancelled",
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.PaymentProcessing, "could not create checkout session", err)
	}
	s.log.Info("checkout session created",
		zap.String("state", StateInitiated),
		zap.String("session_id", co.ID),
		zap.String("tuition_id", t.ID.Hex()),
		zap.String("tutor", tutor))
	return co, nil
}

// Reconciliation is the outcome of reconciling a session.
type Reconciliation struct {
	State    string         `json:"state"`
	Payment  *model.Payment `json:"payment"`
	Rejected int64          `json:"rejectedApplications"`
}

// Reconcile records the payment behind a paid session. callerEmail, when not
// empty, must be the student that started the checkout.
func (s *PaymentService) Reconcile(ctx context.Context, sessionID, callerEmail string) (*Reconciliation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.New(apperr.Validation, "sessionId is required")
	}
	sess, err := s.provider.Session(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.PaymentProcessing, "could not retrieve checkout session", err)
	}
	return s.reconcile(ctx, sess, callerEmail)
}

// ReconcileWebhook verifies a provider callback and reconciles the completed
// session it carries. handled is false for events that are not a completed
// checkout.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, payload []byte, signature string) (r *Reconciliation, handled bool, err error) {
	if s.webhooks == nil {
		return nil, false, apperr.New(apperr.PaymentProcessing, "webhooks are not configured")
	}
	sess, ok, err := s.webhooks.CompletedSession(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrWebhookDisabled) {
			return nil, false, apperr.Wrap(apperr.PaymentProcessing, "webhooks are not configured", err)
		}
		return nil, false, apperr.Wrap(apperr.Validation, "invalid webhook signature", err)
	}
	if !ok {
		return nil, false, nil
	}
	r, err = s.reconcile(ctx, sess, "")
	return r, true, err
}

func (s *PaymentService) reconcile(ctx context.Context, sess *payment.Session, callerEmail string) (*Reconciliation, error) {
	log := s.log.With(zap.String("session_id", sess.ID))
	log.Debug("reconciling checkout", zap.String("state", StateReconciling))

	if sess.PaymentStatus != payment.StatusPaid {
		return nil, apperr.New(apperr.PaymentProcessing, "payment is not completed")
	}
	student := normEmail(sess.Metadata[payment.MetaStudentEmail])
	if callerEmail != "" && normEmail(callerEmail) != student {
		return nil, apperr.New(apperr.Forbidden, "checkout belongs to another student")
	}
	tutor := normEmail(sess.Metadata[payment.MetaTutorEmail])
	tuitionID, err := primitive.ObjectIDFromHex(sess.Metadata[payment.MetaTuitionID])
	if err != nil || tutor == "" || student == "" {
		return nil, apperr.New(apperr.PaymentProcessing, "checkout session metadata is incomplete")
	}

	txn := sess.TransactionID()
	if existing, err := s.payments.GetByTransaction(ctx, txn); err == nil {
		log.Info("payment already recorded", zap.String("state", StateDuplicate), zap.String("transaction_id", txn))
		return &Reconciliation{State: StateDuplicate, Payment: existing}, nil
	} else if !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, apperr.Wrap(apperr.PaymentProcessing, "payment lookup failed", err)
	}

	t, err := s.tuitions.GetByID(ctx, tuitionID)
	if err != nil {
		if errors.Is(err, repository.ErrTuitionNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "tuition not found", err)
		}
		return nil, apperr.Wrap(apperr.PaymentProcessing, "tuition lookup failed", err)
	}

	currency := strings.ToLower(sess.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}
	method := sess.PaymentMethod
	if method == "" {
		method = "card"
	}
	at := now()
	p := &model.Payment{
		TuitionID:     t.ID,
		TuitionTitle:  t.Title,
		TutorEmail:    tutor,
		StudentEmail:  student,
		Amount:        sess.Amount(),
		Currency:      currency,
		TransactionID: txn,
		SessionID:     sess.ID,
		PaymentStatus: sess.PaymentStatus,
		PaymentMethod: method,
		PaidAt:        at,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.PaymentProcessing, "could not record payment", err)
		}
		// a concurrent reconciliation inserted first and owns the side effects
		existing, err := s.payments.GetByTransaction(ctx, txn)
		if err != nil {
			return nil, apperr.Wrap(apperr.PaymentProcessing, "payment lookup failed", err)
		}
		log.Info("payment recorded concurrently", zap.String("state", StateDuplicate), zap.String("transaction_id", txn))
		return &Reconciliation{State: StateDuplicate, Payment: existing}, nil
	}

	if t.Status == model.TuitionAssigned {
		return s.refundDue(log, p, "tuition already assigned"), nil
	}
	matched, _, err := s.tuitions.SetStatus(ctx, t.ID, model.TuitionAssigned, at, model.TuitionOpen, model.TuitionClosed)
	if err != nil {
		return nil, apperr.Wrap(apperr.PaymentProcessing, "could not assign tuition", err)
	}
	if matched == 0 {
		// another transaction assigned the posting after it was loaded
		return s.refundDue(log, p, "tuition assigned concurrently"), nil
	}
	accepted, rejected, err := s.apps.Resolve(ctx, t.ID, tutor, at)
	if err != nil {
		return nil, apperr.Wrap(apperr.PaymentProcessing, "could not resolve applications", err)
	}
	log.Info("payment recorded",
		zap.String("state", StateRecorded),
		zap.String("transaction_id", txn),
		zap.String("tuition_id", t.ID.Hex()),
		zap.String("tutor", tutor),
		zap.Int64("accepted", accepted),
		zap.Int64("rejected", rejected))

	s.publish(ctx, p, rejected)
	return &Reconciliation{State: StateRecorded, Payment: p, Rejected: rejected}, nil
}

// refundDue reports a payment that was captured but cannot assign its
// posting. The record stays so the money can be traced and returned.
func (s *PaymentService) refundDue(log *zap.Logger, p *model.Payment, reason string) *Reconciliation {
	log.Warn("payment needs refund",
		zap.String("state", StateRefundDue),
		zap.String("reason", reason),
		zap.String("transaction_id", p.TransactionID),
		zap.String("tuition_id", p.TuitionID.Hex()),
		zap.String("tutor", p.TutorEmail),
		zap.Float64("amount", p.Amount))
	return &Reconciliation{State: StateRefundDue, Payment: p}
}

// publish announces a recorded payment. It runs detached from the request
// deadline and never fails the reconciliation.
func (s *PaymentService) publish(ctx context.Context, p *model.Payment, rejected int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ev := queue.PaymentRecordedEvent{
		EventID:       uuid.NewString(),
		PaymentID:     p.ID.Hex(),
		TuitionID:     p.TuitionID.Hex(),
		TuitionTitle:  p.TuitionTitle,
		StudentEmail:  p.StudentEmail,
		TutorEmail:    p.TutorEmail,
		Amount:        p.Amount,
		Currency:      p.Currency,
		TransactionID: p.TransactionID,
		Rejected:      rejected,
		PaidAt:        p.PaidAt.Format(time.RFC3339),
	}
	if err := s.publisher.PaymentRecorded(ctx, ev); err != nil {
		s.log.Warn("publish payment.recorded failed", zap.String("transaction_id", p.TransactionID), zap.Error(err))
	}
}

// List returns payments visible to the caller: students see what they paid,
// tutors what they received and admins everything.
func (s *PaymentService) List(ctx context.Context, caller access.Identity, pr model.PageRequest) (Page[model.Payment], error) {
	var f model.PaymentFilter
	switch caller.Role {
	case model.RoleStudent:
		f.StudentEmail = normEmail(caller.Email)
	case model.RoleTutor:
		f.TutorEmail = normEmail(caller.Email)
	case model.RoleAdmin:
	default:
		return Page[model.Payment]{}, apperr.New(apperr.Forbidden, "role not permitted")
	}
	pr = pr.Normalize()
	items, total, err := s.payments.List(ctx, f, pr)
	if err != nil {
		return Page[model.Payment]{}, storeErr(err, "list payments failed")
	}
	return newPage(items, total, pr), nil
}
