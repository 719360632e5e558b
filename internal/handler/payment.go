package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/payment"
	"github.com/iliyamo/tuition-marketplace/internal/service"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// Payments is implemented by *service.PaymentService.
type Payments interface {
	CreateSession(ctx context.Context, caller access.Identity, in service.CheckoutInput) (*payment.Checkout, error)
	Reconcile(ctx context.Context, sessionID, callerEmail string) (*service.Reconciliation, error)
	ReconcileWebhook(ctx context.Context, payload []byte, signature string) (*service.Reconciliation, bool, error)
	List(ctx context.Context, caller access.Identity, pr model.PageRequest) (service.Page[model.Payment], error)
}

type PaymentHandler struct {
	Payments Payments
	Log      *zap.Logger
}

func NewPaymentHandler(p Payments, log *zap.Logger) *PaymentHandler {
	if p == nil {
		panic("nil Payments passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p, Log: log}
}

type checkoutReq struct {
	TuitionID  string  `json:"tuitionId"`
	TutorEmail string  `json:"tutorEmail"`
	Amount     float64 `json:"amount"`
}

type successReq struct {
	SessionID string `json:"sessionId"`
}

// CreateSession handles POST /create-checkout-session.
func (h *PaymentHandler) CreateSession(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	tid, err := service.ParseID(req.TuitionID, "tuitionId")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	co, err := h.Payments.CreateSession(ctx, id, service.CheckoutInput{
		TuitionID:  tid,
		TutorEmail: req.TutorEmail,
		Amount:     req.Amount,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, co)
}

// Success handles POST /payment-success, called by the client after the
// provider redirected back.
func (h *PaymentHandler) Success(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req successReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Log, badRequest("invalid body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, err := h.Payments.Reconcile(ctx, req.SessionID, id.Email)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	status := http.StatusCreated
	switch r.State {
	case service.StateDuplicate:
		status = http.StatusOK
	case service.StateRefundDue:
		status = http.StatusConflict
	}
	return c.JSON(status, r)
}

// Webhook handles POST /webhooks/stripe. Event types other than a completed
// checkout are acknowledged and ignored.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return respondError(c, h.Log, badRequest("unreadable body"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, handled, err := h.Payments.ReconcileWebhook(ctx, payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !handled {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "state": r.State})
}

// List handles GET /payments.
func (h *PaymentHandler) List(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pr, err := pageRequest(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, err := h.Payments.List(ctx, id, pr)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}
