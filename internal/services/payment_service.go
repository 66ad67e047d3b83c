package services

import (
	"context"
	"encoding/json"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreatePaymentInput opens a payment for an order. Amount defaults to the
// order total. Metadata may be a JSON object or a JSON-encoded string.
type CreatePaymentInput struct {
	OrderID             string               `json:"order_id" validate:"required"`
	Method              models.PaymentMethod `json:"method" validate:"required,oneof=card bank_transfer cash wallet"`
	Amount              *decimal.Decimal     `json:"amount"`
	ProofFile           string               `json:"-"`
	ProofURL            string               `json:"proof_url" validate:"omitempty,url"`
	ExternalID          string               `json:"external_id" validate:"omitempty,max=255"`
	ExternalRedirectURL string               `json:"external_redirect_url" validate:"omitempty,url"`
	Metadata            json.RawMessage      `json:"metadata"`
}

// ProofInput attaches a stored file, a URL or both.
type ProofInput struct {
	File string
	URL  string
}

// PaymentService runs the payment state machine and keeps the parent order
// consistent with it.
type PaymentService struct {
	store  repositories.Store
	policy policy.Policy
	logger *zap.Logger
	notifier
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repositories.Store, pol policy.Policy, publisher events.Publisher, logger *zap.Logger) *PaymentService {
	n := newNotifier(publisher, logger)
	return &PaymentService{
		store:    store,
		policy:   pol,
		logger:   n.logger,
		notifier: n,
	}
}

// List returns payments matching filter. Customers only see payments of
// their own orders.
func (s *PaymentService) List(ctx context.Context, actor policy.Actor, filter models.PaymentFilter) ([]models.Payment, error) {
	if actor.UserID == "" {
		return nil, apperr.Unauthorized(string(policy.PaymentRead))
	}
	if !actor.IsStaff() {
		filter.UserID = actor.UserID
	}
	return s.store.Payments().GetAll(ctx, filter)
}

// Get retrieves a payment the actor may see.
func (s *PaymentService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.PaymentRead, orderResource(order)); err != nil {
		return nil, err
	}
	return payment, nil
}

// Create opens a payment on a pending order. The order row is locked while
// the open payments are counted, so two concurrent requests cannot both
// open one. A payment created with a proof starts in review and takes the
// order into review with it.
func (s *PaymentService) Create(ctx context.Context, actor policy.Actor, input CreatePaymentInput) (*models.Payment, error) {
	meta, err := DecodeMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}
	if err := CheckSensitiveData(input.Method, meta); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.PaymentCreate, orderResource(order)); err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return apperr.OrderLocked(order.Status.String())
		}
		open, err := tx.Payments().CountOpen(ctx, order.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.DuplicateOpenPayment(order.ID)
		}

		amount := order.Total
		if input.Amount != nil {
			if input.Amount.IsNegative() {
				return apperr.Validation("amount must not be negative")
			}
			amount = *input.Amount
		}
		payment = &models.Payment{
			OrderID:             order.ID,
			Method:              input.Method,
			Status:              models.PaymentPending,
			Amount:              amount,
			ProofFile:           input.ProofFile,
			ProofURL:            input.ProofURL,
			ExternalID:          input.ExternalID,
			ExternalRedirectURL: input.ExternalRedirectURL,
			Metadata:            meta,
		}
		if payment.HasProof() {
			payment.Status = models.PaymentInReview
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		if payment.Status == models.PaymentInReview {
			return tx.Orders().UpdateStatus(ctx, order.ID, models.OrderInReview)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", payment.Status.String()))
	ev := events.New(events.PaymentCreated, payment.OrderID)
	ev.EntityID = payment.ID
	ev.Status = payment.Status.String()
	ev.Total = &payment.Amount
	s.notify(ctx, ev)
	return payment, nil
}

// SubmitProof attaches a proof to a pending payment and moves it, and a
// pending order, into review.
func (s *PaymentService) SubmitProof(ctx context.Context, actor policy.Actor, id string, proof ProofInput) (*models.Payment, error) {
	if proof.File == "" && proof.URL == "" {
		return nil, apperr.Validation("a proof file or proof URL is required")
	}
	return s.transition(ctx, actor, id, policy.PaymentSubmitProof, func(p *models.Payment, o *models.Order) (models.OrderStatus, error) {
		if p.Status != models.PaymentPending {
			return "", apperr.InvalidStateTransition("payment", p.Status.String(), models.PaymentInReview.String())
		}
		if proof.File != "" {
			p.ProofFile = proof.File
		}
		if proof.URL != "" {
			p.ProofURL = proof.URL
		}
		p.Status = models.PaymentInReview
		return promoteToReview(o), nil
	})
}

// Review moves a pending payment, and a pending order, into review.
func (s *PaymentService) Review(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	return s.transition(ctx, actor, id, policy.PaymentReview, func(p *models.Payment, o *models.Order) (models.OrderStatus, error) {
		if p.Status != models.PaymentPending {
			return "", apperr.InvalidStateTransition("payment", p.Status.String(), models.PaymentInReview.String())
		}
		p.Status = models.PaymentInReview
		return promoteToReview(o), nil
	})
}

// Approve completes a payment that is in review.
func (s *PaymentService) Approve(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	return s.transition(ctx, actor, id, policy.PaymentApprove, func(p *models.Payment, o *models.Order) (models.OrderStatus, error) {
		if p.Status != models.PaymentInReview {
			return "", apperr.InvalidStateTransition("payment", p.Status.String(), models.PaymentCompleted.String())
		}
		return completePayment(p, o)
	})
}

// Complete completes a pending or in-review payment.
func (s *PaymentService) Complete(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	return s.transition(ctx, actor, id, policy.PaymentComplete, completePayment)
}

// Reject fails a pending or in-review payment and returns an order in
// review to pending.
func (s *PaymentService) Reject(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	return s.transition(ctx, actor, id, policy.PaymentReject, failPayment)
}

// Fail fails a pending or in-review payment. The owner of the order may
// fail their own payment.
func (s *PaymentService) Fail(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error) {
	return s.transition(ctx, actor, id, policy.PaymentFail, failPayment)
}

// paymentStep mutates the payment in place and returns the status the order
// should move to, or "" to leave it alone.
type paymentStep func(p *models.Payment, o *models.Order) (models.OrderStatus, error)

// transition locks the order and the payment, applies step and writes both
// in one transaction.
func (s *PaymentService) transition(ctx context.Context, actor policy.Actor, id string, action policy.Action, step paymentStep) (*models.Payment, error) {
	var (
		payment *models.Payment
		from    models.PaymentStatus
		orderTo models.OrderStatus
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		current, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		order, err := tx.Orders().GetByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, action, orderResource(order)); err != nil {
			return err
		}
		payment, err = tx.Payments().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from = payment.Status
		orderTo, err = step(payment, order)
		if err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}
		if orderTo != "" && orderTo != order.Status {
			return tx.Orders().UpdateStatus(ctx, order.ID, orderTo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status changed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("from", from.String()),
		zap.String("to", payment.Status.String()))
	ev := events.New(events.PaymentStatusChanged, payment.OrderID)
	ev.EntityID = payment.ID
	ev.Status = payment.Status.String()
	s.notify(ctx, ev)
	if orderTo != "" {
		oev := events.New(events.OrderStatusChanged, payment.OrderID)
		oev.Status = orderTo.String()
		s.notify(ctx, oev)
	}
	return payment, nil
}

func completePayment(p *models.Payment, o *models.Order) (models.OrderStatus, error) {
	if o.Status == models.OrderCancelled {
		return "", apperr.OrderLocked(o.Status.String())
	}
	if !p.Status.CanTransitionTo(models.PaymentCompleted) {
		return "", apperr.InvalidStateTransition("payment", p.Status.String(), models.PaymentCompleted.String())
	}
	p.Status = models.PaymentCompleted
	if o.Status == models.OrderPending || o.Status == models.OrderInReview {
		return models.OrderProcessing, nil
	}
	return "", nil
}

func failPayment(p *models.Payment, o *models.Order) (models.OrderStatus, error) {
	if !p.Status.CanTransitionTo(models.PaymentFailed) {
		return "", apperr.InvalidStateTransition("payment", p.Status.String(), models.PaymentFailed.String())
	}
	p.Status = models.PaymentFailed
	if o.Status == models.OrderInReview {
		return models.OrderPending, nil
	}
	return "", nil
}

func promoteToReview(o *models.Order) models.OrderStatus {
	if o.Status == models.OrderPending {
		return models.OrderInReview
	}
	return ""
}
