package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kasuwa/internal/domain"
	"kasuwa/internal/infra"
	rabbit "kasuwa/internal/infra/rabbitmq"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type PaymentService struct {
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
	gateway   infra.PaymentGatewayInterface
	publisher rabbit.PublisherInterface
	timeout   time.Duration
}

func NewPaymentService(p repository.PaymentRepository, o repository.OrderRepository,
	gw infra.PaymentGatewayInterface, pub rabbit.PublisherInterface, timeout time.Duration) *PaymentService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaymentService{
		payments:  p,
		orders:    o,
		gateway:   gw,
		publisher: pub,
		timeout:   timeout,
	}
}

type ProcessPaymentInput struct {
	OrderID  uint
	Method   string
	Provider string
}

// Process charges a pending order through the gateway and records the
// provider's declared result. Completed payments are returned unchanged so a
// retried request never charges twice.
func (s *PaymentService) Process(ctx context.Context, actor domain.Actor, in ProcessPaymentInput) (*domain.Payment, error) {
	verr := domain.NewValidationError()
	if in.OrderID == 0 {
		verr.Add("orderId is required")
	}
	if strings.TrimSpace(in.Method) == "" {
		verr.Add("method is required")
	}
	if strings.TrimSpace(in.Provider) == "" {
		verr.Add("provider is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !actor.IsAdmin() && o.CustomerID != actor.UserID {
		return nil, domain.ErrForbidden
	}

	p, err := s.payments.FindByOrderID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		switch {
		case p.Status.Settled():
			return p, nil
		case p.Status == domain.PaymentProcessing:
			return nil, domain.ErrPaymentInProgress
		case p.Status == domain.PaymentCancelled:
			return nil, domain.ErrOrderNotPayable
		}
	}
	if o.Status != domain.StatusPending {
		return nil, errors.Wrapf(domain.ErrOrderNotPayable, "order %s is %s", o.OrderNumber, o.Status)
	}

	if p == nil {
		p = &domain.Payment{
			OrderID:      o.ID,
			Method:       in.Method,
			Provider:     in.Provider,
			Amount:       o.Total,
			Currency:     o.Currency,
			Status:       domain.PaymentPending,
			RefundAmount: decimal.Zero,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			logger.Error().Err(err).Msgf("Error creating payment for order %d", o.ID)
			return nil, err
		}
	}
	p.Method, p.Provider = in.Method, in.Provider

	version := p.Version
	if err := p.StartAttempt(o.OrderNumber); err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, domain.PaymentUpdate{Payment: p, Version: version}); err != nil {
		return nil, err
	}

	return s.charge(ctx, o, p)
}

func (s *PaymentService) charge(ctx context.Context, o *domain.Order, p *domain.Payment) (*domain.Payment, error) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.gateway.Charge(gctx, infra.ChargeRequest{
		Reference:   p.ChargeReference,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      p.Method,
		Provider:    p.Provider,
		CustomerID:  o.CustomerID,
		Description: "Order " + o.OrderNumber,
	})
	cancel()

	// the outcome is recorded even if the caller went away meanwhile
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		logger.Warn().Err(err).Msgf("Payment gateway error for order %d", o.ID)
		return s.recordFailure(ctx, p, "payment gateway error: "+err.Error(), false)
	}

	if res.TransactionID != "" {
		txID := res.TransactionID
		p.TransactionID = &txID
	}
	switch strings.ToLower(res.Status) {
	case infra.ChargeCompleted:
		return s.recordSuccess(ctx, o, p, domain.Actor{UserID: o.CustomerID, Role: domain.RoleCustomer})
	case infra.ChargeFailed:
		reason := res.Reason
		if reason == "" {
			reason = "declined by provider"
		}
		return s.recordFailure(ctx, p, reason, true)
	default:
		if err := s.payments.Update(ctx, domain.PaymentUpdate{Payment: p, Version: p.Version}); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (s *PaymentService) recordSuccess(ctx context.Context, o *domain.Order, p *domain.Payment, by domain.Actor) (*domain.Payment, error) {
	version := p.Version
	at := utcNow()
	txID := ""
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}
	if err := p.MarkCompleted(txID, at); err != nil {
		return nil, err
	}

	upd := domain.PaymentUpdate{Payment: p, Version: version}
	confirmed := false
	if o.Status == domain.StatusPending {
		orderVersion := o.Version
		if err := o.Transition(domain.StatusConfirmed, at); err != nil {
			return nil, err
		}
		upd.Order = &domain.OrderStatusUpdate{
			Order:   o,
			Version: orderVersion,
			Entry: domain.OrderTracking{
				Status:    domain.StatusConfirmed,
				Notes:     "Payment received",
				UpdatedBy: by.UserID,
			},
		}
		confirmed = true
	}

	if err := s.payments.Update(ctx, upd); err != nil {
		logger.Error().Err(err).Msgf("Error recording completed payment %d", p.ID)
		return nil, err
	}

	publish(ctx, s.publisher, domain.EventPaymentCompleted, domain.NewPaymentEvent(p, "", at))
	if confirmed {
		publish(ctx, s.publisher, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			CustomerID:  o.CustomerID,
			From:        domain.StatusPending,
			To:          domain.StatusConfirmed,
			ChangedBy:   by.UserID,
			ChangedAt:   at,
		})
	}
	return p, nil
}

// recordFailure stores a failed attempt. A declined charge releases its
// reference; any other failure keeps it for the retry.
func (s *PaymentService) recordFailure(ctx context.Context, p *domain.Payment, reason string, declined bool) (*domain.Payment, error) {
	version := p.Version
	mark := p.MarkFailed
	if declined {
		mark = p.MarkDeclined
	}
	if err := mark(reason); err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, domain.PaymentUpdate{Payment: p, Version: version}); err != nil {
		logger.Error().Err(err).Msgf("Error recording failed payment %d", p.ID)
		return nil, err
	}
	publish(ctx, s.publisher, domain.EventPaymentFailed, domain.NewPaymentEvent(p, reason, utcNow()))
	return p, nil
}

type CallbackInput struct {
	TransactionID string
	PaymentID     uint
	Status        string
	Reason        string
}

// HandleCallback applies a result the provider reports asynchronously.
// Repeating a callback that was already applied is a no-op.
func (s *PaymentService) HandleCallback(ctx context.Context, in CallbackInput) (*domain.Payment, error) {
	var (
		p   *domain.Payment
		err error
	)
	if in.TransactionID != "" {
		p, err = s.payments.FindByTransactionID(ctx, in.TransactionID)
		if err != nil {
			return nil, err
		}
	}
	if p == nil && in.PaymentID != 0 {
		p, err = s.payments.FindByID(ctx, in.PaymentID)
		if err != nil {
			return nil, err
		}
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}

	status := strings.ToLower(in.Status)
	switch status {
	case infra.ChargeCompleted:
		if p.Status.Settled() {
			return p, nil
		}
	case infra.ChargeFailed:
		if p.Status == domain.PaymentFailed {
			return p, nil
		}
	case infra.ChargePending:
		return p, nil
	default:
		return nil, domain.NewValidationError("status " + in.Status + " is not valid")
	}

	if p.Status != domain.PaymentProcessing {
		logger.Warn().Msgf("Callback %s for payment %d in status %s needs manual reconciliation", status, p.ID, p.Status)
		return nil, errors.Wrapf(domain.ErrInvalidTransition, "payment %d is %s", p.ID, p.Status)
	}
	if p.TransactionID == nil && in.TransactionID != "" {
		txID := in.TransactionID
		p.TransactionID = &txID
	}

	if status == infra.ChargeFailed {
		reason := in.Reason
		if reason == "" {
			reason = "declined by provider"
		}
		return s.recordFailure(ctx, p, reason, true)
	}

	o, err := s.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return s.recordSuccess(ctx, o, p, domain.Actor{})
}

type RefundInput struct {
	Amount decimal.Decimal
	Reason string
}

// Refund claims the amount on the payment, returns it through the gateway
// and then records the refund, and the order's refunded status on a full
// refund, atomically. The versioned claim lets only one request reach the
// gateway per payment at a time.
func (s *PaymentService) Refund(ctx context.Context, actor domain.Actor, paymentID uint, in RefundInput) (*domain.Payment, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.NewValidationError("reason is required")
	}

	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	version := p.Version
	if err := p.ClaimRefund(in.Amount); err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, domain.PaymentUpdate{Payment: p, Version: version}); err != nil {
		return nil, err
	}

	// the claim must be settled or released even if the caller went away
	ctx = context.WithoutCancel(ctx)

	txID := ""
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.gateway.Refund(gctx, infra.RefundRequest{
		TransactionID: txID,
		Reference:     fmt.Sprintf("refund-%d-%s", p.ID, p.RefundAmount.Add(in.Amount).StringFixed(2)),
		Amount:        in.Amount,
		Currency:      p.Currency,
		Reason:        in.Reason,
	})
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msgf("Refund gateway error for payment %d", p.ID)
		s.releaseRefund(ctx, p)
		return nil, errors.Wrap(domain.ErrPaymentGateway, err.Error())
	}
	if strings.ToLower(res.Status) == infra.ChargeFailed {
		s.releaseRefund(ctx, p)
		return nil, errors.Wrapf(domain.ErrPaymentGateway, "refund declined: %s", res.Reason)
	}

	version = p.Version
	at := utcNow()
	if err := p.ApplyRefund(in.Amount, in.Reason, res.RefundTransactionID, at); err != nil {
		return nil, err
	}

	upd := domain.PaymentUpdate{Payment: p, Version: version}
	if p.Status == domain.PaymentRefunded {
		o, err := s.orders.FindByID(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		if o != nil && domain.CanTransition(o.Status, domain.StatusRefunded) {
			orderVersion := o.Version
			if err := o.Transition(domain.StatusRefunded, at); err != nil {
				return nil, err
			}
			upd.Order = &domain.OrderStatusUpdate{
				Order:   o,
				Version: orderVersion,
				Entry: domain.OrderTracking{
					Status:    domain.StatusRefunded,
					Notes:     "Payment refunded: " + in.Reason,
					UpdatedBy: actor.UserID,
				},
			}
		}
	}

	if err := s.payments.Update(ctx, upd); err != nil {
		logger.Error().Err(err).Msgf("Refund %s for payment %d reached the provider (%s) but was not recorded",
			in.Amount.StringFixed(2), p.ID, res.RefundTransactionID)
		return nil, err
	}
	publish(ctx, s.publisher, domain.EventPaymentRefunded, domain.NewPaymentEvent(p, in.Reason, at))
	return p, nil
}

func (s *PaymentService) releaseRefund(ctx context.Context, p *domain.Payment) {
	version := p.Version
	p.ReleaseRefund()
	if err := s.payments.Update(ctx, domain.PaymentUpdate{Payment: p, Version: version}); err != nil {
		logger.Error().Err(err).Msgf("Error releasing refund claim on payment %d", p.ID)
	}
}

func (s *PaymentService) GetPayment(ctx context.Context, actor domain.Actor, id uint) (*domain.Payment, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if actor.IsAdmin() {
		return p, nil
	}
	o, err := s.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.CustomerID != actor.UserID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}
