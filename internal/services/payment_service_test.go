package services

import (
	"context"
	"testing"
	"time"

	"kasuwa/internal/domain"
	"kasuwa/internal/infra"
	"kasuwa/internal/mocks"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentMocks struct {
	payments *mocks.MockPaymentRepository
	orders   *mocks.MockOrderRepository
	gateway  *mocks.MockPaymentGateway
	pub      *mocks.MockPublisher
}

func newPaymentService() (*PaymentService, paymentMocks) {
	m := paymentMocks{
		payments: new(mocks.MockPaymentRepository),
		orders:   new(mocks.MockOrderRepository),
		gateway:  new(mocks.MockPaymentGateway),
		pub:      new(mocks.MockPublisher),
	}
	return NewPaymentService(m.payments, m.orders, m.gateway, m.pub, time.Second), m
}

func (m paymentMocks) assertExpectations(t *testing.T) {
	m.payments.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.gateway.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

func withStatus(s domain.PaymentStatus) interface{} {
	return mock.MatchedBy(func(u domain.PaymentUpdate) bool { return u.Payment.Status == s })
}

func processInput() ProcessPaymentInput {
	return ProcessPaymentInput{OrderID: 5, Method: "card", Provider: "paystack"}
}

func TestPaymentService_Process(t *testing.T) {
	tests := []struct {
		name          string
		actor         domain.Actor
		setupMocks    func(m paymentMocks)
		expectedError error
		expected      domain.PaymentStatus
		check         func(t *testing.T, p *domain.Payment)
	}{
		{
			name:  "completed charge confirms the order",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(nil, nil)
				m.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
					return p.Amount.Equal(naira(54350)) && p.Status == domain.PaymentPending && p.Currency == "NGN"
				})).Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*domain.Payment).ID = 70
				})
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentProcessing)).Return(nil).Once()
				m.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(r infra.ChargeRequest) bool {
					return r.Reference == "KSW-20250101-ABCDEF12-1" && r.Amount.Equal(naira(54350)) && r.Provider == "paystack"
				})).Return(&infra.ChargeResult{TransactionID: "tx-1", Status: "completed"}, nil)
				m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
					return u.Payment.Status == domain.PaymentCompleted &&
						u.Order != nil &&
						u.Order.Order.Status == domain.StatusConfirmed &&
						u.Order.Version == 2 &&
						u.Order.Entry.Status == domain.StatusConfirmed
				})).Return(nil).Once()
				m.pub.On("Publish", mock.Anything, domain.EventPaymentCompleted, mock.Anything).Return(nil)
				m.pub.On("Publish", mock.Anything, domain.EventOrderStatusChanged, mock.Anything).Return(nil)
			},
			expected: domain.PaymentCompleted,
			check: func(t *testing.T, p *domain.Payment) {
				require.NotNil(t, p.TransactionID)
				assert.Equal(t, "tx-1", *p.TransactionID)
				assert.Equal(t, 1, p.Attempts)
				assert.NotNil(t, p.ProcessedDate)
			},
		},
		{
			name:  "gateway error records a failed payment",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(nil, nil)
				m.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentProcessing)).Return(nil).Once()
				m.gateway.On("Charge", mock.Anything, mock.Anything).Return(nil, errors.New("i/o timeout"))
				m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
					return u.Payment.Status == domain.PaymentFailed && u.Order == nil
				})).Return(nil).Once()
				m.pub.On("Publish", mock.Anything, domain.EventPaymentFailed, mock.Anything).Return(nil)
			},
			expected: domain.PaymentFailed,
			check: func(t *testing.T, p *domain.Payment) {
				assert.Equal(t, "payment gateway error: i/o timeout", p.FailureReason)
				assert.Nil(t, p.TransactionID)
				assert.Equal(t, "KSW-20250101-ABCDEF12-1", p.ChargeReference)
			},
		},
		{
			name:  "declined charge",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(nil, nil)
				m.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentProcessing)).Return(nil).Once()
				m.gateway.On("Charge", mock.Anything, mock.Anything).
					Return(&infra.ChargeResult{TransactionID: "tx-2", Status: "FAILED", Reason: "insufficient funds"}, nil)
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentFailed)).Return(nil).Once()
				m.pub.On("Publish", mock.Anything, domain.EventPaymentFailed, mock.Anything).Return(nil)
			},
			expected: domain.PaymentFailed,
			check: func(t *testing.T, p *domain.Payment) {
				assert.Equal(t, "insufficient funds", p.FailureReason)
				assert.Empty(t, p.ChargeReference)
			},
		},
		{
			name:  "provider still deciding",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(nil, nil)
				m.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentProcessing)).Return(nil).Twice()
				m.gateway.On("Charge", mock.Anything, mock.Anything).
					Return(&infra.ChargeResult{TransactionID: "tx-3", Status: "pending"}, nil)
			},
			expected: domain.PaymentProcessing,
			check: func(t *testing.T, p *domain.Payment) {
				require.NotNil(t, p.TransactionID)
				assert.Equal(t, "tx-3", *p.TransactionID)
			},
		},
		{
			name:  "retry after a declined attempt",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(&domain.Payment{
					ID: 70, OrderID: 5, Amount: naira(54350), Currency: "NGN", Status: domain.PaymentFailed,
					Attempts: 1, FailureReason: "insufficient funds", Version: 3,
				}, nil)
				m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
					return u.Payment.Status == domain.PaymentProcessing && u.Version == 3
				})).Return(nil).Once()
				m.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(r infra.ChargeRequest) bool {
					return r.Reference == "KSW-20250101-ABCDEF12-2"
				})).Return(&infra.ChargeResult{TransactionID: "tx-4", Status: "completed"}, nil)
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentCompleted)).Return(nil).Once()
				m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			expected: domain.PaymentCompleted,
			check: func(t *testing.T, p *domain.Payment) {
				assert.Equal(t, 2, p.Attempts)
				assert.Empty(t, p.FailureReason)
			},
		},
		{
			name:  "retry after a timeout reuses the charge reference",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(&domain.Payment{
					ID: 70, OrderID: 5, Amount: naira(54350), Currency: "NGN", Status: domain.PaymentFailed,
					Attempts: 1, FailureReason: "payment gateway error: timeout", Version: 3,
					ChargeReference: "KSW-20250101-ABCDEF12-1",
				}, nil)
				m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
					return u.Payment.Status == domain.PaymentProcessing && u.Payment.ChargeReference == "KSW-20250101-ABCDEF12-1"
				})).Return(nil).Once()
				m.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(r infra.ChargeRequest) bool {
					return r.Reference == "KSW-20250101-ABCDEF12-1"
				})).Return(&infra.ChargeResult{TransactionID: "tx-1", Status: "completed"}, nil).Once()
				m.payments.On("Update", mock.Anything, withStatus(domain.PaymentCompleted)).Return(nil).Once()
				m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			expected: domain.PaymentCompleted,
			check: func(t *testing.T, p *domain.Payment) {
				assert.Equal(t, 2, p.Attempts)
				require.NotNil(t, p.TransactionID)
				assert.Equal(t, "tx-1", *p.TransactionID)
			},
		},
		{
			name:  "completed payment is not charged twice",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				o := pendingOrder()
				o.Status = domain.StatusConfirmed
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(o, nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(&domain.Payment{ID: 70, Status: domain.PaymentCompleted}, nil)
			},
			expected: domain.PaymentCompleted,
		},
		{
			name:  "attempt already in flight",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(&domain.Payment{ID: 70, Status: domain.PaymentProcessing}, nil)
			},
			expectedError: domain.ErrPaymentInProgress,
		},
		{
			name:  "cancelled order is not payable",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				o := pendingOrder()
				o.Status = domain.StatusCancelled
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(o, nil)
				m.payments.On("FindByOrderID", mock.Anything, uint(5)).Return(nil, nil)
			},
			expectedError: domain.ErrOrderNotPayable,
		},
		{
			name:  "someone else's order",
			actor: stranger,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
			},
			expectedError: domain.ErrForbidden,
		},
		{
			name:  "unknown order",
			actor: customer,
			setupMocks: func(m paymentMocks) {
				m.orders.On("FindByID", mock.Anything, uint(5)).Return(nil, nil)
			},
			expectedError: domain.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newPaymentService()
			tt.setupMocks(m)

			p, err := svc.Process(context.Background(), tt.actor, processInput())
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, p)
				m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Status)
			if tt.check != nil {
				tt.check(t, p)
			}
			m.assertExpectations(t)
		})
	}
}

func TestPaymentService_Process_Validation(t *testing.T) {
	svc, _ := newPaymentService()
	_, err := svc.Process(context.Background(), customer, ProcessPaymentInput{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func processingPayment() *domain.Payment {
	tx := "tx-9"
	return &domain.Payment{
		ID: 70, OrderID: 5, Amount: naira(54350), Currency: "NGN",
		Status: domain.PaymentProcessing, TransactionID: &tx, Attempts: 1,
	}
}

func TestPaymentService_HandleCallback(t *testing.T) {
	t.Run("completed callback confirms the order", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByTransactionID", mock.Anything, "tx-9").Return(processingPayment(), nil)
		m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)
		m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
			return u.Payment.Status == domain.PaymentCompleted && u.Order != nil && u.Order.Entry.UpdatedBy == 0
		})).Return(nil)
		m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		p, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "tx-9", Status: "completed"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, p.Status)
		m.assertExpectations(t)
	})

	t.Run("repeated callback is a no-op", func(t *testing.T) {
		svc, m := newPaymentService()
		p := processingPayment()
		p.Status = domain.PaymentCompleted
		m.payments.On("FindByTransactionID", mock.Anything, "tx-9").Return(p, nil)

		got, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "tx-9", Status: "completed"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, got.Status)
		m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("failed callback falls back to payment id", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByTransactionID", mock.Anything, "unknown").Return(nil, nil)
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(processingPayment(), nil)
		m.payments.On("Update", mock.Anything, withStatus(domain.PaymentFailed)).Return(nil)
		m.pub.On("Publish", mock.Anything, domain.EventPaymentFailed, mock.Anything).Return(nil)

		p, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "unknown", PaymentID: 70, Status: "failed"})
		require.NoError(t, err)
		assert.Equal(t, "declined by provider", p.FailureReason)
	})

	t.Run("late success on a failed payment needs reconciliation", func(t *testing.T) {
		svc, m := newPaymentService()
		p := processingPayment()
		p.Status = domain.PaymentFailed
		m.payments.On("FindByTransactionID", mock.Anything, "tx-9").Return(p, nil)

		_, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "tx-9", Status: "completed"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("unknown payment", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByTransactionID", mock.Anything, "nope").Return(nil, nil)
		_, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "nope", Status: "completed"})
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByTransactionID", mock.Anything, "tx-9").Return(processingPayment(), nil)
		_, err := svc.HandleCallback(context.Background(), CallbackInput{TransactionID: "tx-9", Status: "chargeback"})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func completedPayment() *domain.Payment {
	p := processingPayment()
	p.Status = domain.PaymentCompleted
	p.RefundAmount = decimal.Zero
	p.Version = 4
	return p
}

func refundClaim(amount int64) interface{} {
	return mock.MatchedBy(func(u domain.PaymentUpdate) bool {
		return u.Payment.RefundPending.Equal(naira(amount)) && u.Order == nil &&
			(u.Payment.Status == domain.PaymentCompleted || u.Payment.Status == domain.PaymentPartiallyRefunded)
	})
}

func TestPaymentService_Refund(t *testing.T) {
	t.Run("full refund moves a delivered order to refunded", func(t *testing.T) {
		svc, m := newPaymentService()
		o := pendingOrder()
		o.Status = domain.StatusDelivered
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(completedPayment(), nil)
		m.payments.On("Update", mock.Anything, refundClaim(54350)).Return(nil).Once()
		m.gateway.On("Refund", mock.Anything, mock.MatchedBy(func(r infra.RefundRequest) bool {
			return r.TransactionID == "tx-9" && r.Amount.Equal(naira(54350))
		})).Return(&infra.RefundResult{RefundTransactionID: "rf-1", Status: "completed"}, nil)
		m.orders.On("FindByID", mock.Anything, uint(5)).Return(o, nil)
		m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
			return u.Version == 4 && u.Payment.Status == domain.PaymentRefunded &&
				u.Payment.RefundPending.IsZero() &&
				u.Order != nil && u.Order.Order.Status == domain.StatusRefunded
		})).Return(nil).Once()
		m.pub.On("Publish", mock.Anything, domain.EventPaymentRefunded, mock.Anything).Return(nil)

		p, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(54350), Reason: "returned"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentRefunded, p.Status)
		assert.Equal(t, "rf-1", p.RefundTransactionID)
		m.assertExpectations(t)
	})

	t.Run("partial refund leaves the order alone", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(completedPayment(), nil)
		m.payments.On("Update", mock.Anything, refundClaim(10000)).Return(nil).Once()
		m.gateway.On("Refund", mock.Anything, mock.Anything).Return(&infra.RefundResult{RefundTransactionID: "rf-2", Status: "completed"}, nil)
		m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
			return u.Payment.Status == domain.PaymentPartiallyRefunded && u.Order == nil
		})).Return(nil).Once()
		m.pub.On("Publish", mock.Anything, domain.EventPaymentRefunded, mock.Anything).Return(nil)

		p, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(10000), Reason: "one item damaged"})
		require.NoError(t, err)
		assert.True(t, p.RefundAmount.Equal(naira(10000)))
		m.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("refund larger than remaining amount", func(t *testing.T) {
		svc, m := newPaymentService()
		p := completedPayment()
		p.Status = domain.PaymentPartiallyRefunded
		p.RefundAmount = naira(50000)
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(p, nil)

		_, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(5000), Reason: "again"})
		assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)
		m.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure releases the claim", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(completedPayment(), nil)
		m.payments.On("Update", mock.Anything, refundClaim(100)).Return(nil).Once()
		m.gateway.On("Refund", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
		m.payments.On("Update", mock.Anything, mock.MatchedBy(func(u domain.PaymentUpdate) bool {
			return u.Payment.RefundPending.IsZero() && u.Payment.Status == domain.PaymentCompleted &&
				u.Payment.RefundAmount.IsZero()
		})).Return(nil).Once()

		_, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(100), Reason: "x"})
		assert.ErrorIs(t, err, domain.ErrPaymentGateway)
		m.payments.AssertExpectations(t)
		m.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refund already in flight", func(t *testing.T) {
		svc, m := newPaymentService()
		p := completedPayment()
		p.RefundPending = naira(70)
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(p, nil)

		_, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(80), Reason: "again"})
		assert.ErrorIs(t, err, domain.ErrRefundInProgress)
		m.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
		m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("lost claim never reaches the gateway", func(t *testing.T) {
		svc, m := newPaymentService()
		m.payments.On("FindByID", mock.Anything, uint(70)).Return(completedPayment(), nil)
		m.payments.On("Update", mock.Anything, refundClaim(80)).
			Return(errors.Wrapf(domain.ErrConcurrentUpdate, "payment 70")).Once()

		_, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(80), Reason: "again"})
		assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
		m.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("admins only", func(t *testing.T) {
		svc, _ := newPaymentService()
		_, err := svc.Refund(context.Background(), customer, 70, RefundInput{Amount: naira(100), Reason: "x"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("reason required", func(t *testing.T) {
		svc, _ := newPaymentService()
		_, err := svc.Refund(context.Background(), admin, 70, RefundInput{Amount: naira(100)})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestPaymentService_GetPayment(t *testing.T) {
	svc, m := newPaymentService()
	m.payments.On("FindByID", mock.Anything, uint(70)).Return(completedPayment(), nil)
	m.orders.On("FindByID", mock.Anything, uint(5)).Return(pendingOrder(), nil)

	_, err := svc.GetPayment(context.Background(), customer, 70)
	assert.NoError(t, err)
	_, err = svc.GetPayment(context.Background(), admin, 70)
	assert.NoError(t, err)
	_, err = svc.GetPayment(context.Background(), stranger, 70)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
