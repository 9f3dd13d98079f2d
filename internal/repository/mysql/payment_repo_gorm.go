package mysql

import (
	"context"

	"kasuwa/internal/domain"
	"kasuwa/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(p).Error, "create payment")
}

// Update persists a payment guarded by its version and, when present, the
// paired order status change in the same transaction.
func (r *paymentRepo) Update(ctx context.Context, upd domain.PaymentUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := upd.Payment
		result := tx.Model(&domain.Payment{}).
			Where("id = ? AND version = ?", p.ID, upd.Version).
			Updates(map[string]any{
				"method":                p.Method,
				"provider":              p.Provider,
				"status":                p.Status,
				"transaction_id":        p.TransactionID,
				"failure_reason":        p.FailureReason,
				"attempts":              p.Attempts,
				"charge_reference":      p.ChargeReference,
				"processed_date":        p.ProcessedDate,
				"refund_amount":         p.RefundAmount,
				"refund_date":           p.RefundDate,
				"refund_reason":         p.RefundReason,
				"refund_transaction_id": p.RefundTransactionID,
				"refund_pending":        p.RefundPending,
				"version":               upd.Version + 1,
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, "update payment")
		}
		if result.RowsAffected == 0 {
			return errors.Wrapf(domain.ErrConcurrentUpdate, "payment %d", p.ID)
		}
		p.Version = upd.Version + 1

		if upd.Order != nil {
			return applyOrderStatus(tx, *upd.Order)
		}
		return nil
	})
}

func (r *paymentRepo) FindByID(ctx context.Context, id uint) (*domain.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID uint) (*domain.Payment, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, txID string) (*domain.Payment, error) {
	return r.findOne(ctx, "transaction_id = ?", txID)
}

func (r *paymentRepo) findOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find payment")
	}
	return &p, nil
}
