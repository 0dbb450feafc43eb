package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veralix/server/internal/module/payment/provider"
)

// Repository defines the interface for payment data access.
type Repository interface {
	// Pending payment operations
	CreatePendingPayment(ctx context.Context, p *PendingPayment) error
	GetPendingPaymentByReference(ctx context.Context, reference string) (*PendingPayment, error)
	MarkPendingPaymentDeclined(ctx context.Context, id uuid.UUID, reason string) error
	DeletePendingPayment(ctx context.Context, id uuid.UUID) error
	DeleteDeclinedPendingPayments(ctx context.Context, olderThan time.Time) (int64, error)
	ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*PendingPayment, error)

	// Webhook log operations
	CreateWebhookLog(ctx context.Context, log *WebhookLog) error
	UpdateWebhookLogSignature(ctx context.Context, id uuid.UUID, valid bool) error
	SetWebhookLogEvent(ctx context.Context, id uuid.UUID, event *provider.Event) error
	MarkWebhookLogProcessed(ctx context.Context, id uuid.UUID, processErr error) error

	// Settled purchase operations
	CreateSettledPurchase(ctx context.Context, sp *SettledPurchase) error
	GetSettledPurchaseByReference(ctx context.Context, reference string) (*SettledPurchase, error)
	GetSettledPurchaseByTransactionID(ctx context.Context, transactionID string) (*SettledPurchase, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// --- Pending Payment Operations ---

func (r *repository) CreatePendingPayment(ctx context.Context, p *PendingPayment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create pending payment: %w", err)
	}
	return nil
}

func (r *repository) GetPendingPaymentByReference(ctx context.Context, reference string) (*PendingPayment, error) {
	var p PendingPayment
	err := r.db.WithContext(ctx).First(&p, "order_reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingPaymentNotFound
		}
		return nil, fmt.Errorf("get pending payment by reference: %w", err)
	}
	return &p, nil
}

func (r *repository) MarkPendingPaymentDeclined(ctx context.Context, id uuid.UUID, reason string) error {
	updates := map[string]interface{}{
		"status": PendingStatusDeclined,
	}
	if reason != "" {
		updates["metadata"] = gorm.Expr(
			"COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('declined_reason', ?::text)", reason)
	}
	err := r.db.WithContext(ctx).
		Model(&PendingPayment{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark pending payment declined: %w", err)
	}
	return nil
}

func (r *repository) DeletePendingPayment(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Delete(&PendingPayment{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("delete pending payment: %w", err)
	}
	return nil
}

func (r *repository) DeleteDeclinedPendingPayments(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", PendingStatusDeclined, olderThan).
		Delete(&PendingPayment{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete declined pending payments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repository) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*PendingPayment, error) {
	var pending []*PendingPayment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", PendingStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	return pending, nil
}

// --- Webhook Log Operations ---

func (r *repository) CreateWebhookLog(ctx context.Context, log *WebhookLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create webhook log: %w", err)
	}
	return nil
}

func (r *repository) UpdateWebhookLogSignature(ctx context.Context, id uuid.UUID, valid bool) error {
	err := r.db.WithContext(ctx).
		Model(&WebhookLog{}).
		Where("id = ?", id).
		Update("signature_valid", valid).Error
	if err != nil {
		return fmt.Errorf("update webhook log signature: %w", err)
	}
	return nil
}

func (r *repository) SetWebhookLogEvent(ctx context.Context, id uuid.UUID, event *provider.Event) error {
	err := r.db.WithContext(ctx).
		Model(&WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"event_id":   event.EventID,
			"event_type": event.Type,
			"reference":  event.Reference,
			"amount":     event.Amount,
			"currency":   event.Currency,
		}).Error
	if err != nil {
		return fmt.Errorf("set webhook log event: %w", err)
	}
	return nil
}

func (r *repository) MarkWebhookLogProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	updates := map[string]interface{}{
		"processed":    true,
		"processed_at": gorm.Expr("NOW()"),
	}
	if processErr != nil {
		errStr := processErr.Error()
		updates["error"] = errStr
	}
	err := r.db.WithContext(ctx).
		Model(&WebhookLog{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook log processed: %w", err)
	}
	return nil
}

// --- Settled Purchase Operations ---

// CreateSettledPurchase inserts a settled purchase, relying on the
// unique indexes for idempotence. A conflicting insert returns
// ErrAlreadySettled without modifying the existing row.
func (r *repository) CreateSettledPurchase(ctx context.Context, sp *SettledPurchase) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sp)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("create settled purchase: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySettled
	}
	return nil
}

func (r *repository) GetSettledPurchaseByReference(ctx context.Context, reference string) (*SettledPurchase, error) {
	var sp SettledPurchase
	err := r.db.WithContext(ctx).First(&sp, "order_reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettledPurchaseNotFound
		}
		return nil, fmt.Errorf("get settled purchase by reference: %w", err)
	}
	return &sp, nil
}

func (r *repository) GetSettledPurchaseByTransactionID(ctx context.Context, transactionID string) (*SettledPurchase, error) {
	var sp SettledPurchase
	err := r.db.WithContext(ctx).First(&sp, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettledPurchaseNotFound
		}
		return nil, fmt.Errorf("get settled purchase by transaction id: %w", err)
	}
	return &sp, nil
}
