package payment

import (
	"context"
	"errors"
	"time"

	"github.com/veralix/server/internal/module/payment/provider"
	"github.com/veralix/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Notifier sends purchase confirmations after settlement. Notification
// failures never fail the settlement itself.
type Notifier interface {
	PurchaseConfirmation(ctx context.Context, purchase *SettledPurchase) error
}

// Applier turns approved payments into settled purchases exactly once.
//
// The insert into settled_purchases always happens before the pending
// row is deleted: a crash between the two steps leaves a duplicate
// pending row (cleaned up by the reconciler), never a paid order
// without a settlement record. The unique indexes on order_reference
// and transaction_id are the authoritative idempotence guard.
type Applier struct {
	repo     Repository
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewApplier creates a new settlement applier.
func NewApplier(repo Repository, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *Applier {
	return &Applier{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Apply settles an approved payment. Returns ErrAlreadySettled when the
// purchase was settled by an earlier delivery; callers treat that as a
// successful no-op.
func (a *Applier) Apply(ctx context.Context, pending *PendingPayment, event *provider.Event) (*SettledPurchase, error) {
	amount := event.Amount
	if amount == 0 {
		amount = pending.Amount
	}
	currency := event.Currency
	if currency == "" {
		currency = pending.Currency
	}

	purchase := &SettledPurchase{
		OrderReference: pending.OrderReference,
		TransactionID:  event.TransactionID,
		UserID:         pending.UserID,
		Gateway:        pending.Gateway,
		Amount:         amount,
		Currency:       currency,
		PaymentMethod:  event.PaymentMethod,
		Description:    pending.Description,
		CustomerEmail:  pending.CustomerEmail,
		Metadata:       pending.Metadata,
		SettledAt:      time.Now().UTC(),
	}

	if err := a.repo.CreateSettledPurchase(ctx, purchase); err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			a.logger.Info("settlement already applied",
				zap.String("reference", pending.OrderReference),
				zap.String("transaction_id", event.TransactionID),
			)
			return nil, ErrAlreadySettled
		}
		a.metrics.RecordSettlementFailure(pending.Gateway)
		return nil, err
	}

	// The settlement record exists; a failed delete only leaves a stale
	// pending row behind, which the reconciler sweeps.
	if err := a.repo.DeletePendingPayment(ctx, pending.ID); err != nil {
		a.logger.Warn("failed to delete pending payment after settlement",
			zap.String("reference", pending.OrderReference),
			zap.Error(err),
		)
	}

	a.metrics.RecordSettlement(pending.Gateway, event.PaymentMethod)
	a.logger.Info("payment settled",
		zap.String("reference", pending.OrderReference),
		zap.String("gateway", pending.Gateway),
		zap.String("transaction_id", event.TransactionID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)

	if a.notifier != nil {
		if err := a.notifier.PurchaseConfirmation(ctx, purchase); err != nil {
			a.logger.Warn("failed to send purchase confirmation",
				zap.String("reference", purchase.OrderReference),
				zap.Error(err),
			)
		}
	}

	return purchase, nil
}

// RetireDeclined marks a pending payment declined so the reconciler
// stops polling it. The row stays for the retention window as an audit
// trail.
func (a *Applier) RetireDeclined(ctx context.Context, pending *PendingPayment, event *provider.Event) error {
	reason := ""
	if event != nil {
		reason = event.Type
	}
	if err := a.repo.MarkPendingPaymentDeclined(ctx, pending.ID, reason); err != nil {
		return err
	}
	a.logger.Info("pending payment declined",
		zap.String("reference", pending.OrderReference),
		zap.String("gateway", pending.Gateway),
		zap.String("gateway_status", reason),
	)
	return nil
}
