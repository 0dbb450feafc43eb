package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/veralix/server/internal/module/payment/provider"
	"go.uber.org/zap"
)

// Resolution is a normalized gateway event correlated with local state.
type Resolution struct {
	Outcome provider.Outcome
	Event   *provider.Event

	// Pending is the matched pending payment. Nil when the event was
	// already settled (Duplicate is then true).
	Pending   *PendingPayment
	Duplicate bool
}

// Resolver correlates gateway events with pending payments by order
// reference and detects redeliveries against the settled ledger.
type Resolver struct {
	repo   Repository
	logger *zap.Logger
}

// NewResolver creates a new payment state resolver.
func NewResolver(repo Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve matches an event to local payment state.
// Returns ErrUnknownReference when the reference matches neither a
// pending payment nor a settled purchase.
func (r *Resolver) Resolve(ctx context.Context, event *provider.Event) (*Resolution, error) {
	if event.Reference == "" {
		return nil, fmt.Errorf("%w: event %s carries no reference", ErrUnknownReference, event.EventID)
	}

	pending, err := r.repo.GetPendingPaymentByReference(ctx, event.Reference)
	if err == nil {
		r.checkConsistency(pending, event)
		return &Resolution{
			Outcome: event.Outcome,
			Event:   event,
			Pending: pending,
		}, nil
	}
	if !errors.Is(err, ErrPendingPaymentNotFound) {
		return nil, err
	}

	// No pending row: a settled purchase under the same reference means
	// this is a redelivery of an already applied payment.
	if _, err := r.repo.GetSettledPurchaseByReference(ctx, event.Reference); err == nil {
		return &Resolution{
			Outcome:   event.Outcome,
			Event:     event,
			Duplicate: true,
		}, nil
	} else if !errors.Is(err, ErrSettledPurchaseNotFound) {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownReference, event.Reference)
}

// checkConsistency flags amount or currency drift between the gateway
// event and the pending payment. Drift is logged, not fatal: the
// gateway is authoritative for the settled amount.
func (r *Resolver) checkConsistency(pending *PendingPayment, event *provider.Event) {
	if event.Amount > 0 && event.Amount != pending.Amount {
		r.logger.Warn("gateway amount differs from pending payment",
			zap.String("reference", pending.OrderReference),
			zap.Int64("pending_amount", pending.Amount),
			zap.Int64("event_amount", event.Amount),
		)
	}
	if event.Currency != "" && event.Currency != pending.Currency {
		r.logger.Warn("gateway currency differs from pending payment",
			zap.String("reference", pending.OrderReference),
			zap.String("pending_currency", pending.Currency),
			zap.String("event_currency", event.Currency),
		)
	}
}
