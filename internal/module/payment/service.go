package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veralix/server/internal/module/payment/provider"
	"github.com/veralix/server/internal/shared/config"
	"github.com/veralix/server/internal/utils/metrics"
	"github.com/veralix/server/internal/utils/random"
	"go.uber.org/zap"
)

// Service implements payment operations.
type Service struct {
	repo     Repository
	registry *GatewayRegistry
	resolver *Resolver
	applier  *Applier
	cfg      *config.PaymentsConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new payment service.
func NewService(
	repo Repository,
	registry *GatewayRegistry,
	resolver *Resolver,
	applier *Applier,
	cfg *config.PaymentsConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		resolver: resolver,
		applier:  applier,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// NewOrderReference generates a unique order reference.
// Format: VRX-<unix millis>-<6 uppercase alphanumerics>.
func NewOrderReference() string {
	return fmt.Sprintf("VRX-%d-%s", time.Now().UnixMilli(), random.UpperAlphaNum(6))
}

// CreatePaymentLink creates a payment link on the requested gateway and
// records the pending payment under a fresh order reference.
func (s *Service) CreatePaymentLink(ctx context.Context, req *CreatePaymentLinkRequest) (*PaymentLinkResponse, error) {
	gateway, err := s.registry.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "COP"
	}

	reference := NewOrderReference()
	expiresAt := time.Now().Add(s.cfg.LinkExpiry)

	redirectURL := req.RedirectURL
	if redirectURL == "" {
		redirectURL = s.cfg.RedirectBaseURL
	}

	link, err := gateway.CreateLink(ctx, &provider.LinkRequest{
		Reference:     reference,
		Amount:        req.Amount,
		Currency:      currency,
		Description:   req.Description,
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: req.PaymentMethod,
		RedirectURL:   redirectURL,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		s.metrics.RecordPaymentLink(req.Gateway, "failed")
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	pending := &PendingPayment{
		OrderReference: reference,
		UserID:         req.UserID,
		Gateway:        gateway.Name(),
		LinkID:         link.LinkID,
		PaymentURL:     link.URL,
		Amount:         req.Amount,
		Currency:       currency,
		Description:    req.Description,
		CustomerEmail:  req.CustomerEmail,
		Status:         PendingStatusPending,
		Metadata:       req.Metadata,
		ExpiresAt:      expiresAt,
	}
	if req.PaymentMethod != "" {
		pending.PaymentMethods = []string{req.PaymentMethod}
	}

	if err := s.repo.CreatePendingPayment(ctx, pending); err != nil {
		// The gateway link exists but we lost its local record; the
		// webhook for it would land as an unknown reference.
		s.metrics.RecordPaymentLink(req.Gateway, "failed")
		return nil, fmt.Errorf("record pending payment: %w", err)
	}

	s.metrics.RecordPaymentLink(req.Gateway, "created")
	s.logger.Info("payment link created",
		zap.String("reference", reference),
		zap.String("gateway", gateway.Name()),
		zap.String("link_id", link.LinkID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", currency),
	)

	return &PaymentLinkResponse{
		Reference:  reference,
		Gateway:    gateway.Name(),
		PaymentURL: link.URL,
		LinkID:     link.LinkID,
		Amount:     req.Amount,
		Currency:   currency,
		ExpiresAt:  expiresAt,
	}, nil
}

// ProcessWebhook handles a webhook delivery end to end: persist the raw
// payload, verify the signature, then resolve and apply each event.
//
// Hard failures are ErrInvalidSignature and a failed audit write; the
// latter has to surface as a non-200 so the gateway redelivers the
// event once a record of it can be kept. Every other per-event problem
// is recorded and swallowed so the gateway receives 200 and stops
// redelivering.
func (s *Service) ProcessWebhook(ctx context.Context, gatewayName string, payload []byte, signature string) (*WebhookResult, error) {
	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	// Log first: the raw delivery is persisted before any verification
	// or processing can fail.
	webhookLog := &WebhookLog{
		Gateway: gatewayName,
		Payload: string(payload),
	}
	if err := s.repo.CreateWebhookLog(ctx, webhookLog); err != nil {
		// No durable record of the delivery exists; the gateway has to
		// redeliver.
		s.logger.Error("failed to persist webhook log",
			zap.String("gateway", gatewayName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persist webhook log: %w", err)
	}

	if err := gateway.VerifySignature(payload, signature); err != nil {
		s.metrics.RecordSignatureFailure(gatewayName)
		s.markLogProcessed(ctx, webhookLog, ErrInvalidSignature)
		s.logger.Warn("webhook signature verification failed",
			zap.String("gateway", gatewayName),
			zap.Error(err),
		)
		return nil, ErrInvalidSignature
	}
	webhookLog.SignatureValid = true
	if webhookLog.ID != uuid.Nil {
		if err := s.repo.UpdateWebhookLogSignature(ctx, webhookLog.ID, true); err != nil {
			s.logger.Error("failed to update webhook log", zap.Error(err))
		}
	}

	events, err := gateway.ParseEvents(payload)
	if err != nil {
		s.metrics.RecordWebhookEvent(gatewayName, "error")
		s.markLogProcessed(ctx, webhookLog, err)
		s.logger.Warn("webhook payload could not be parsed",
			zap.String("gateway", gatewayName),
			zap.Error(err),
		)
		return &WebhookResult{}, nil
	}

	result := &WebhookResult{Events: make([]WebhookEventResult, 0, len(events))}
	for i, event := range events {
		logRow := s.recordEventLog(ctx, webhookLog, i, event)
		outcome := s.processEvent(ctx, gatewayName, event)
		result.Events = append(result.Events, WebhookEventResult{
			Reference: event.Reference,
			Outcome:   outcome,
		})
		var procErr error
		if outcome == "error" {
			procErr = fmt.Errorf("event %s failed", event.EventID)
		}
		s.markLogProcessed(ctx, logRow, procErr)
	}
	if len(events) == 0 {
		s.markLogProcessed(ctx, webhookLog, nil)
	}
	return result, nil
}

// recordEventLog ties events to audit rows. The first event annotates
// the delivery row written up front; later events of a batch get their
// own rows sharing the raw payload, so every event has a forensic
// record with its own processed flag.
func (s *Service) recordEventLog(ctx context.Context, deliveryLog *WebhookLog, idx int, event *provider.Event) *WebhookLog {
	if idx == 0 {
		deliveryLog.EventID = event.EventID
		deliveryLog.EventType = event.Type
		deliveryLog.Reference = event.Reference
		deliveryLog.Amount = event.Amount
		deliveryLog.Currency = event.Currency
		if deliveryLog.ID != uuid.Nil {
			if err := s.repo.SetWebhookLogEvent(ctx, deliveryLog.ID, event); err != nil {
				s.logger.Error("failed to annotate webhook log", zap.Error(err))
			}
		}
		return deliveryLog
	}

	row := &WebhookLog{
		Gateway:        deliveryLog.Gateway,
		EventID:        event.EventID,
		EventType:      event.Type,
		Reference:      event.Reference,
		Amount:         event.Amount,
		Currency:       event.Currency,
		Payload:        deliveryLog.Payload,
		SignatureValid: deliveryLog.SignatureValid,
	}
	if err := s.repo.CreateWebhookLog(ctx, row); err != nil {
		s.logger.Error("failed to persist webhook log", zap.Error(err))
	}
	return row
}

// processEvent resolves and applies a single event, returning the
// outcome label recorded in metrics and the webhook response.
func (s *Service) processEvent(ctx context.Context, gatewayName string, event *provider.Event) string {
	resolution, err := s.resolver.Resolve(ctx, event)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			s.metrics.RecordWebhookEvent(gatewayName, "unknown_reference")
			s.logger.Warn("webhook event for unknown reference",
				zap.String("gateway", gatewayName),
				zap.String("reference", event.Reference),
				zap.String("event_id", event.EventID),
			)
			return "unknown_reference"
		}
		s.metrics.RecordWebhookEvent(gatewayName, "error")
		s.logger.Error("failed to resolve webhook event",
			zap.String("gateway", gatewayName),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
		return "error"
	}

	if resolution.Duplicate {
		s.metrics.RecordWebhookEvent(gatewayName, "duplicate")
		s.logger.Info("webhook redelivery for settled purchase",
			zap.String("gateway", gatewayName),
			zap.String("reference", event.Reference),
		)
		return "duplicate"
	}

	switch resolution.Outcome {
	case provider.OutcomeApproved:
		if _, err := s.applier.Apply(ctx, resolution.Pending, event); err != nil {
			if errors.Is(err, ErrAlreadySettled) {
				s.metrics.RecordWebhookEvent(gatewayName, "duplicate")
				return "duplicate"
			}
			s.metrics.RecordWebhookEvent(gatewayName, "error")
			s.logger.Error("settlement failed",
				zap.String("gateway", gatewayName),
				zap.String("reference", event.Reference),
				zap.Error(err),
			)
			return "error"
		}
		s.metrics.RecordWebhookEvent(gatewayName, "settled")
		return "settled"

	case provider.OutcomeDeclined:
		if err := s.applier.RetireDeclined(ctx, resolution.Pending, event); err != nil {
			s.metrics.RecordWebhookEvent(gatewayName, "error")
			s.logger.Error("failed to retire declined payment",
				zap.String("reference", event.Reference),
				zap.Error(err),
			)
			return "error"
		}
		s.metrics.RecordWebhookEvent(gatewayName, "declined")
		return "declined"

	case provider.OutcomePending:
		s.metrics.RecordWebhookEvent(gatewayName, "pending")
		return "pending"

	default:
		s.metrics.RecordWebhookEvent(gatewayName, "unknown")
		s.logger.Info("webhook event with unrecognized type",
			zap.String("gateway", gatewayName),
			zap.String("type", event.Type),
			zap.String("reference", event.Reference),
		)
		return "unknown"
	}
}

// VerifyPayment reports the current state of a payment by reference.
// Settled purchases answer from the local ledger; pending payments are
// verified live against their gateway.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*PaymentStatusResponse, error) {
	if sp, err := s.repo.GetSettledPurchaseByReference(ctx, reference); err == nil {
		settledAt := sp.SettledAt
		return &PaymentStatusResponse{
			Reference:     sp.OrderReference,
			Gateway:       sp.Gateway,
			Status:        VerifyStatusSettled,
			Amount:        sp.Amount,
			Currency:      sp.Currency,
			TransactionID: sp.TransactionID,
			PaymentMethod: sp.PaymentMethod,
			SettledAt:     &settledAt,
		}, nil
	} else if !errors.Is(err, ErrSettledPurchaseNotFound) {
		return nil, err
	}

	pending, err := s.repo.GetPendingPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	resp := &PaymentStatusResponse{
		Reference: pending.OrderReference,
		Gateway:   pending.Gateway,
		Status:    VerifyStatusPending,
		Amount:    pending.Amount,
		Currency:  pending.Currency,
	}
	if pending.Status == PendingStatusDeclined {
		resp.Status = VerifyStatusDeclined
		return resp, nil
	}

	// A live gateway check may observe an approval whose webhook has
	// not arrived yet; settle it on the spot.
	gateway, err := s.registry.Get(pending.Gateway)
	if err != nil {
		return resp, nil
	}
	link, err := gateway.GetLink(ctx, pending.LinkID)
	if err != nil {
		s.logger.Warn("live payment verification failed",
			zap.String("reference", reference),
			zap.String("gateway", pending.Gateway),
			zap.Error(err),
		)
		return resp, nil
	}

	switch link.Outcome {
	case provider.OutcomeApproved:
		event := s.linkEvent(pending, link)
		if _, err := s.applier.Apply(ctx, pending, event); err != nil && !errors.Is(err, ErrAlreadySettled) {
			s.logger.Error("settlement from verification failed",
				zap.String("reference", reference),
				zap.Error(err),
			)
			return resp, nil
		}
		now := time.Now().UTC()
		resp.Status = VerifyStatusSettled
		resp.TransactionID = event.TransactionID
		resp.SettledAt = &now
	case provider.OutcomeDeclined:
		if err := s.applier.RetireDeclined(ctx, pending, s.linkEvent(pending, link)); err != nil {
			s.logger.Error("failed to retire declined payment",
				zap.String("reference", reference),
				zap.Error(err),
			)
		}
		resp.Status = VerifyStatusDeclined
	}
	return resp, nil
}

// BoldIntegrityHash computes the checkout integrity hash for an
// embedded Bold checkout.
func (s *Service) BoldIntegrityHash(orderID string, amount int64, currency string) (string, error) {
	gateway, err := s.registry.Get("bold")
	if err != nil {
		return "", err
	}
	bold, ok := gateway.(*provider.BoldGateway)
	if !ok {
		return "", ErrGatewayNotFound
	}
	if currency == "" {
		currency = "COP"
	}
	return bold.IntegrityHash(orderID, amount, currency), nil
}

// Reconcile sweeps stale pending payments: payments whose webhook never
// arrived are verified live against their gateway, and abandoned or
// declined rows past the retention window are deleted.
func (s *Service) Reconcile(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.ReconcileAfter)
	stale, err := s.repo.ListStalePendingPayments(ctx, cutoff, 100)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	retention := time.Now().Add(-s.cfg.PendingRetention)

	// Declined rows are kept for the retention window as an audit
	// trail, then removed here; the stale listing below only sees
	// status=pending and would skip them.
	if removed, err := s.repo.DeleteDeclinedPendingPayments(ctx, retention); err != nil {
		s.logger.Error("failed to delete declined pending payments", zap.Error(err))
	} else if removed > 0 {
		s.logger.Info("declined pending payments removed past retention",
			zap.Int64("count", removed),
		)
	}

	for _, pending := range stale {
		if pending.CreatedAt.Before(retention) {
			if err := s.repo.DeletePendingPayment(ctx, pending.ID); err != nil {
				s.logger.Error("failed to delete abandoned pending payment",
					zap.String("reference", pending.OrderReference),
					zap.Error(err),
				)
			} else {
				s.logger.Info("abandoned pending payment removed",
					zap.String("reference", pending.OrderReference),
					zap.String("gateway", pending.Gateway),
				)
			}
			continue
		}

		s.reconcileOne(ctx, pending)
	}
	return nil
}

func (s *Service) reconcileOne(ctx context.Context, pending *PendingPayment) {
	gateway, err := s.registry.Get(pending.Gateway)
	if err != nil {
		s.logger.Error("pending payment references unknown gateway",
			zap.String("reference", pending.OrderReference),
			zap.String("gateway", pending.Gateway),
		)
		return
	}

	link, err := gateway.GetLink(ctx, pending.LinkID)
	if err != nil {
		s.logger.Warn("reconcile verification failed",
			zap.String("reference", pending.OrderReference),
			zap.String("gateway", pending.Gateway),
			zap.Error(err),
		)
		return
	}

	switch link.Outcome {
	case provider.OutcomeApproved:
		if _, err := s.applier.Apply(ctx, pending, s.linkEvent(pending, link)); err != nil && !errors.Is(err, ErrAlreadySettled) {
			s.logger.Error("reconcile settlement failed",
				zap.String("reference", pending.OrderReference),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("payment settled by reconciler",
			zap.String("reference", pending.OrderReference),
			zap.String("gateway", pending.Gateway),
		)
	case provider.OutcomeDeclined:
		if err := s.applier.RetireDeclined(ctx, pending, s.linkEvent(pending, link)); err != nil {
			s.logger.Error("reconcile retire failed",
				zap.String("reference", pending.OrderReference),
				zap.Error(err),
			)
		}
	}
}

// linkEvent synthesizes an event from a live link status, used when
// settlement happens without a webhook.
func (s *Service) linkEvent(pending *PendingPayment, link *provider.PaymentLink) *provider.Event {
	return &provider.Event{
		EventID:       link.LinkID,
		Type:          link.RawStatus,
		Outcome:       link.Outcome,
		Reference:     pending.OrderReference,
		TransactionID: link.LinkID,
		Amount:        pending.Amount,
		Currency:      pending.Currency,
	}
}

// markLogProcessed records the processing outcome on the webhook log row.
func (s *Service) markLogProcessed(ctx context.Context, log *WebhookLog, processErr error) {
	if log.ID == uuid.Nil {
		return
	}
	if err := s.repo.MarkWebhookLogProcessed(ctx, log.ID, processErr); err != nil {
		s.logger.Error("failed to mark webhook log processed", zap.Error(err))
	}
}
