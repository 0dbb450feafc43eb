package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veralix/server/internal/module/payment/provider"
)

// fakeRepository is an in-memory Repository for tests.
type fakeRepository struct {
	mu      sync.Mutex
	pending map[string]*PendingPayment // keyed by order reference
	settled map[string]*SettledPurchase
	logs    []*WebhookLog

	settleErr error // injected CreateSettledPurchase failure
	deleteErr error // injected DeletePendingPayment failure
	logErr    error // injected CreateWebhookLog failure
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		pending: make(map[string]*PendingPayment),
		settled: make(map[string]*SettledPurchase),
	}
}

func (r *fakeRepository) CreatePendingPayment(ctx context.Context, p *PendingPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.pending[p.OrderReference] = p
	return nil
}

func (r *fakeRepository) GetPendingPaymentByReference(ctx context.Context, reference string) (*PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[reference]
	if !ok {
		return nil, ErrPendingPaymentNotFound
	}
	return p, nil
}

func (r *fakeRepository) MarkPendingPaymentDeclined(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p.ID == id {
			p.Status = PendingStatusDeclined
			return nil
		}
	}
	return ErrPendingPaymentNotFound
}

func (r *fakeRepository) DeletePendingPayment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for ref, p := range r.pending {
		if p.ID == id {
			delete(r.pending, ref)
			return nil
		}
	}
	return nil
}

func (r *fakeRepository) DeleteDeclinedPendingPayments(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for ref, p := range r.pending {
		if p.Status == PendingStatusDeclined && p.CreatedAt.Before(olderThan) {
			delete(r.pending, ref)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeRepository) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*PendingPayment
	for _, p := range r.pending {
		if p.Status == PendingStatusPending && p.CreatedAt.Before(olderThan) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepository) CreateWebhookLog(ctx context.Context, log *WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logErr != nil {
		return r.logErr
	}
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeRepository) UpdateWebhookLogSignature(ctx context.Context, id uuid.UUID, valid bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			l.SignatureValid = valid
			return nil
		}
	}
	return nil
}

func (r *fakeRepository) SetWebhookLogEvent(ctx context.Context, id uuid.UUID, event *provider.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			l.EventID = event.EventID
			l.EventType = event.Type
			l.Reference = event.Reference
			l.Amount = event.Amount
			l.Currency = event.Currency
			return nil
		}
	}
	return nil
}

func (r *fakeRepository) MarkWebhookLogProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			now := time.Now()
			l.Processed = true
			l.ProcessedAt = &now
			if processErr != nil {
				msg := processErr.Error()
				l.Error = &msg
			}
			return nil
		}
	}
	return nil
}

func (r *fakeRepository) CreateSettledPurchase(ctx context.Context, sp *SettledPurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settleErr != nil {
		return r.settleErr
	}
	if _, ok := r.settled[sp.OrderReference]; ok {
		return ErrAlreadySettled
	}
	for _, existing := range r.settled {
		if existing.TransactionID == sp.TransactionID {
			return ErrAlreadySettled
		}
	}
	sp.ID = uuid.New()
	sp.CreatedAt = time.Now()
	r.settled[sp.OrderReference] = sp
	return nil
}

func (r *fakeRepository) GetSettledPurchaseByReference(ctx context.Context, reference string) (*SettledPurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.settled[reference]
	if !ok {
		return nil, ErrSettledPurchaseNotFound
	}
	return sp, nil
}

func (r *fakeRepository) GetSettledPurchaseByTransactionID(ctx context.Context, transactionID string) (*SettledPurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sp := range r.settled {
		if sp.TransactionID == transactionID {
			return sp, nil
		}
	}
	return nil, ErrSettledPurchaseNotFound
}

// fakeGateway is a scripted provider.Gateway for tests.
type fakeGateway struct {
	name string

	createLink  *provider.PaymentLink
	createErr   error
	lastLinkReq *provider.LinkRequest

	link    *provider.PaymentLink
	linkErr error

	verifyErr error
	events    []*provider.Event
	parseErr  error
}

func (g *fakeGateway) Name() string {
	if g.name == "" {
		return "fake"
	}
	return g.name
}

func (g *fakeGateway) CreateLink(ctx context.Context, req *provider.LinkRequest) (*provider.PaymentLink, error) {
	g.lastLinkReq = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.createLink != nil {
		return g.createLink, nil
	}
	return &provider.PaymentLink{
		LinkID:  "link-" + req.Reference,
		URL:     "https://pay.example.com/" + req.Reference,
		Outcome: provider.OutcomePending,
	}, nil
}

func (g *fakeGateway) GetLink(ctx context.Context, linkID string) (*provider.PaymentLink, error) {
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	if g.link != nil {
		return g.link, nil
	}
	return &provider.PaymentLink{LinkID: linkID, Outcome: provider.OutcomePending}, nil
}

func (g *fakeGateway) SignatureHeader() string {
	return "X-Test-Signature"
}

func (g *fakeGateway) VerifySignature(payload []byte, signature string) error {
	return g.verifyErr
}

func (g *fakeGateway) ParseEvents(payload []byte) ([]*provider.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.events, nil
}

// fakeNotifier records confirmation calls.
type fakeNotifier struct {
	mu        sync.Mutex
	purchases []*SettledPurchase
	err       error
}

func (n *fakeNotifier) PurchaseConfirmation(ctx context.Context, purchase *SettledPurchase) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchases = append(n.purchases, purchase)
	return n.err
}
