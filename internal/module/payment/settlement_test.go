package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veralix/server/internal/module/payment/provider"
	"go.uber.org/zap"
)

func newTestApplier(repo *fakeRepository, notifier *fakeNotifier) *Applier {
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	return NewApplier(repo, n, nil, zap.NewNop())
}

func pendingFixture(reference string) *PendingPayment {
	return &PendingPayment{
		OrderReference: reference,
		Gateway:        "wompi",
		LinkID:         "link-1",
		Amount:         50000,
		Currency:       "COP",
		Description:    "Premium plan",
		CustomerEmail:  "buyer@example.com",
		Status:         PendingStatusPending,
	}
}

func TestApplier_Apply(t *testing.T) {
	repo := newFakeRepository()
	notifier := &fakeNotifier{}
	applier := newTestApplier(repo, notifier)
	ctx := context.Background()

	pending := pendingFixture("VRX-10-AAAAAA")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	purchase, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-10",
		Outcome:       provider.OutcomeApproved,
		Reference:     "VRX-10-AAAAAA",
		TransactionID: "txn-10",
		Amount:        50000,
		Currency:      "COP",
		PaymentMethod: "NEQUI",
	})
	require.NoError(t, err)

	// Settled record carries the order and gateway details.
	assert.Equal(t, "VRX-10-AAAAAA", purchase.OrderReference)
	assert.Equal(t, "txn-10", purchase.TransactionID)
	assert.Equal(t, "wompi", purchase.Gateway)
	assert.Equal(t, int64(50000), purchase.Amount)
	assert.Equal(t, "NEQUI", purchase.PaymentMethod)
	assert.Equal(t, "buyer@example.com", purchase.CustomerEmail)
	assert.False(t, purchase.SettledAt.IsZero())

	// Pending row is gone, settled row exists.
	_, err = repo.GetPendingPaymentByReference(ctx, "VRX-10-AAAAAA")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
	_, err = repo.GetSettledPurchaseByReference(ctx, "VRX-10-AAAAAA")
	assert.NoError(t, err)

	// Confirmation was sent.
	require.Len(t, notifier.purchases, 1)
	assert.Equal(t, "VRX-10-AAAAAA", notifier.purchases[0].OrderReference)
}

func TestApplier_Apply_Redelivery(t *testing.T) {
	repo := newFakeRepository()
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-11-BBBBBB")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	event := &provider.Event{
		EventID:       "txn-11",
		Outcome:       provider.OutcomeApproved,
		Reference:     "VRX-11-BBBBBB",
		TransactionID: "txn-11",
	}

	_, err := applier.Apply(ctx, pending, event)
	require.NoError(t, err)

	// Re-insert the pending row to simulate a crash after settlement
	// insert but before delete, then apply the same event again.
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))
	_, err = applier.Apply(ctx, pending, event)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	// The original settlement is untouched.
	sp, err := repo.GetSettledPurchaseByReference(ctx, "VRX-11-BBBBBB")
	require.NoError(t, err)
	assert.Equal(t, "txn-11", sp.TransactionID)
}

func TestApplier_Apply_DeleteFailureDoesNotLoseSettlement(t *testing.T) {
	repo := newFakeRepository()
	repo.deleteErr = errors.New("connection reset")
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-12-CCCCCC")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	// Insert-before-delete: the settlement must succeed even when the
	// pending row cannot be removed.
	purchase, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-12",
		Outcome:       provider.OutcomeApproved,
		Reference:     "VRX-12-CCCCCC",
		TransactionID: "txn-12",
	})
	require.NoError(t, err)
	assert.NotNil(t, purchase)

	_, err = repo.GetSettledPurchaseByReference(ctx, "VRX-12-CCCCCC")
	assert.NoError(t, err)
	// Stale pending row remains for the reconciler.
	_, err = repo.GetPendingPaymentByReference(ctx, "VRX-12-CCCCCC")
	assert.NoError(t, err)
}

func TestApplier_Apply_InsertFailureLeavesPending(t *testing.T) {
	repo := newFakeRepository()
	repo.settleErr = errors.New("disk full")
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-13-DDDDDD")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	_, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-13",
		TransactionID: "txn-13",
		Reference:     "VRX-13-DDDDDD",
	})
	require.Error(t, err)

	// Nothing was deleted: the payment can settle on redelivery.
	_, err = repo.GetPendingPaymentByReference(ctx, "VRX-13-DDDDDD")
	assert.NoError(t, err)
}

func TestApplier_Apply_EventAmountWins(t *testing.T) {
	repo := newFakeRepository()
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-14-EEEEEE")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	purchase, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-14",
		TransactionID: "txn-14",
		Reference:     "VRX-14-EEEEEE",
		Amount:        49000,
		Currency:      "COP",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(49000), purchase.Amount)
}

func TestApplier_Apply_FallsBackToPendingAmount(t *testing.T) {
	repo := newFakeRepository()
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-15-FFFFFF")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	purchase, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-15",
		TransactionID: "txn-15",
		Reference:     "VRX-15-FFFFFF",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), purchase.Amount)
	assert.Equal(t, "COP", purchase.Currency)
}

func TestApplier_Apply_NotifierFailureDoesNotFailSettlement(t *testing.T) {
	repo := newFakeRepository()
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	applier := newTestApplier(repo, notifier)
	ctx := context.Background()

	pending := pendingFixture("VRX-16-GGGGGG")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	_, err := applier.Apply(ctx, pending, &provider.Event{
		EventID:       "txn-16",
		TransactionID: "txn-16",
		Reference:     "VRX-16-GGGGGG",
	})
	assert.NoError(t, err)
}

func TestApplier_RetireDeclined(t *testing.T) {
	repo := newFakeRepository()
	applier := newTestApplier(repo, nil)
	ctx := context.Background()

	pending := pendingFixture("VRX-17-HHHHHH")
	require.NoError(t, repo.CreatePendingPayment(ctx, pending))

	err := applier.RetireDeclined(ctx, pending, &provider.Event{Type: "DECLINED"})
	require.NoError(t, err)

	p, err := repo.GetPendingPaymentByReference(ctx, "VRX-17-HHHHHH")
	require.NoError(t, err)
	assert.Equal(t, PendingStatusDeclined, p.Status)
}
