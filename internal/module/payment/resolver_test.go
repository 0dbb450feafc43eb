package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veralix/server/internal/module/payment/provider"
	"go.uber.org/zap"
)

func TestResolver_Resolve_MatchesPending(t *testing.T) {
	repo := newFakeRepository()
	resolver := NewResolver(repo, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreatePendingPayment(ctx, &PendingPayment{
		OrderReference: "VRX-1-AAAAAA",
		Gateway:        "wompi",
		Amount:         50000,
		Currency:       "COP",
	}))

	res, err := resolver.Resolve(ctx, &provider.Event{
		EventID:       "txn-1",
		Outcome:       provider.OutcomeApproved,
		Reference:     "VRX-1-AAAAAA",
		TransactionID: "txn-1",
		Amount:        50000,
		Currency:      "COP",
	})
	require.NoError(t, err)

	assert.Equal(t, provider.OutcomeApproved, res.Outcome)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "VRX-1-AAAAAA", res.Pending.OrderReference)
}

func TestResolver_Resolve_DetectsRedelivery(t *testing.T) {
	repo := newFakeRepository()
	resolver := NewResolver(repo, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateSettledPurchase(ctx, &SettledPurchase{
		OrderReference: "VRX-2-BBBBBB",
		TransactionID:  "txn-2",
	}))

	res, err := resolver.Resolve(ctx, &provider.Event{
		EventID:       "txn-2",
		Outcome:       provider.OutcomeApproved,
		Reference:     "VRX-2-BBBBBB",
		TransactionID: "txn-2",
	})
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Nil(t, res.Pending)
}

func TestResolver_Resolve_UnknownReference(t *testing.T) {
	repo := newFakeRepository()
	resolver := NewResolver(repo, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), &provider.Event{
		EventID:   "txn-3",
		Reference: "VRX-3-CCCCCC",
	})
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestResolver_Resolve_EmptyReference(t *testing.T) {
	repo := newFakeRepository()
	resolver := NewResolver(repo, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), &provider.Event{EventID: "txn-4"})
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestResolver_Resolve_AmountMismatchIsNotFatal(t *testing.T) {
	repo := newFakeRepository()
	resolver := NewResolver(repo, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreatePendingPayment(ctx, &PendingPayment{
		OrderReference: "VRX-5-EEEEEE",
		Amount:         50000,
		Currency:       "COP",
	}))

	// The gateway remains authoritative for the settled amount; drift
	// is surfaced in logs, not as an error.
	res, err := resolver.Resolve(ctx, &provider.Event{
		EventID:   "txn-5",
		Outcome:   provider.OutcomeApproved,
		Reference: "VRX-5-EEEEEE",
		Amount:    49000,
		Currency:  "USD",
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Pending)
}
