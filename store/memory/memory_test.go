package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/payments"
	"github.com/storefront/ledger-core/store/memory"
)

var when = time.Date(2026, time.August, 15, 12, 30, 0, 0, time.UTC)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPaymentStore_WithTx_SnapshotRollback(t *testing.T) {
	store := memory.NewPaymentStore()
	ctx := context.Background()

	require.NoError(t, store.SavePayable(ctx, payments.Payable{
		ID: "so-1", Kind: payments.KindSalesOrder,
		TotalAmount: money("500"), Status: payments.StatusPending, CreatedAt: when,
	}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s payments.Store) error {
		if err := s.InsertPayment(ctx, payments.Payment{
			ID: "p-1", Number: "PAY-1",
			Ref:    payments.PayableRef{Kind: payments.KindSalesOrder, ID: "so-1"},
			Amount: money("100"), Direction: payments.DirectionReceived,
			Date: when, CreatedAt: when,
		}); err != nil {
			return err
		}
		if err := s.UpdatePayableStatus(ctx, payments.PayableRef{Kind: payments.KindSalesOrder, ID: "so-1"}, payments.StatusPartial); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every write inside the failed transaction is undone
	p, err := store.GetPayment(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, p)

	pb, err := store.GetPayable(ctx, payments.PayableRef{Kind: payments.KindSalesOrder, ID: "so-1"})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPending, pb.Status)
}

func TestPaymentStore_SumExcludesByID(t *testing.T) {
	store := memory.NewPaymentStore()
	ctx := context.Background()
	ref := payments.PayableRef{Kind: payments.KindPurchaseInvoice, ID: "inv-1"}

	for i, amount := range []string{"100", "250"} {
		require.NoError(t, store.InsertPayment(ctx, payments.Payment{
			ID: string(rune('a' + i)), Number: "PAY-" + string(rune('A'+i)),
			Ref: ref, Amount: money(amount), Direction: payments.DirectionPaid,
			Date: when, CreatedAt: when,
		}))
	}

	sum, err := store.SumPayments(ctx, ref, "")
	require.NoError(t, err)
	assert.True(t, sum.Equal(money("350")))

	sum, err = store.SumPayments(ctx, ref, "a")
	require.NoError(t, err)
	assert.True(t, sum.Equal(money("250")))
}

func TestCoinStore_WithTx_SnapshotRollback(t *testing.T) {
	store := memory.NewCoinStore()
	ctx := context.Background()

	require.NoError(t, store.SaveWallet(ctx, coins.Wallet{
		UserID: "user-1", TotalCoinsEarned: 50, AvailableCoins: 50, LastUpdated: when,
	}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s coins.Store) error {
		if err := s.AppendTransaction(ctx, coins.CoinTransaction{
			ID: "t1", UserID: "user-1", Type: coins.TxRedeemed, CoinsAmount: 20, CreatedAt: when,
		}); err != nil {
			return err
		}
		if err := s.SaveWallet(ctx, coins.Wallet{
			UserID: "user-1", TotalCoinsEarned: 50, TotalCoinsUsed: 20,
			AvailableCoins: 30, LastUpdated: when,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	txs, err := store.TransactionsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, txs)

	w, err := store.GetWallet(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.EqualValues(t, 50, w.AvailableCoins)
}

func TestCoinStore_ListTransactions_CursorPaging(t *testing.T) {
	store := memory.NewCoinStore()
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.AppendTransaction(ctx, coins.CoinTransaction{
			ID: id, UserID: "user-1", Type: coins.TxEarned, CoinsAmount: 5, CreatedAt: when,
		}))
	}

	page, err := store.ListTransactions(ctx, "user-1", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t3", page[0].ID)
	assert.Equal(t, "t2", page[1].ID)

	page, err = store.ListTransactions(ctx, "user-1", 2, "t2")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "t1", page[0].ID)
}
