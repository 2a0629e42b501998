package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/ledger-core/api"
	"github.com/storefront/ledger-core/coins"
	"github.com/storefront/ledger-core/payments"
	"github.com/storefront/ledger-core/store/memory"
)

func TestSweeper_RepairsDriftedProjections(t *testing.T) {
	ctx := context.Background()

	paymentStore := memory.NewPaymentStore()
	coinStore := memory.NewCoinStore()

	engine := payments.NewEngine(paymentStore)
	engine.Now = func() time.Time { return testNow }
	coinLedger := coins.NewLedger(coinStore, coins.Settings{
		Enabled:           true,
		CoinsPerUnit:      decimal.NewFromInt(1),
		GlobalMultiplier:  decimal.NewFromInt(1),
		FestiveMultiplier: decimal.NewFromInt(1),
		MinRedeemCoins:    1,
	})
	coinLedger.Now = func() time.Time { return testNow }

	// GIVEN: a paid payable and a credited wallet
	ref := payments.PayableRef{Kind: payments.KindSalesOrder, ID: "so-1"}
	require.NoError(t, paymentStore.SavePayable(ctx, payments.Payable{
		ID: "so-1", Kind: payments.KindSalesOrder,
		TotalAmount: decimal.NewFromInt(100), Status: payments.StatusPending,
		CreatedAt: testNow,
	}))
	_, err := engine.RecordPayment(ctx, payments.RecordPaymentInput{
		Ref: ref, Amount: decimal.NewFromInt(100),
		Direction: payments.DirectionReceived, Date: testNow,
	})
	require.NoError(t, err)

	_, err = coinLedger.RecordEarn(ctx, "user-1", decimal.NewFromInt(50), "")
	require.NoError(t, err)

	// AND: both cached projections are corrupted behind the engines' backs
	require.NoError(t, paymentStore.UpdatePayableStatus(ctx, ref, payments.StatusPending))
	require.NoError(t, coinStore.SaveWallet(ctx, coins.Wallet{
		UserID: "user-1", TotalCoinsEarned: 999, AvailableCoins: 999, LastUpdated: testNow,
	}))

	// WHEN: a sweep runs
	sweeper := api.NewReconciliationSweeper(api.NewHandler(engine, coinLedger))
	sweeper.RunNow()

	// THEN: both are re-derived from their authoritative histories
	payable, err := paymentStore.GetPayable(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPaid, payable.Status)

	wallet, err := coinStore.GetWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 50, wallet.TotalCoinsEarned)
	assert.EqualValues(t, 50, wallet.AvailableCoins)
}

func TestSweeper_StartStop(t *testing.T) {
	engine := payments.NewEngine(memory.NewPaymentStore())
	coinLedger := coins.NewLedger(memory.NewCoinStore(), coins.Settings{
		Enabled:           false,
		CoinsPerUnit:      decimal.NewFromInt(1),
		GlobalMultiplier:  decimal.NewFromInt(1),
		FestiveMultiplier: decimal.NewFromInt(1),
		MinRedeemCoins:    1,
	})

	sweeper := api.NewReconciliationSweeper(api.NewHandler(engine, coinLedger))
	sweeper.Interval = 50 * time.Millisecond
	sweeper.Start()
	time.Sleep(10 * time.Millisecond)
	sweeper.Stop()

	// A disabled sweeper's Stop is a no-op
	disabled := api.NewReconciliationSweeper(api.NewHandler(engine, coinLedger))
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()
}
