/*
sweeper.go - Background reconciliation sweep

PURPOSE:
  Periodically re-derives every cached projection from its authoritative
  history: payable payment statuses from their payment sets, wallet
  totals from their coin transaction logs. Drift should never happen
  through the engines; the sweep exists to catch and repair it anyway
  (manual database edits, crashes between writes on non-transactional
  backends).

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Enumerates payables and wallets via the store contracts
  - Each repair goes through the same engine operations the admin
    endpoints use, so the sweep can never apply a different rule
  - Logs only when something was actually repaired

CONFIGURATION:
  - Interval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewReconciliationSweeper(handler)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ReconcilePayable/ReconcileWallet endpoints (manual runs)
  - payments/engine.go, coins/ledger.go: The repair operations
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// ReconciliationSweeper re-derives cached projections on a schedule.
type ReconciliationSweeper struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationSweeper creates a sweeper over the handler's engines.
func NewReconciliationSweeper(h *Handler) *ReconciliationSweeper {
	return &ReconciliationSweeper{
		Handler:  h,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (rs *ReconciliationSweeper) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Sweeper] Started with sweep interval: %v", rs.Interval)
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (rs *ReconciliationSweeper) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (rs *ReconciliationSweeper) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationSweeper) sweep() {
	ctx := context.Background()

	payablesRepaired, err := rs.sweepPayables(ctx)
	if err != nil {
		log.Printf("[Sweeper] Payable sweep failed: %v", err)
	}
	walletsRepaired, err := rs.sweepWallets(ctx)
	if err != nil {
		log.Printf("[Sweeper] Wallet sweep failed: %v", err)
	}

	if payablesRepaired > 0 || walletsRepaired > 0 {
		log.Printf("[Sweeper] Completed: %d payable statuses repaired, %d wallets repaired",
			payablesRepaired, walletsRepaired)
	}
}

func (rs *ReconciliationSweeper) sweepPayables(ctx context.Context) (int, error) {
	refs, err := rs.Handler.PaymentStore.ListPayableRefs(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, ref := range refs {
		fixed, err := rs.Handler.Payments.ReconcilePayable(ctx, ref)
		if err != nil {
			log.Printf("[Sweeper] Error reconciling payable %s: %v", ref, err)
			continue
		}
		if fixed {
			log.Printf("[Sweeper] Repaired drifted status for payable %s", ref)
			repaired++
		}
	}
	return repaired, nil
}

func (rs *ReconciliationSweeper) sweepWallets(ctx context.Context) (int, error) {
	userIDs, err := rs.Handler.CoinStore.ListWalletUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, userID := range userIDs {
		fixed, err := rs.Handler.Coins.ReconcileWallet(ctx, userID)
		if err != nil {
			log.Printf("[Sweeper] Error reconciling wallet %s: %v", userID, err)
			continue
		}
		if fixed {
			log.Printf("[Sweeper] Repaired drifted wallet for user %s", userID)
			repaired++
		}
	}
	return repaired, nil
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *ReconciliationSweeper) RunNow() {
	rs.sweep()
}
