package memory

import (
	"context"
	"sync"

	"github.com/storefront/ledger-core/coins"
)

// =============================================================================
// COIN STORE - In-memory implementation of coins.TxStore
// =============================================================================

type CoinStore struct {
	mu      sync.RWMutex
	wallets map[string]coins.Wallet
	log     map[string][]coins.CoinTransaction // per user, insertion order
}

func NewCoinStore() *CoinStore {
	return &CoinStore{
		wallets: make(map[string]coins.Wallet),
		log:     make(map[string][]coins.CoinTransaction),
	}
}

func (m *CoinStore) GetWallet(_ context.Context, userID string) (*coins.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getWalletLocked(userID)
}

func (m *CoinStore) getWalletLocked(userID string) (*coins.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *CoinStore) SaveWallet(_ context.Context, w coins.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.UserID] = w
	return nil
}

// AppendTransaction adds a ledger entry. Append-only.
func (m *CoinStore) AppendTransaction(_ context.Context, tx coins.CoinTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log[tx.UserID] = append(m.log[tx.UserID], tx)
	return nil
}

func (m *CoinStore) TransactionsForUser(_ context.Context, userID string) ([]coins.CoinTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transactionsForUserLocked(userID)
}

func (m *CoinStore) transactionsForUserLocked(userID string) ([]coins.CoinTransaction, error) {
	return append([]coins.CoinTransaction{}, m.log[userID]...), nil
}

func (m *CoinStore) ListTransactions(_ context.Context, userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(userID, limit, before)
}

func (m *CoinStore) listTransactionsLocked(userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	txs := m.log[userID]

	// Walk backwards from the cursor (or the end) for reverse-chrono pages.
	end := len(txs)
	if before != "" {
		end = 0
		for i, tx := range txs {
			if tx.ID == before {
				end = i
				break
			}
		}
	}

	var out []coins.CoinTransaction
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, txs[i])
	}
	return out, nil
}

func (m *CoinStore) ListWalletUserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listWalletUserIDsLocked()
}

func (m *CoinStore) listWalletUserIDsLocked() ([]string, error) {
	out := make([]string, 0, len(m.wallets))
	for id := range m.wallets {
		out = append(out, id)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Simulated with snapshot + rollback on error
// =============================================================================

// WithTx executes fn within a transaction. The store lock is held for
// the duration; on error the pre-transaction state is restored.
func (m *CoinStore) WithTx(_ context.Context, fn func(coins.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txCoinView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type coinSnapshot struct {
	wallets map[string]coins.Wallet
	log     map[string][]coins.CoinTransaction
}

func (m *CoinStore) snapshot() coinSnapshot {
	s := coinSnapshot{
		wallets: make(map[string]coins.Wallet, len(m.wallets)),
		log:     make(map[string][]coins.CoinTransaction, len(m.log)),
	}
	for k, v := range m.wallets {
		s.wallets[k] = v
	}
	for k, v := range m.log {
		s.log[k] = append([]coins.CoinTransaction{}, v...)
	}
	return s
}

func (m *CoinStore) restore(s coinSnapshot) {
	m.wallets = s.wallets
	m.log = s.log
}

// txCoinView writes directly to the parent, which already holds the
// lock; rollback happens via the parent's snapshot.
type txCoinView struct {
	parent *CoinStore
}

func (v *txCoinView) GetWallet(_ context.Context, userID string) (*coins.Wallet, error) {
	return v.parent.getWalletLocked(userID)
}

func (v *txCoinView) SaveWallet(_ context.Context, w coins.Wallet) error {
	v.parent.wallets[w.UserID] = w
	return nil
}

func (v *txCoinView) AppendTransaction(_ context.Context, tx coins.CoinTransaction) error {
	v.parent.log[tx.UserID] = append(v.parent.log[tx.UserID], tx)
	return nil
}

func (v *txCoinView) TransactionsForUser(_ context.Context, userID string) ([]coins.CoinTransaction, error) {
	return v.parent.transactionsForUserLocked(userID)
}

func (v *txCoinView) ListTransactions(_ context.Context, userID string, limit int, before string) ([]coins.CoinTransaction, error) {
	return v.parent.listTransactionsLocked(userID, limit, before)
}

func (v *txCoinView) ListWalletUserIDs(_ context.Context) ([]string, error) {
	return v.parent.listWalletUserIDsLocked()
}
