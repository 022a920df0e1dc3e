package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockr/internal/ledger"
)

// Memory holds an in-process copy of the ledger state, used by tests. One
// RWMutex guards both maps, so holding replacement is trivially atomic.
type Memory struct {
	mu       sync.RWMutex
	seq      int64
	txns     map[string][]ledger.Transaction      // portfolioID -> log
	holdings map[string]map[string]ledger.Holding // portfolioID -> ticker
}

func NewMemory() *Memory {
	return &Memory{
		txns:     make(map[string][]ledger.Transaction),
		holdings: make(map[string]map[string]ledger.Holding),
	}
}

// Transactions returns the transaction-log view of the store.
func (m *Memory) Transactions() ledger.TransactionStore { return &memoryTxns{m} }

// Holdings returns the holdings view of the store.
func (m *Memory) Holdings() ledger.HoldingStore { return &memoryHoldings{m} }

type memoryTxns struct{ s *Memory }

var _ ledger.TransactionStore = (*memoryTxns)(nil)

func (r *memoryTxns) Append(ctx context.Context, txn *ledger.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	txn.Seq = r.s.seq
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	r.s.txns[txn.PortfolioID] = append(r.s.txns[txn.PortfolioID], *txn)
	return nil
}

func (r *memoryTxns) Get(ctx context.Context, portfolioID, id string) (*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, txn := range r.s.txns[portfolioID] {
		if txn.ID == id {
			t := txn
			return &t, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (r *memoryTxns) ListByTicker(ctx context.Context, portfolioID, ticker string) ([]ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []ledger.Transaction
	for _, txn := range r.s.txns[portfolioID] {
		if txn.Ticker == ticker {
			out = append(out, txn)
		}
	}
	sortLog(out)
	return out, nil
}

func (r *memoryTxns) ListByPortfolio(ctx context.Context, portfolioID string) ([]ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Transaction, len(r.s.txns[portfolioID]))
	copy(out, r.s.txns[portfolioID])
	sortLog(out)
	return out, nil
}

func (r *memoryTxns) Delete(ctx context.Context, portfolioID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log := r.s.txns[portfolioID]
	for i, txn := range log {
		if txn.ID == id {
			r.s.txns[portfolioID] = append(log[:i], log[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

// sortLog orders by created_at ascending with insertion sequence as tiebreak,
// the replay order the engine depends on.
func sortLog(txns []ledger.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].Seq < txns[j].Seq
		}
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
}

type memoryHoldings struct{ s *Memory }

var _ ledger.HoldingStore = (*memoryHoldings)(nil)

func (r *memoryHoldings) Get(ctx context.Context, portfolioID, ticker string) (*ledger.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h, ok := r.s.holdings[portfolioID][ticker]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	out := h
	return &out, nil
}

func (r *memoryHoldings) ListByPortfolio(ctx context.Context, portfolioID string) ([]ledger.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Holding, 0, len(r.s.holdings[portfolioID]))
	for _, h := range r.s.holdings[portfolioID] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (r *memoryHoldings) Replace(ctx context.Context, portfolioID, ticker string, h *ledger.Holding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h == nil {
		delete(r.s.holdings[portfolioID], ticker)
		return nil
	}
	if r.s.holdings[portfolioID] == nil {
		r.s.holdings[portfolioID] = make(map[string]ledger.Holding)
	}
	r.s.holdings[portfolioID][ticker] = *h
	return nil
}
