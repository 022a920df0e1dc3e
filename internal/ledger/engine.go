package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine owns all mutations of the transaction log and the derived holdings.
// Every holding is a pure function of the ordered transaction history for its
// (portfolio, ticker) pair, recomputed by full replay after each mutation.
type Engine struct {
	txns     TransactionStore
	holdings HoldingStore

	// IncrementalReversal makes DeleteTransaction undo a transaction
	// algebraically instead of replaying the log. The sell reversal assumes
	// the removed value per share equals the original transaction price,
	// which only holds when no other trades for the ticker intervened.
	IncrementalReversal bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(txns TransactionStore, holdings HoldingStore) *Engine {
	return &Engine{
		txns:     txns,
		holdings: holdings,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor serializes mutations per (portfolio, ticker) key so the
// read-replay-replace cycle is atomic relative to concurrent requests
// touching the same position.
func (e *Engine) lockFor(portfolioID, ticker string) *sync.Mutex {
	key := portfolioID + "|" + ticker
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	return m
}

// Recalculate replays the full transaction history for (portfolioID, ticker)
// and replaces the stored holding with the result. Returns nil when the
// replay nets out to zero shares; the holding row is deleted in that case.
func (e *Engine) Recalculate(ctx context.Context, portfolioID, ticker string) (*Holding, error) {
	ticker = NormalizeTicker(ticker)
	mu := e.lockFor(portfolioID, ticker)
	mu.Lock()
	defer mu.Unlock()
	return e.recalculateLocked(ctx, portfolioID, ticker)
}

func (e *Engine) recalculateLocked(ctx context.Context, portfolioID, ticker string) (*Holding, error) {
	txns, err := e.txns.ListByTicker(ctx, portfolioID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	shares := decimal.Zero
	bookValue := decimal.Zero

	for i := range txns {
		txn := &txns[i]
		switch txn.Type {
		case Buy:
			shares = shares.Add(txn.Shares)
			bookValue = bookValue.Add(txn.Value())
		case Sell:
			if shares.IsZero() {
				return nil, &ConsistencyError{
					PortfolioID: portfolioID,
					Ticker:      ticker,
					Reason:      fmt.Sprintf("sell of %s shares against an empty position", txn.Shares),
				}
			}
			if shares.LessThan(txn.Shares) {
				return nil, &ConsistencyError{
					PortfolioID: portfolioID,
					Ticker:      ticker,
					Reason:      fmt.Sprintf("sell of %s shares exceeds position of %s", txn.Shares, shares),
				}
			}
			valuePerShare := bookValue.Div(shares)
			shares = shares.Sub(txn.Shares)
			bookValue = bookValue.Sub(txn.Shares.Mul(valuePerShare))
		default:
			return nil, &ConsistencyError{
				PortfolioID: portfolioID,
				Ticker:      ticker,
				Reason:      fmt.Sprintf("unknown transaction type %q", txn.Type),
			}
		}
	}

	if !shares.IsPositive() {
		if err := e.holdings.Replace(ctx, portfolioID, ticker, nil); err != nil {
			return nil, fmt.Errorf("failed to delete holding: %w", err)
		}
		return nil, nil
	}

	holding := &Holding{
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Shares:      shares,
		AverageCost: bookValue.Div(shares),
		BookValue:   bookValue,
	}
	if err := e.holdings.Replace(ctx, portfolioID, ticker, holding); err != nil {
		return nil, fmt.Errorf("failed to replace holding: %w", err)
	}
	return holding, nil
}

// RecordTrade validates and appends a buy or sell transaction, then
// recalculates the holding. Sells are rejected up front when the current
// position cannot cover them; no transaction is created in that case.
// If recalculation fails after the append, the appended transaction is
// removed again so the log and the holdings stay mutually consistent.
func (e *Engine) RecordTrade(ctx context.Context, portfolioID, ticker string, shares, price decimal.Decimal, typ TransactionType, at time.Time) (*Transaction, *Holding, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, nil, validationf("ticker is required")
	}
	if !shares.IsPositive() {
		return nil, nil, validationf("shares must be positive")
	}
	if !price.IsPositive() {
		return nil, nil, validationf("price must be positive")
	}
	if typ != Buy && typ != Sell {
		return nil, nil, validationf("invalid transaction type: %s", typ)
	}

	mu := e.lockFor(portfolioID, ticker)
	mu.Lock()
	defer mu.Unlock()

	if typ == Sell {
		holding, err := e.holdings.Get(ctx, portfolioID, ticker)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to get holding: %w", err)
		}
		if holding == nil || holding.Shares.LessThan(shares) {
			have := decimal.Zero
			if holding != nil {
				have = holding.Shares
			}
			return nil, nil, validationf("insufficient shares to sell: have %s, need %s", have, shares)
		}
	}

	txn := &Transaction{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Shares:      shares,
		Price:       price,
		Type:        typ,
		CreatedAt:   at,
	}
	if err := e.txns.Append(ctx, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	holding, err := e.recalculateLocked(ctx, portfolioID, ticker)
	if err != nil {
		if delErr := e.txns.Delete(ctx, portfolioID, txn.ID); delErr != nil {
			return nil, nil, fmt.Errorf("recalculation failed (%v) and rollback failed: %w", err, delErr)
		}
		return nil, nil, err
	}
	return txn, holding, nil
}

// DeleteTransaction removes a historical transaction and restores the
// holding to the state it would have without it. The default path replays
// the remaining history; the incremental path reverses the transaction's
// effect algebraically.
func (e *Engine) DeleteTransaction(ctx context.Context, portfolioID, txnID string) (*Holding, error) {
	txn, err := e.txns.Get(ctx, portfolioID, txnID)
	if err != nil {
		return nil, err
	}

	mu := e.lockFor(portfolioID, txn.Ticker)
	mu.Lock()
	defer mu.Unlock()

	if err := e.txns.Delete(ctx, portfolioID, txnID); err != nil {
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}

	if e.IncrementalReversal {
		return e.reverseLocked(ctx, txn)
	}
	return e.recalculateLocked(ctx, portfolioID, txn.Ticker)
}

// reverseLocked undoes a single transaction's effect on the current holding
// without replaying the log. Reversing a sell adds shares*price of book value
// back, an approximation that diverges from replay when other trades for the
// ticker came after the reversed one.
func (e *Engine) reverseLocked(ctx context.Context, txn *Transaction) (*Holding, error) {
	holding, err := e.holdings.Get(ctx, txn.PortfolioID, txn.Ticker)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	switch txn.Type {
	case Buy:
		if holding == nil {
			return nil, nil
		}
		holding.Shares = holding.Shares.Sub(txn.Shares)
		holding.BookValue = holding.BookValue.Sub(txn.Value())
		if !holding.Shares.IsPositive() {
			if err := e.holdings.Replace(ctx, txn.PortfolioID, txn.Ticker, nil); err != nil {
				return nil, fmt.Errorf("failed to delete holding: %w", err)
			}
			return nil, nil
		}
	case Sell:
		if holding == nil {
			holding = &Holding{
				PortfolioID: txn.PortfolioID,
				Ticker:      txn.Ticker,
				Shares:      txn.Shares,
				AverageCost: txn.Price,
				BookValue:   txn.Value(),
			}
		} else {
			holding.Shares = holding.Shares.Add(txn.Shares)
			holding.BookValue = holding.BookValue.Add(txn.Value())
		}
	default:
		return nil, &ConsistencyError{
			PortfolioID: txn.PortfolioID,
			Ticker:      txn.Ticker,
			Reason:      fmt.Sprintf("unknown transaction type %q", txn.Type),
		}
	}

	holding.AverageCost = holding.BookValue.Div(holding.Shares)
	if err := e.holdings.Replace(ctx, txn.PortfolioID, txn.Ticker, holding); err != nil {
		return nil, fmt.Errorf("failed to replace holding: %w", err)
	}
	return holding, nil
}

// Holding returns the current stored holding for (portfolioID, ticker).
func (e *Engine) Holding(ctx context.Context, portfolioID, ticker string) (*Holding, error) {
	return e.holdings.Get(ctx, portfolioID, NormalizeTicker(ticker))
}

// Holdings returns every stored holding for a portfolio.
func (e *Engine) Holdings(ctx context.Context, portfolioID string) ([]Holding, error) {
	return e.holdings.ListByPortfolio(ctx, portfolioID)
}

// Transactions returns the portfolio's transactions, oldest first.
func (e *Engine) Transactions(ctx context.Context, portfolioID string) ([]Transaction, error) {
	return e.txns.ListByPortfolio(ctx, portfolioID)
}
