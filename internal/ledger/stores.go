package ledger

import "context"

// TransactionStore is the append-only transaction log. List methods return
// transactions ordered by created_at ascending with insertion sequence as
// the tiebreak, which is the replay order the engine depends on.
type TransactionStore interface {
	// Append inserts a transaction and assigns its insertion sequence.
	// A zero CreatedAt defaults to the current time.
	Append(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, portfolioID, id string) (*Transaction, error)
	ListByTicker(ctx context.Context, portfolioID, ticker string) ([]Transaction, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]Transaction, error)
	Delete(ctx context.Context, portfolioID, id string) error
}

// HoldingStore materializes the per-ticker holdings derived from the log.
type HoldingStore interface {
	Get(ctx context.Context, portfolioID, ticker string) (*Holding, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]Holding, error)
	// Replace atomically swaps the stored holding for (portfolioID, ticker).
	// A nil holding deletes the row. Readers must never observe a torn state
	// between the old and new holding.
	Replace(ctx context.Context, portfolioID, ticker string, h *Holding) error
}
