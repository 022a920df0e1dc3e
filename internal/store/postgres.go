package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stockr/internal/ledger"
)

// Postgres backs the ledger stores with the relational schema created by
// internal/migrations. Holdings are replaced with single upsert/delete
// statements, so readers never observe a torn swap.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Transactions returns the transaction-log view of the store.
func (p *Postgres) Transactions() ledger.TransactionStore { return &pgTxns{db: p.db} }

// Holdings returns the holdings view of the store.
func (p *Postgres) Holdings() ledger.HoldingStore { return &pgHoldings{db: p.db} }

type pgTxns struct{ db *sql.DB }

var _ ledger.TransactionStore = (*pgTxns)(nil)

func (r *pgTxns) Append(ctx context.Context, txn *ledger.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (id, portfolio_id, ticker, shares, price, transaction_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`,
		txn.ID, txn.PortfolioID, txn.Ticker, txn.Shares, txn.Price, string(txn.Type), txn.CreatedAt,
	).Scan(&txn.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *pgTxns) Get(ctx context.Context, portfolioID, id string) (*ledger.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, seq, portfolio_id, ticker, shares, price, transaction_type, created_at
		FROM transactions
		WHERE portfolio_id = $1 AND id = $2`,
		portfolioID, id)
	return scanTransaction(row)
}

func (r *pgTxns) ListByTicker(ctx context.Context, portfolioID, ticker string) ([]ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seq, portfolio_id, ticker, shares, price, transaction_type, created_at
		FROM transactions
		WHERE portfolio_id = $1 AND ticker = $2
		ORDER BY created_at ASC, seq ASC`,
		portfolioID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *pgTxns) ListByPortfolio(ctx context.Context, portfolioID string) ([]ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seq, portfolio_id, ticker, shares, price, transaction_type, created_at
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY created_at ASC, seq ASC`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *pgTxns) Delete(ctx context.Context, portfolioID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE portfolio_id = $1 AND id = $2`,
		portfolioID, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking delete result: %w", err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	var typ string
	err := row.Scan(&txn.ID, &txn.Seq, &txn.PortfolioID, &txn.Ticker,
		&txn.Shares, &txn.Price, &typ, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.Type = ledger.TransactionType(typ)
	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	defer rows.Close()
	var out []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

type pgHoldings struct{ db *sql.DB }

var _ ledger.HoldingStore = (*pgHoldings)(nil)

func (r *pgHoldings) Get(ctx context.Context, portfolioID, ticker string) (*ledger.Holding, error) {
	var h ledger.Holding
	err := r.db.QueryRowContext(ctx, `
		SELECT portfolio_id, ticker, shares, average_cost, book_value
		FROM holdings
		WHERE portfolio_id = $1 AND ticker = $2`,
		portfolioID, ticker,
	).Scan(&h.PortfolioID, &h.Ticker, &h.Shares, &h.AverageCost, &h.BookValue)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &h, nil
}

func (r *pgHoldings) ListByPortfolio(ctx context.Context, portfolioID string) ([]ledger.Holding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT portfolio_id, ticker, shares, average_cost, book_value
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY ticker ASC`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var out []ledger.Holding
	for rows.Next() {
		var h ledger.Holding
		if err := rows.Scan(&h.PortfolioID, &h.Ticker, &h.Shares, &h.AverageCost, &h.BookValue); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return out, nil
}

func (r *pgHoldings) Replace(ctx context.Context, portfolioID, ticker string, h *ledger.Holding) error {
	if h == nil {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM holdings WHERE portfolio_id = $1 AND ticker = $2`,
			portfolioID, ticker)
		if err != nil {
			return fmt.Errorf("failed to delete holding: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings (portfolio_id, ticker, shares, average_cost, book_value, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (portfolio_id, ticker) DO UPDATE SET
			shares = EXCLUDED.shares,
			average_cost = EXCLUDED.average_cost,
			book_value = EXCLUDED.book_value,
			updated_at = CURRENT_TIMESTAMP`,
		portfolioID, ticker, h.Shares, h.AverageCost, h.BookValue)
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}
