package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed buy/sell enumeration.
type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// ParseTransactionType normalizes a raw type string. The empty string
// defaults to Buy (CSV imports frequently omit the column).
func ParseTransactionType(raw string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(Buy):
		return Buy, true
	case string(Sell):
		return Sell, true
	default:
		return "", false
	}
}

// Transaction is one buy or sell event in a portfolio's append-only log.
// Immutable once created; deletion goes through Engine.DeleteTransaction.
type Transaction struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"-"`
	PortfolioID string          `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	Type        TransactionType `json:"transaction_type"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Value is shares * price.
func (t *Transaction) Value() decimal.Decimal {
	return t.Shares.Mul(t.Price)
}

// Holding is the current net position for one ticker within a portfolio.
// It is a materialized cache over the transaction log: book_value tracks
// shares * average_cost, and a holding never persists at zero shares.
type Holding struct {
	PortfolioID string          `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	Shares      decimal.Decimal `json:"shares"`
	AverageCost decimal.Decimal `json:"average_cost"`
	BookValue   decimal.Decimal `json:"book_value"`
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
