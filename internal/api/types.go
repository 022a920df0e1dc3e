package api

import (
	"time"

	"github.com/shopspring/decimal"

	"stockr/internal/ledger"
)

// TradeRequest is the body for buy and sell endpoints. PortfolioID is only
// read by the endpoints that do not carry the portfolio in the path.
type TradeRequest struct {
	PortfolioID string          `json:"portfolio_id,omitempty"`
	Ticker      string          `json:"ticker"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
}

// TradeResponse returns the appended transaction together with the holding
// it produced. Holding is null when the trade closed the position.
type TradeResponse struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Holding     *ledger.Holding     `json:"holding"`
}

// CashRequest is the body for deposit and withdraw endpoints.
type CashRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CashResponse reports the portfolio's cash balance after the operation.
type CashResponse struct {
	PortfolioID string          `json:"portfolio_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// WatchlistRequest is the body for adding a watchlist entry.
type WatchlistRequest struct {
	Ticker string `json:"ticker"`
}

// WatchlistEntry is one watched ticker.
type WatchlistEntry struct {
	Ticker  string    `json:"ticker"`
	AddedAt time.Time `json:"added_at"`
}

// UserResponse is returned by user bootstrap: the user and their portfolio.
type UserResponse struct {
	UserID      string `json:"user_id"`
	PortfolioID string `json:"portfolio_id"`
	Created     bool   `json:"created"`
}

// ImportResponse reports a CSV import: rows imported plus per-row failures.
type ImportResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// GraphPoint is one slice of the portfolio composition chart.
type GraphPoint struct {
	Ticker    string          `json:"ticker"`
	BookValue decimal.Decimal `json:"book_value"`
}
