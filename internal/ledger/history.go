package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const historyDateLayout = "2006-01-02"

// HistoryPoint is one day of the portfolio valuation series. Value prices
// every open position at the last trade price seen on or before the day;
// Total is the running cost-tracked value including realized profit and
// loss from sells.
type HistoryPoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
	Total decimal.Decimal `json:"total_value"`
}

type position struct {
	shares decimal.Decimal
	value  decimal.Decimal
}

// BuildHistory replays the portfolio's full transaction log chronologically
// into a dense daily valuation series for charting. Days between the first
// and last transaction with no activity carry the prior day's value forward.
// Positions are valued at their most recent transaction price, a stand-in
// for market price that keeps this computation free of external data.
func (e *Engine) BuildHistory(ctx context.Context, portfolioID string) ([]HistoryPoint, error) {
	txns, err := e.txns.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(txns) == 0 {
		return []HistoryPoint{}, nil
	}

	// Group transactions by calendar day, preserving log order within and
	// across days (the store returns them oldest first).
	var days []string
	byDay := make(map[string][]Transaction)
	for _, txn := range txns {
		day := txn.CreatedAt.UTC().Format(historyDateLayout)
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], txn)
	}

	positions := make(map[string]*position)
	totalValue := decimal.Zero
	points := make([]HistoryPoint, 0, len(days))

	for _, day := range days {
		for _, txn := range byDay[day] {
			pos := positions[txn.Ticker]
			if pos == nil {
				pos = &position{shares: decimal.Zero, value: decimal.Zero}
				positions[txn.Ticker] = pos
			}
			switch txn.Type {
			case Buy:
				pos.shares = pos.shares.Add(txn.Shares)
				pos.value = pos.value.Add(txn.Value())
				totalValue = totalValue.Add(txn.Value())
			case Sell:
				// A sell against an empty tracked position contributes
				// nothing rather than dividing by zero.
				if !pos.shares.IsPositive() {
					continue
				}
				valuePerShare := pos.value.Div(pos.shares)
				removed := txn.Shares.Mul(valuePerShare)
				pos.shares = pos.shares.Sub(txn.Shares)
				pos.value = pos.value.Sub(removed)
				totalValue = totalValue.Sub(removed)
				// Realized P/L: selling above the tracked average raises
				// the running total, selling below lowers it.
				totalValue = totalValue.Add(txn.Value().Sub(removed))
			}
		}

		// Value the day's open positions at the last trade price seen on or
		// before this day.
		dayValue := decimal.Zero
		for ticker, pos := range positions {
			if !pos.shares.IsPositive() {
				continue
			}
			if price, ok := latestPriceOnOrBefore(txns, ticker, day); ok {
				dayValue = dayValue.Add(pos.shares.Mul(price))
			}
		}

		points = append(points, HistoryPoint{Date: day, Value: dayValue, Total: totalValue})
	}

	return fillCalendarGaps(points)
}

// latestPriceOnOrBefore scans the full log for the ticker's most recent
// transaction price at or before the given day. Linear over the log, which
// is fine for the history lengths this serves.
func latestPriceOnOrBefore(txns []Transaction, ticker, day string) (decimal.Decimal, bool) {
	var price decimal.Decimal
	found := false
	for i := range txns {
		if txns[i].Ticker != ticker {
			continue
		}
		if txns[i].CreatedAt.UTC().Format(historyDateLayout) > day {
			continue
		}
		price = txns[i].Price
		found = true
	}
	return price, found
}

// fillCalendarGaps produces one point per calendar day between the first and
// last transaction dates, carrying the previous day's values forward over
// days with no activity.
func fillCalendarGaps(points []HistoryPoint) ([]HistoryPoint, error) {
	if len(points) == 0 {
		return points, nil
	}
	start, err := time.Parse(historyDateLayout, points[0].Date)
	if err != nil {
		return nil, fmt.Errorf("bad history date %q: %w", points[0].Date, err)
	}
	end, err := time.Parse(historyDateLayout, points[len(points)-1].Date)
	if err != nil {
		return nil, fmt.Errorf("bad history date %q: %w", points[len(points)-1].Date, err)
	}

	filled := make([]HistoryPoint, 0, len(points))
	idx := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(historyDateLayout)
		if idx < len(points) && points[idx].Date == date {
			filled = append(filled, points[idx])
			idx++
			continue
		}
		prev := filled[len(filled)-1]
		filled = append(filled, HistoryPoint{Date: date, Value: prev.Value, Total: prev.Total})
	}
	return filled, nil
}
