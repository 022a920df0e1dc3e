package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Broker exports name their columns inconsistently; each canonical field maps
// to the header aliases seen in the wild, matched case-insensitively.
var headerAliases = map[string][]string{
	"ticker":           {"ticker", "symbol", "stock", "asset"},
	"shares":           {"shares", "qty", "quantity", "units"},
	"price":            {"price", "unit price", "cost", "purchase price"},
	"transaction_type": {"transaction_type", "type", "action", "side"},
	"date":             {"date", "transaction date", "trade date", "created_at"},
}

const csvDateLayout = "2006-01-02"

// Record is one normalized CSV row. HasDate reports whether the row carried
// a parsable date; without one the import falls back to the insertion time.
type Record struct {
	Ticker  string
	Shares  decimal.Decimal
	Price   decimal.Decimal
	Type    TransactionType
	Date    time.Time
	HasDate bool
}

// ParseTransactions reads a delimited export stream and normalizes it into
// canonical transaction records. Unparsable rows are skipped, never fatal:
// each failure becomes a RowError and parsing continues. Only a missing or
// unusable header row aborts the whole parse.
func ParseTransactions(r io.Reader) ([]Record, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}

	columns := mapColumns(header)
	if _, ok := columns["ticker"]; !ok {
		return nil, nil, fmt.Errorf("no ticker column found in header %v", header)
	}

	var records []Record
	var rowErrors []RowError
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		rec, err := normalizeRow(row, columns)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrors, nil
}

// mapColumns resolves the header row to canonical field -> column index.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for canonical, aliases := range headerAliases {
			if _, taken := columns[canonical]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[canonical] = i
					break
				}
			}
		}
	}
	return columns
}

func normalizeRow(row []string, columns map[string]int) (Record, error) {
	field := func(canonical string) string {
		i, ok := columns[canonical]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := Record{Ticker: NormalizeTicker(field("ticker"))}
	if rec.Ticker == "" {
		return Record{}, fmt.Errorf("missing ticker")
	}

	shares, err := decimal.NewFromString(field("shares"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid shares %q", field("shares"))
	}
	if !shares.IsPositive() {
		return Record{}, fmt.Errorf("shares must be positive, got %s", shares)
	}
	rec.Shares = shares

	price, err := decimal.NewFromString(field("price"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid price %q", field("price"))
	}
	if !price.IsPositive() {
		return Record{}, fmt.Errorf("price must be positive, got %s", price)
	}
	rec.Price = price

	typ, ok := ParseTransactionType(field("transaction_type"))
	if !ok {
		return Record{}, fmt.Errorf("invalid transaction type %q", field("transaction_type"))
	}
	rec.Type = typ

	// Unparsable dates are tolerated: the row still imports, dated "now".
	if raw := field("date"); raw != "" {
		if ts, err := time.Parse(csvDateLayout, raw); err == nil {
			rec.Date = ts
			rec.HasDate = true
		}
	}
	return rec, nil
}

// ImportResult reports a partial-success import: how many rows became
// transactions and every per-row failure message.
type ImportResult struct {
	Imported int
	Errors   []string
}

// ImportCSV parses a transaction export and appends every valid row to the
// portfolio's log, then recalculates each ticker whose history changed.
// The batch never aborts on a row failure; the caller reports the imported
// count together with the error list. If a ticker's recalculation fails
// after the append (for example a historical sell that predates any buy),
// that ticker's imported rows are removed again and the failure joins the
// error list.
func (e *Engine) ImportCSV(ctx context.Context, portfolioID string, r io.Reader) (*ImportResult, error) {
	records, rowErrors, err := ParseTransactions(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, re := range rowErrors {
		result.Errors = append(result.Errors, re.Error())
	}

	imported := make(map[string][]string) // ticker -> appended transaction ids
	for _, rec := range records {
		txn := &Transaction{
			ID:          uuid.NewString(),
			PortfolioID: portfolioID,
			Ticker:      rec.Ticker,
			Shares:      rec.Shares,
			Price:       rec.Price,
			Type:        rec.Type,
		}
		if rec.HasDate {
			txn.CreatedAt = rec.Date
		}
		if err := e.txns.Append(ctx, txn); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.Ticker, err))
			continue
		}
		imported[rec.Ticker] = append(imported[rec.Ticker], txn.ID)
		result.Imported++
	}

	for ticker, ids := range imported {
		_, recalcErr := e.Recalculate(ctx, portfolioID, ticker)
		if recalcErr == nil {
			continue
		}
		// Back out this ticker's rows so the log and holdings stay
		// consistent, then rebuild from what remains.
		for _, id := range ids {
			if delErr := e.txns.Delete(ctx, portfolioID, id); delErr != nil {
				return result, fmt.Errorf("recalculation failed (%v) and rollback failed: %w", recalcErr, delErr)
			}
		}
		result.Imported -= len(ids)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ticker, recalcErr))
		if _, err := e.Recalculate(ctx, portfolioID, ticker); err != nil {
			return result, err
		}
	}
	return result, nil
}
