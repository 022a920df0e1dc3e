package ledger_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockr/internal/ledger"
)

func TestParseTransactionsCanonicalHeader(t *testing.T) {
	input := strings.Join([]string{
		"ticker,shares,price,transaction_type,date",
		"AAPL,10,150.50,buy,2024-01-02",
		"MSFT,5,300,sell,2024-01-03",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 2)

	assert.Equal(t, "AAPL", records[0].Ticker)
	assert.True(t, records[0].Shares.Equal(d("10")))
	assert.True(t, records[0].Price.Equal(d("150.50")))
	assert.Equal(t, ledger.Buy, records[0].Type)
	assert.True(t, records[0].HasDate)
	assert.Equal(t, "2024-01-02", records[0].Date.Format("2006-01-02"))

	assert.Equal(t, ledger.Sell, records[1].Type)
}

func TestParseTransactionsHeaderAliases(t *testing.T) {
	input := strings.Join([]string{
		"Symbol,Qty,Unit Price,Action,Trade Date",
		"aapl,2,99.95,BUY,2024-06-01",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Ticker)
	assert.True(t, records[0].Shares.Equal(d("2")))
	assert.Equal(t, ledger.Buy, records[0].Type)
}

func TestParseTransactionsPartialFailure(t *testing.T) {
	input := strings.Join([]string{
		"ticker,shares,price",
		"AAPL,10,100",
		",5,50",
		"MSFT,3,200",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 3, rowErrors[0].Line)
	assert.Contains(t, rowErrors[0].Reason, "ticker")
}

func TestParseTransactionsDefaultsToBuy(t *testing.T) {
	input := strings.Join([]string{
		"ticker,shares,price,type",
		"AAPL,1,10,",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 1)
	assert.Equal(t, ledger.Buy, records[0].Type)
}

func TestParseTransactionsToleratesBadDate(t *testing.T) {
	input := strings.Join([]string{
		"ticker,shares,price,date",
		"AAPL,1,10,01/13/2024",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasDate)
}

func TestParseTransactionsRejectsNonPositiveValues(t *testing.T) {
	input := strings.Join([]string{
		"ticker,shares,price",
		"AAPL,0,100",
		"AAPL,5,-1",
		"AAPL,abc,100",
	}, "\n")

	records, rowErrors, err := ledger.ParseTransactions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, rowErrors, 3)
}

func TestParseTransactionsRequiresUsableHeader(t *testing.T) {
	_, _, err := ledger.ParseTransactions(strings.NewReader(""))
	assert.Error(t, err)

	_, _, err = ledger.ParseTransactions(strings.NewReader("foo,bar\n1,2\n"))
	assert.Error(t, err)
}

func TestImportCSVPartialSuccess(t *testing.T) {
	eng, _ := newTestEngine()
	ctx := context.Background()

	input := strings.Join([]string{
		"ticker,shares,price,transaction_type,date",
		"AAPL,10,100,buy,2024-01-02",
		",5,50,buy,2024-01-02",
		"AAPL,5,200,buy,2024-01-03",
	}, "\n")

	result, err := eng.ImportCSV(ctx, "p1", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Len(t, result.Errors, 1)

	h, err := eng.Holding(ctx, "p1", "AAPL")
	require.NoError(t, err)
	assert.True(t, h.Shares.Equal(d("15")))
	assert.True(t, h.BookValue.Equal(d("2000")))

	// Historical dates from the file survive the import.
	txns, err := eng.Transactions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "2024-01-02", txns[0].CreatedAt.Format("2006-01-02"))
}

func TestImportCSVUndatedRowsUseInsertionTime(t *testing.T) {
	eng, _ := newTestEngine()
	ctx := context.Background()

	input := strings.Join([]string{
		"ticker,shares,price",
		"AAPL,1,10",
	}, "\n")

	before := time.Now().UTC().Add(-time.Second)
	result, err := eng.ImportCSV(ctx, "p1", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	txns, err := eng.Transactions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].CreatedAt.After(before))
}

func TestImportCSVBacksOutInconsistentTicker(t *testing.T) {
	eng, _ := newTestEngine()
	ctx := context.Background()

	// The MSFT sell predates any buy, so replay fails for that ticker and
	// its rows are removed again. AAPL imports normally.
	input := strings.Join([]string{
		"ticker,shares,price,transaction_type,date",
		"AAPL,10,100,buy,2024-01-02",
		"MSFT,5,50,sell,2024-01-02",
	}, "\n")

	result, err := eng.ImportCSV(ctx, "p1", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "MSFT")

	txns, err := eng.Transactions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "AAPL", txns[0].Ticker)

	_, err = eng.Holding(ctx, "p1", "MSFT")
	assert.True(t, ledger.IsNotFound(err))
}
