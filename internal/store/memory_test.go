package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockr/internal/ledger"
	"stockr/internal/store"
)

func txn(id, ticker string, on time.Time) *ledger.Transaction {
	return &ledger.Transaction{
		ID:          id,
		PortfolioID: "p1",
		Ticker:      ticker,
		Shares:      decimal.NewFromInt(1),
		Price:       decimal.NewFromInt(10),
		Type:        ledger.Buy,
		CreatedAt:   on,
	}
}

func TestMemoryListOrdersByTimeThenSequence(t *testing.T) {
	mem := store.NewMemory()
	txns := mem.Transactions()
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, txns.Append(ctx, txn("late", "AAPL", ts.Add(time.Hour))))
	require.NoError(t, txns.Append(ctx, txn("tie-a", "AAPL", ts)))
	require.NoError(t, txns.Append(ctx, txn("tie-b", "AAPL", ts)))

	out, err := txns.ListByTicker(ctx, "p1", "AAPL")
	require.NoError(t, err)
	require.Len(t, out, 3)
	// Equal timestamps fall back to insertion order; later timestamps sort last.
	assert.Equal(t, "tie-a", out[0].ID)
	assert.Equal(t, "tie-b", out[1].ID)
	assert.Equal(t, "late", out[2].ID)
}

func TestMemoryAppendDefaultsCreatedAt(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	in := txn("t1", "AAPL", time.Time{})
	require.NoError(t, mem.Transactions().Append(ctx, in))
	assert.False(t, in.CreatedAt.IsZero())
	assert.NotZero(t, in.Seq)
}

func TestMemoryDelete(t *testing.T) {
	mem := store.NewMemory()
	txns := mem.Transactions()
	ctx := context.Background()

	require.NoError(t, txns.Append(ctx, txn("t1", "AAPL", time.Time{})))
	require.NoError(t, txns.Delete(ctx, "p1", "t1"))

	assert.True(t, ledger.IsNotFound(txns.Delete(ctx, "p1", "t1")))
	_, err := txns.Get(ctx, "p1", "t1")
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemoryReplaceHolding(t *testing.T) {
	mem := store.NewMemory()
	holdings := mem.Holdings()
	ctx := context.Background()

	h := &ledger.Holding{
		PortfolioID: "p1",
		Ticker:      "AAPL",
		Shares:      decimal.NewFromInt(10),
		AverageCost: decimal.NewFromInt(100),
		BookValue:   decimal.NewFromInt(1000),
	}
	require.NoError(t, holdings.Replace(ctx, "p1", "AAPL", h))

	got, err := holdings.Get(ctx, "p1", "AAPL")
	require.NoError(t, err)
	assert.True(t, got.Shares.Equal(h.Shares))

	// Nil deletes the row.
	require.NoError(t, holdings.Replace(ctx, "p1", "AAPL", nil))
	_, err = holdings.Get(ctx, "p1", "AAPL")
	assert.True(t, ledger.IsNotFound(err))

	list, err := holdings.ListByPortfolio(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
