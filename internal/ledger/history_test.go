package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockr/internal/ledger"
)

func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func recordAt(t *testing.T, eng *ledger.Engine, portfolioID, ticker, shares, price string, typ ledger.TransactionType, on string) {
	t.Helper()
	_, _, err := eng.RecordTrade(context.Background(), portfolioID, ticker, d(shares), d(price), typ, day(on))
	require.NoError(t, err)
}

func TestBuildHistoryEmptyPortfolio(t *testing.T) {
	eng, _ := newTestEngine()

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestBuildHistorySingleDay(t *testing.T) {
	eng, _ := newTestEngine()
	recordAt(t, eng, "p1", "AAPL", "10", "10", ledger.Buy, "2024-03-01")

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.True(t, points[0].Value.Equal(d("100")), "value = %s", points[0].Value)
	assert.True(t, points[0].Total.Equal(d("100")), "total = %s", points[0].Total)
}

func TestBuildHistoryRealizedGain(t *testing.T) {
	eng, _ := newTestEngine()
	recordAt(t, eng, "p1", "AAPL", "10", "10", ledger.Buy, "2024-03-01")
	recordAt(t, eng, "p1", "AAPL", "5", "15", ledger.Sell, "2024-03-02")

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.True(t, points[0].Value.Equal(d("100")))
	assert.True(t, points[0].Total.Equal(d("100")))

	// Selling 5 of 10 removes half the tracked value (50) and realizes a
	// 25 gain: total = 100 - 50 + 25 = 75. The remaining 5 shares are
	// valued at the last trade price of 15.
	assert.Equal(t, "2024-03-02", points[1].Date)
	assert.True(t, points[1].Value.Equal(d("75")), "value = %s", points[1].Value)
	assert.True(t, points[1].Total.Equal(d("75")), "total = %s", points[1].Total)
}

func TestBuildHistoryValuesAtLatestTradePrice(t *testing.T) {
	eng, _ := newTestEngine()
	recordAt(t, eng, "p1", "AAPL", "10", "10", ledger.Buy, "2024-03-01")
	recordAt(t, eng, "p1", "AAPL", "2", "20", ledger.Buy, "2024-03-02")

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Day two holds 12 shares priced at the day's trade price of 20.
	assert.True(t, points[1].Value.Equal(d("240")), "value = %s", points[1].Value)
}

func TestBuildHistoryFillsCalendarGaps(t *testing.T) {
	eng, _ := newTestEngine()
	recordAt(t, eng, "p1", "AAPL", "10", "10", ledger.Buy, "2024-03-01")
	recordAt(t, eng, "p1", "AAPL", "5", "12", ledger.Buy, "2024-03-04")

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, "2024-03-02", points[1].Date)
	assert.Equal(t, "2024-03-03", points[2].Date)
	// Quiet days carry the prior day's values forward.
	assert.True(t, points[1].Value.Equal(points[0].Value))
	assert.True(t, points[2].Total.Equal(points[0].Total))
	assert.Equal(t, "2024-03-04", points[3].Date)
}

func TestBuildHistoryMultipleTickers(t *testing.T) {
	eng, _ := newTestEngine()
	recordAt(t, eng, "p1", "AAPL", "10", "10", ledger.Buy, "2024-03-01")
	recordAt(t, eng, "p1", "MSFT", "2", "50", ledger.Buy, "2024-03-01")

	points, err := eng.BuildHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Value.Equal(d("200")), "value = %s", points[0].Value)
}
