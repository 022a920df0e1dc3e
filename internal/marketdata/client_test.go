package marketdata_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockr/internal/marketdata"
	"stockr/internal/utils"
)

func quoteServer(t *testing.T, hits *int64, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		fmt.Fprint(w, body)
	}))
}

func newClient(baseURL string, ttl int) *marketdata.Client {
	return marketdata.NewClient(utils.MarketDataConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		TTLSeconds: ttl,
	}, utils.NewAppLogger())
}

func TestGetQuoteParsesGlobalQuote(t *testing.T) {
	var hits int64
	ts := quoteServer(t, &hits, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "187.4400", "07. latest trading day": "2024-06-03"}}`)
	defer ts.Close()

	c := newClient(ts.URL, 60)
	q, err := c.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Ticker)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("187.44")), "price = %s", q.Price)
	assert.Equal(t, "2024-06-03", q.AsOf.Format("2006-01-02"))
}

func TestGetQuoteUsesCacheWithinTTL(t *testing.T) {
	var hits int64
	ts := quoteServer(t, &hits, `{"Global Quote": {"05. price": "10.00"}}`)
	defer ts.Close()

	c := newClient(ts.URL, 60)
	ctx := context.Background()
	_, err := c.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	_, err = c.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestGetQuoteRateLimitNote(t *testing.T) {
	var hits int64
	ts := quoteServer(t, &hits, `{"Note": "API call frequency exceeded"}`)
	defer ts.Close()

	c := newClient(ts.URL, 60)
	_, err := c.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, marketdata.ErrRateLimited)
}

func TestGetQuoteUnknownTicker(t *testing.T) {
	var hits int64
	ts := quoteServer(t, &hits, `{}`)
	defer ts.Close()

	c := newClient(ts.URL, 60)
	_, err := c.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, marketdata.ErrQuoteNotFound)
}

func TestGetQuoteEmptyTicker(t *testing.T) {
	c := newClient("http://127.0.0.1:0", 60)
	_, err := c.GetQuote(context.Background(), "   ")
	assert.ErrorIs(t, err, marketdata.ErrQuoteNotFound)
}
