package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockr/internal/utils"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
	ErrRateLimited   = errors.New("quote provider rate limited")
)

// Quote is the latest known price for a ticker.
type Quote struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	AsOf      time.Time       `json:"as_of"`
	FetchedAt time.Time       `json:"-"`
}

// Client fetches quotes from an Alpha Vantage compatible GLOBAL_QUOTE
// endpoint and caches them for a configurable TTL. Quotes are display-only;
// nothing in the ledger depends on them.
type Client struct {
	apiKey  string
	baseURL string
	ttl     time.Duration
	http    *http.Client
	logger  utils.Logger

	mu    sync.RWMutex
	cache map[string]Quote
}

func NewClient(cfg utils.MarketDataConfig, logger utils.Logger) *Client {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     ttl,
		http:    &http.Client{Timeout: 8 * time.Second},
		logger:  logger,
		cache:   make(map[string]Quote),
	}
}

// GetQuote returns the cached quote for the ticker, fetching a fresh one when
// the cache entry is missing or older than the TTL.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, ErrQuoteNotFound
	}

	c.mu.RLock()
	q, ok := c.cache[ticker]
	c.mu.RUnlock()
	if ok && time.Since(q.FetchedAt) < c.ttl {
		return &q, nil
	}

	fresh, err := c.fetch(ctx, ticker)
	if err != nil {
		// A stale quote beats no quote when the provider is throttling.
		if ok && errors.Is(err, ErrRateLimited) {
			return &q, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cache[ticker] = *fresh
	c.mu.Unlock()
	return fresh, nil
}

// Refresh warms the cache for the given tickers, logging failures instead of
// propagating them. Used by the periodic refresh job.
func (c *Client) Refresh(ctx context.Context, tickers []string) {
	for _, ticker := range tickers {
		if _, err := c.GetQuote(ctx, ticker); err != nil {
			c.logger.Debug("Quote refresh for %s failed: %v", ticker, err)
		}
	}
}

func (c *Client) fetch(ctx context.Context, ticker string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		c.baseURL, url.QueryEscape(ticker), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("User-Agent", "stockr/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote provider returned status %d", resp.StatusCode)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	// The provider signals throttling with a 200 and a Note/Information body.
	if _, ok := raw["Note"]; ok {
		return nil, ErrRateLimited
	}
	if _, ok := raw["Information"]; ok {
		return nil, ErrRateLimited
	}

	var gq struct {
		Price         string `json:"05. price"`
		LatestTrading string `json:"07. latest trading day"`
	}
	body, ok := raw["Global Quote"]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	if err := json.Unmarshal(body, &gq); err != nil {
		return nil, fmt.Errorf("failed to decode quote payload: %w", err)
	}

	price, err := decimal.NewFromString(gq.Price)
	if err != nil || !price.IsPositive() {
		return nil, ErrQuoteNotFound
	}

	asOf := time.Now().UTC()
	if gq.LatestTrading != "" {
		if t, err := time.Parse("2006-01-02", gq.LatestTrading); err == nil {
			asOf = t
		}
	}

	return &Quote{
		Ticker:    ticker,
		Price:     price,
		AsOf:      asOf,
		FetchedAt: time.Now().UTC(),
	}, nil
}
