// Package bybit provides access to the Bybit v5 public market-data API.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/perpscope/perpscope/internal/logger"
	"github.com/perpscope/perpscope/internal/models"
)

// ClientConfig tunes retry and rate-limit behavior.
type ClientConfig struct {
	MaxRetries       int
	RetryDelayBase   time.Duration
	MaxRequests      int
	RateLimitWindow  time.Duration
	RateSafetyFactor float64
}

// Client provides access to Bybit market-data endpoints.
type Client struct {
	baseURL        string
	category       string
	httpClient     *http.Client
	limiter        *rateLimiter
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Bybit market-data client for one product category.
func NewClient(baseURL, category string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 600
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = 5 * time.Second
	}
	if cfg.RateSafetyFactor <= 0 || cfg.RateSafetyFactor > 1 {
		cfg.RateSafetyFactor = 0.8
	}
	return &Client{
		baseURL:  baseURL,
		category: category,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:        newRateLimiter(cfg.MaxRequests, cfg.RateLimitWindow, cfg.RateSafetyFactor),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// apiResponse is the Bybit v5 envelope; Result decoding is per-endpoint.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type tickerRow struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
	Price24hPcnt string `json:"price24hPcnt"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
}

type tradeRow struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
	Time  string `json:"time"`
}

type instrumentRow struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	BaseCoin  string `json:"baseCoin"`
	QuoteCoin string `json:"quoteCoin"`
}

// GetTickers fetches the full ticker list for the client's category.
// Rows with a missing or non-numeric required field are logged and
// dropped; the rest of the batch is kept.
func (c *Client) GetTickers(ctx context.Context) ([]models.Ticker, error) {
	result, err := c.fetch(ctx, "/v5/market/tickers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickers: %w", err)
	}

	var list struct {
		List []tickerRow `json:"list"`
	}
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("failed to decode tickers: %w", err)
	}

	tickers := make([]models.Ticker, 0, len(list.List))
	for _, row := range list.List {
		t, err := parseTickerRow(row)
		if err != nil {
			logger.Warn("Dropping malformed ticker row for %q: %v", row.Symbol, err)
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// GetRecentTrades fetches up to limit recent trades for one symbol.
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	result, err := c.fetch(ctx, "/v5/market/recent-trade", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent trades for %s: %w", symbol, err)
	}

	var list struct {
		List []tradeRow `json:"list"`
	}
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("failed to decode recent trades: %w", err)
	}

	trades := make([]models.Trade, 0, len(list.List))
	for _, row := range list.List {
		tr, err := parseTradeRow(row)
		if err != nil {
			logger.Warn("Dropping malformed trade row for %s: %v", symbol, err)
			continue
		}
		trades = append(trades, tr)
	}
	return trades, nil
}

// GetInstruments fetches contract metadata for the client's category.
func (c *Client) GetInstruments(ctx context.Context) ([]models.Instrument, error) {
	result, err := c.fetch(ctx, "/v5/market/instruments-info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instruments: %w", err)
	}

	var list struct {
		List []instrumentRow `json:"list"`
	}
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("failed to decode instruments: %w", err)
	}

	instruments := make([]models.Instrument, 0, len(list.List))
	for _, row := range list.List {
		if row.Symbol == "" {
			continue
		}
		instruments = append(instruments, models.Instrument{
			Symbol:    row.Symbol,
			Status:    row.Status,
			BaseCoin:  row.BaseCoin,
			QuoteCoin: row.QuoteCoin,
		})
	}
	return instruments, nil
}

// fetch performs one rate-limited GET with retry and unwraps the envelope.
func (c *Client) fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("category", c.category)
	u.RawQuery = params.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}
	return envelope.Result, nil
}

// doRequest performs an HTTP request with linear-backoff retry on
// transport errors and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if !sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func parseTickerRow(row tickerRow) (models.Ticker, error) {
	if row.Symbol == "" {
		return models.Ticker{}, fmt.Errorf("missing symbol")
	}
	lastPrice, err := strconv.ParseFloat(row.LastPrice, 64)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("invalid lastPrice %q", row.LastPrice)
	}
	volume, err := strconv.ParseFloat(row.Volume24h, 64)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("invalid volume24h %q", row.Volume24h)
	}
	return models.Ticker{
		Symbol:       row.Symbol,
		LastPrice:    lastPrice,
		Volume24h:    volume,
		Turnover24h:  parseOptional(row.Turnover24h),
		Price24hPcnt: parseOptional(row.Price24hPcnt),
		HighPrice24h: parseOptional(row.HighPrice24h),
		LowPrice24h:  parseOptional(row.LowPrice24h),
	}, nil
}

func parseTradeRow(row tradeRow) (models.Trade, error) {
	price, err := strconv.ParseFloat(row.Price, 64)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid price %q", row.Price)
	}
	size, err := strconv.ParseFloat(row.Size, 64)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid size %q", row.Size)
	}
	side := models.Side(row.Side)
	if side != models.SideBuy && side != models.SideSell {
		return models.Trade{}, fmt.Errorf("invalid side %q", row.Side)
	}
	ts, err := strconv.ParseInt(row.Time, 10, 64)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid time %q", row.Time)
	}
	return models.Trade{Price: price, Size: size, Side: side, Time: ts}, nil
}

// parseOptional decodes best-effort numeric fields, treating anything
// unparsable as zero.
func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
