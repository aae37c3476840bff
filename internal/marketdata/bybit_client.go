package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// bybitIntervals maps internal timeframe strings to Bybit v5 kline intervals.
var bybitIntervals = map[string]string{
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
}

// BybitClient fetches klines from the Bybit v5 market API.
type BybitClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBybitClient creates a Bybit market data client. An empty baseURL
// defaults to the public API.
func NewBybitClient(baseURL string) *BybitClient {
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	return &BybitClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *BybitClient) Name() string {
	return "bybit"
}

// Fetch retrieves candlestick data. Bybit returns rows newest first; the
// result is reversed to the oldest-first ordering the rest of the engine
// expects.
func (c *BybitClient) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol+"USDT")
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/v5/market/kline?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var payload struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}
	if payload.RetCode != 0 {
		return nil, fmt.Errorf("bybit error %d: %s", payload.RetCode, payload.RetMsg)
	}

	rows := payload.Result.List
	candles := make([]Candle, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("malformed kline row at index %d", i)
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		// Newest first on the wire, oldest first in memory.
		candles[len(rows)-1-i] = Candle{
			OpenTime: ts,
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
		}
	}

	return candles, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
