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

// BinanceClient fetches klines from the Binance spot REST API.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinanceClient creates a Binance market data client. An empty baseURL
// defaults to the public API.
func NewBinanceClient(baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &BinanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *BinanceClient) Name() string {
	return "binance"
}

// Fetch retrieves candlestick data for a symbol. The symbol is the bare
// asset name (e.g. "BTC"); the USDT pair is derived here.
func (c *BinanceClient) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol+"USDT")
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

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

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	candles := make([]Candle, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 6 {
			return nil, fmt.Errorf("malformed kline row at index %d", i)
		}
		candles[i] = Candle{
			OpenTime: int64(asFloat(raw[0])),
			Open:     asFloat(raw[1]),
			High:     asFloat(raw[2]),
			Low:      asFloat(raw[3]),
			Close:    asFloat(raw[4]),
			Volume:   asFloat(raw[5]),
		}
	}

	return candles, nil
}

func asFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
