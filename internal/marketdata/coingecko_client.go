package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// coingeckoIDs maps common ticker symbols to CoinGecko coin IDs. Symbols not
// listed here fall back to the lowercased symbol.
var coingeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"UNI":   "uniswap",
	"AAVE":  "aave",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"LTC":   "litecoin",
	"ATOM":  "cosmos",
}

// CoinGeckoClient is a last-resort OHLC provider. CoinGecko's OHLC endpoint
// carries no volume data, so volume-based sub-scores degrade when this
// provider serves a request.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGeckoClient creates a CoinGecko market data client.
func NewCoinGeckoClient(baseURL string) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *CoinGeckoClient) Name() string {
	return "coingecko"
}

// Fetch retrieves OHLC data. The limit parameter is advisory only; CoinGecko
// sizes its response by day range.
func (c *CoinGeckoClient) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	id, ok := coingeckoIDs[strings.ToUpper(symbol)]
	if !ok {
		id = strings.ToLower(symbol)
	}

	days := 90
	if timeframe == "15m" || timeframe == "1h" || timeframe == "4h" {
		days = 30
	}

	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/ohlc?vs_currency=usd&days=%d", c.baseURL, id, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching ohlc: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("error parsing ohlc: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, Candle{
			OpenTime: int64(row[0]),
			Open:     row[1],
			High:     row[2],
			Low:      row[3],
			Close:    row[4],
			Volume:   0,
		})
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}
