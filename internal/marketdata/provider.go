package marketdata

import (
	"context"
	"errors"
)

// Candle represents a single OHLCV candlestick. Candles are immutable once
// returned by a provider and are ordered oldest to newest.
type Candle struct {
	OpenTime int64   `json:"open_time"` // milliseconds since epoch
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Provider fetches OHLCV candles from an upstream market data API.
// All providers return the same Candle shape; callers never depend on
// which concrete provider served a request.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// ErrUnavailable is returned when no provider returned usable candles and
// neither the memory cache nor the durable snapshot has data for the key.
var ErrUnavailable = errors.New("market data unavailable")

// minUsableCandles is the smallest series a provider response must contain
// to be accepted; shorter responses fall through to the next provider.
const minUsableCandles = 10
