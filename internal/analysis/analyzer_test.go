package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/marketdata"
)

type fakeSource struct {
	byTimeframe map[string][]marketdata.Candle
	err         error
}

func (f *fakeSource) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	candles, ok := f.byTimeframe[timeframe]
	if !ok {
		return nil, marketdata.ErrUnavailable
	}
	return candles, nil
}

// setupPrimary builds an uptrend into a consolidation shelf with a volume
// backed sweep of the shelf high, so trend, sweep and confluence all score.
func setupPrimary() []marketdata.Candle {
	candles := make([]marketdata.Candle, 120)
	for i := 0; i < 90; i++ {
		mid := 100 + 0.5*float64(i)
		c := marketdata.Candle{
			OpenTime: int64(i) * 14_400_000,
			Open:     mid,
			High:     mid + 1,
			Low:      mid - 1,
			Close:    mid,
			Volume:   100,
		}
		if i%7 == 3 {
			c.High = mid + 4
		}
		if i%7 == 0 {
			c.Low = mid - 4
		}
		candles[i] = c
	}
	for i := 90; i < 110; i++ {
		candles[i] = marketdata.Candle{
			OpenTime: int64(i) * 14_400_000,
			Open:     145, High: 146.5, Low: 143.5, Close: 145, Volume: 100,
		}
	}
	for i := 110; i < 120; i++ {
		candles[i] = marketdata.Candle{
			OpenTime: int64(i) * 14_400_000,
			Open:     145.2, High: 145.8, Low: 144.8, Close: 145.5, Volume: 200,
		}
	}
	// The sweep: wick through the shelf high, close back inside, on volume.
	candles[114].High = 147.2
	candles[114].Low = 145.0
	candles[114].Close = 145.9
	candles[114].Volume = 300
	return candles
}

func flatCandles(n int) []marketdata.Candle {
	candles := make([]marketdata.Candle, n)
	for i := range candles {
		candles[i] = marketdata.Candle{
			OpenTime: int64(i) * 14_400_000,
			Open:     100, High: 101, Low: 99, Close: 100, Volume: 100,
		}
	}
	return candles
}

func TestAnalyzeBullishSetup(t *testing.T) {
	source := &fakeSource{byTimeframe: map[string][]marketdata.Candle{
		"4h": setupPrimary(),
		"1d": zigzagTrend(100, 50, 0.5),
	}}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())

	result := analyzer.Analyze(context.Background(), "BTC")

	if !result.Directional() {
		t.Fatalf("Expected a directional result, got hold: %s (score %d)", result.HoldReason, result.Score)
	}
	if result.Direction != "LONG" {
		t.Errorf("Expected LONG, got %s", result.Direction)
	}
	if result.Score < 7 {
		t.Errorf("Expected score >= 7, got %d", result.Score)
	}
	if !result.Aligned {
		t.Error("Daily and 4h trends both bullish, alignment bonus should apply")
	}
	if len(result.Breakdown) != 5 {
		t.Errorf("Expected 5 breakdown entries with alignment, got %d: %v", len(result.Breakdown), result.Breakdown)
	}
	if len(result.Reasoning) == 0 {
		t.Error("Directional result should carry reasoning")
	}
}

func TestAnalyzeFlatMarketHolds(t *testing.T) {
	source := &fakeSource{byTimeframe: map[string][]marketdata.Candle{
		"4h": flatCandles(120),
		"1d": flatCandles(100),
	}}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())

	result := analyzer.Analyze(context.Background(), "ETH")

	if result.Directional() {
		t.Fatal("Flat market should not produce a directional result")
	}
	if result.HoldReason != "No clear directional bias" {
		t.Errorf("Expected no-direction hold reason, got %q", result.HoldReason)
	}
	if result.Score > 2 {
		t.Errorf("Flat market score should be near zero, got %d", result.Score)
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	source := &fakeSource{byTimeframe: map[string][]marketdata.Candle{
		"4h": flatCandles(30),
	}}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())

	result := analyzer.Analyze(context.Background(), "SOL")

	if result.HoldReason != "Insufficient OHLCV data" {
		t.Errorf("Expected insufficient data hold, got %q", result.HoldReason)
	}
	if result.Score != 0 {
		t.Errorf("Expected score 0, got %d", result.Score)
	}
}

func TestAnalyzeSourceUnavailable(t *testing.T) {
	source := &fakeSource{err: errors.New("all providers down")}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())

	result := analyzer.Analyze(context.Background(), "BTC")

	if result.Directional() {
		t.Fatal("Unavailable data should not produce a directional result")
	}
	if result.HoldReason != "Insufficient OHLCV data" {
		t.Errorf("Expected insufficient data hold, got %q", result.HoldReason)
	}
}

func TestAnalyzeMissingDailyStillWorks(t *testing.T) {
	source := &fakeSource{byTimeframe: map[string][]marketdata.Candle{
		"4h": setupPrimary(),
	}}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())

	result := analyzer.Analyze(context.Background(), "BTC")

	if result.Aligned {
		t.Error("No daily data means no alignment bonus")
	}
	// Score drops by exactly the alignment point.
	if result.Score < 6 {
		t.Errorf("Expected score >= 6 without alignment, got %d", result.Score)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	source := &fakeSource{byTimeframe: map[string][]marketdata.Candle{
		"4h": setupPrimary(),
		"1d": zigzagTrend(100, 50, 0.5),
	}}
	analyzer := NewAnalyzer(source, DefaultConfig(), zerolog.Nop())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.Analyze(ctx, "BTC")
	}
}
