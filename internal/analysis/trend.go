package analysis

import (
	"market-structure-engine/internal/marketdata"
)

// TrendBias buckets the signed trend score into a directional stance.
type TrendBias string

const (
	TrendBullish     TrendBias = "BULLISH"
	TrendWeakBullish TrendBias = "WEAK_BULLISH"
	TrendNeutral     TrendBias = "NEUTRAL"
	TrendWeakBearish TrendBias = "WEAK_BEARISH"
	TrendBearish     TrendBias = "BEARISH"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local price extremum. Swing points are derived on every
// analysis pass and never persisted.
type SwingPoint struct {
	Index int
	Price float64
	Kind  SwingKind
}

// TrendResult is the higher-timeframe trend verdict. RawScore is signed
// (positive bullish); Score is the unsigned magnitude used in the composite.
type TrendResult struct {
	Bias         TrendBias
	Score        int
	RawScore     int
	Details      []string
	EMA21        float64
	EMA50        float64
	CurrentPrice float64
}

// trendSwingLookback bounds how far back the HH/HL pattern scan reaches.
const trendSwingLookback = 50

// DetectTrend scores the higher-timeframe trend from EMA stacking and swing
// structure. The EMA stack contributes up to +-3, the HH/HL (or LH/LL)
// pattern +-2 more; the bias bucket follows the combined signed score.
func DetectTrend(candles []marketdata.Candle) TrendResult {
	if len(candles) < 50 {
		return TrendResult{Bias: TrendNeutral, Details: []string{"Insufficient data"}}
	}

	currentPrice := candles[len(candles)-1].Close
	ema21 := CalculateEMA(candles, 21)
	ema50 := CalculateEMA(candles, 50)
	ema200 := CalculateEMA(candles, minInt(200, len(candles)-1))

	score := 0
	var details []string

	switch {
	case currentPrice > ema21 && ema21 > ema50:
		if ema50 > ema200 {
			score += 3
			details = append(details, "Strong bullish EMA stack (21>50>200)")
		} else {
			score += 2
			details = append(details, "Bullish EMA stack (price>21>50)")
		}
	case currentPrice < ema21 && ema21 < ema50:
		if ema50 < ema200 {
			score -= 3
			details = append(details, "Strong bearish EMA stack (21<50<200)")
		} else {
			score -= 2
			details = append(details, "Bearish EMA stack (price<21<50)")
		}
	default:
		details = append(details, "EMA stack neutral/mixed")
	}

	swingHighs, swingLows := recentSwings(candles, trendSwingLookback)

	if len(swingHighs) >= 2 && len(swingLows) >= 2 {
		// Index 0 is the most recent swing.
		hh := swingHighs[0].Price > swingHighs[1].Price
		hl := swingLows[0].Price > swingLows[1].Price
		lh := swingHighs[0].Price < swingHighs[1].Price
		ll := swingLows[0].Price < swingLows[1].Price

		switch {
		case hh && hl:
			score += 2
			details = append(details, "HH/HL pattern (uptrend structure)")
		case lh && ll:
			score -= 2
			details = append(details, "LH/LL pattern (downtrend structure)")
		default:
			details = append(details, "Mixed swing structure")
		}
	}

	var bias TrendBias
	switch {
	case score >= 3:
		bias = TrendBullish
	case score <= -3:
		bias = TrendBearish
	case score >= 1:
		bias = TrendWeakBullish
	case score <= -1:
		bias = TrendWeakBearish
	default:
		bias = TrendNeutral
	}

	return TrendResult{
		Bias:         bias,
		Score:        absInt(score),
		RawScore:     score,
		Details:      details,
		EMA21:        ema21,
		EMA50:        ema50,
		CurrentPrice: currentPrice,
	}
}

// recentSwings scans backward from the newest candle for local extrema,
// comparing each bar against its immediate neighbors. Results are ordered
// most recent first.
func recentSwings(candles []marketdata.Candle, lookback int) (highs, lows []SwingPoint) {
	if lookback > len(candles)-2 {
		lookback = len(candles) - 2
	}
	for i := 2; i < lookback; i++ {
		idx := len(candles) - i - 1
		if idx <= 0 || idx >= len(candles)-1 {
			continue
		}
		if candles[idx].High > candles[idx-1].High && candles[idx].High > candles[idx+1].High {
			highs = append(highs, SwingPoint{Index: idx, Price: candles[idx].High, Kind: SwingHigh})
		}
		if candles[idx].Low < candles[idx-1].Low && candles[idx].Low < candles[idx+1].Low {
			lows = append(lows, SwingPoint{Index: idx, Price: candles[idx].Low, Kind: SwingLow})
		}
	}
	return highs, lows
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
