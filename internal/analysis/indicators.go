package analysis

import (
	"market-structure-engine/internal/marketdata"
)

// CalculateSMA calculates a Simple Moving Average over the last period
// closes. Returns 0 when there is not enough data.
func CalculateSMA(candles []marketdata.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// CalculateEMA calculates an Exponential Moving Average over the close
// series, seeded with the SMA of the first period values.
func CalculateEMA(candles []marketdata.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		if len(candles) > 0 {
			return candles[len(candles)-1].Close
		}
		return 0
	}

	ema := CalculateSMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema
}

// AverageVolume returns the mean volume over a candle slice.
func AverageVolume(candles []marketdata.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}

// AverageRange returns the mean high-low range over a candle slice.
func AverageRange(candles []marketdata.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.High - c.Low
	}
	return sum / float64(len(candles))
}
