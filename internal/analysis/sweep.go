package analysis

import (
	"market-structure-engine/internal/marketdata"
)

// SweepKind names which side of the range was swept.
type SweepKind string

const (
	HighSweep SweepKind = "HIGH_SWEEP"
	LowSweep  SweepKind = "LOW_SWEEP"
)

// LiquiditySweep reports a wick excursion beyond the prior range that closed
// back inside it. Score is 2 with volume confirmation, 1 without, 0 when no
// sweep was found.
type LiquiditySweep struct {
	Detected  bool
	Kind      SweepKind
	Score     int
	Details   []string
	PriorHigh float64
	PriorLow  float64
}

// DetectLiquiditySweep scans the most recent 10 candles for a wick through
// the prior 20-candle high or low with a close back inside the range.
// volumeMultiplier is the factor over the prior-window average volume needed
// for full confirmation.
func DetectLiquiditySweep(candles []marketdata.Candle, volumeMultiplier float64) LiquiditySweep {
	if len(candles) < 20 {
		return LiquiditySweep{Details: []string{"Insufficient data"}}
	}

	recent := candles[len(candles)-10:]
	var prior []marketdata.Candle
	if len(candles) >= 30 {
		prior = candles[len(candles)-30 : len(candles)-10]
	} else {
		prior = candles[:len(candles)-10]
	}
	if len(prior) == 0 {
		return LiquiditySweep{Details: []string{"No prior data"}}
	}

	priorHigh := prior[0].High
	priorLow := prior[0].Low
	for _, c := range prior {
		if c.High > priorHigh {
			priorHigh = c.High
		}
		if c.Low < priorLow {
			priorLow = c.Low
		}
	}

	// Providers without volume data (CoinGecko) report zero volume; treat
	// the average as 1 so the comparison degrades to "no confirmation"
	// instead of dividing the signal away.
	avgVolume := 1.0
	if prior[0].Volume > 0 {
		avgVolume = AverageVolume(prior)
	}

	result := LiquiditySweep{PriorHigh: priorHigh, PriorLow: priorLow}

	for _, c := range recent {
		if c.High > priorHigh && c.Close < priorHigh {
			result.Detected = true
			result.Kind = HighSweep
			if c.Volume > avgVolume*volumeMultiplier {
				result.Score = 2
				result.Details = append(result.Details, "High liquidity sweep with volume confirmation")
			} else {
				result.Score = 1
				result.Details = append(result.Details, "High liquidity sweep (no volume confirm)")
			}
			return result
		}
		if c.Low < priorLow && c.Close > priorLow {
			result.Detected = true
			result.Kind = LowSweep
			if c.Volume > avgVolume*volumeMultiplier {
				result.Score = 2
				result.Details = append(result.Details, "Low liquidity sweep with volume confirmation")
			} else {
				result.Score = 1
				result.Details = append(result.Details, "Low liquidity sweep (no volume confirm)")
			}
			return result
		}
	}

	return result
}
