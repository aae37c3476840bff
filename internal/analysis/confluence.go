package analysis

import (
	"market-structure-engine/internal/marketdata"
)

// ConfluenceResult carries the secondary corroborating factors: volume
// expansion and volatility compression. Each contributes one point.
type ConfluenceResult struct {
	Score   int
	Details []string
}

// CalculateConfluence compares the trailing 10 candles against the 10 before
// them. volumeDeltaRatio is the expansion factor for the volume point (e.g.
// 1.3); compressionRatio is the contraction factor for the volatility point
// (e.g. 0.7).
func CalculateConfluence(candles []marketdata.Candle, volumeDeltaRatio, compressionRatio float64) ConfluenceResult {
	if len(candles) < 20 {
		return ConfluenceResult{}
	}

	recent := candles[len(candles)-10:]
	prior := candles[len(candles)-20 : len(candles)-10]

	result := ConfluenceResult{}

	priorVolume := AverageVolume(prior)
	if priorVolume > 0 && AverageVolume(recent) > priorVolume*volumeDeltaRatio {
		result.Score++
		result.Details = append(result.Details, "Volume increasing - confirming momentum")
	}

	if AverageRange(recent) < AverageRange(prior)*compressionRatio {
		result.Score++
		result.Details = append(result.Details, "Volatility compression - breakout imminent")
	}

	return result
}
