package analysis

import (
	"fmt"

	"market-structure-engine/internal/marketdata"
)

// ShiftKind names the detected structure break.
type ShiftKind string

const (
	BullishMSS   ShiftKind = "BULLISH_MSS"
	BearishMSS   ShiftKind = "BEARISH_MSS"
	BullishCHoCH ShiftKind = "BULLISH_CHOCH"
	BearishCHoCH ShiftKind = "BEARISH_CHOCH"
)

// IsBullish reports whether the shift kind points up.
func (k ShiftKind) IsBullish() bool {
	return k == BullishMSS || k == BullishCHoCH
}

// IsBearish reports whether the shift kind points down.
func (k ShiftKind) IsBearish() bool {
	return k == BearishMSS || k == BearishCHoCH
}

// StructureShift reports a market structure shift (price breaking a prior
// opposing swing point) or a change of character (the latest swing itself
// reversing against the prevailing trend).
type StructureShift struct {
	Detected bool
	Kind     ShiftKind
	Score    int
	Details  []string
}

// DetectStructureShift looks for an MSS against the prevailing trend first,
// then falls back to the softer CHoCH variant. Swing points here use a
// 2-bar lookback so only decisive extrema count.
func DetectStructureShift(candles []marketdata.Candle, trend TrendResult) StructureShift {
	if len(candles) < 30 {
		return StructureShift{Details: []string{"Insufficient data"}}
	}

	swingHighs, swingLows := confirmedSwings(candles)
	if len(swingHighs) < 2 || len(swingLows) < 2 {
		return StructureShift{Details: []string{"Not enough swing points"}}
	}

	// Oldest first; keep the last three of each side.
	if len(swingHighs) > 3 {
		swingHighs = swingHighs[len(swingHighs)-3:]
	}
	if len(swingLows) > 3 {
		swingLows = swingLows[len(swingLows)-3:]
	}

	currentPrice := candles[len(candles)-1].Close

	if trend.RawScore < 0 {
		lastLowerHigh := swingHighs[len(swingHighs)-1].Price
		if currentPrice > lastLowerHigh {
			return StructureShift{
				Detected: true,
				Kind:     BullishMSS,
				Score:    2,
				Details:  []string{fmt.Sprintf("Bullish MSS: Price broke above LH at %.4f", lastLowerHigh)},
			}
		}
	}

	if trend.RawScore > 0 {
		lastHigherLow := swingLows[len(swingLows)-1].Price
		if currentPrice < lastHigherLow {
			return StructureShift{
				Detected: true,
				Kind:     BearishMSS,
				Score:    2,
				Details:  []string{fmt.Sprintf("Bearish MSS: Price broke below HL at %.4f", lastHigherLow)},
			}
		}
	}

	prevLow := swingLows[len(swingLows)-2].Price
	currLow := swingLows[len(swingLows)-1].Price
	if currLow < prevLow && trend.RawScore > 0 {
		return StructureShift{
			Detected: true,
			Kind:     BearishCHoCH,
			Score:    2,
			Details:  []string{"Bearish CHoCH: HL broken, now LL"},
		}
	}

	prevHigh := swingHighs[len(swingHighs)-2].Price
	currHigh := swingHighs[len(swingHighs)-1].Price
	if currHigh > prevHigh && trend.RawScore < 0 {
		return StructureShift{
			Detected: true,
			Kind:     BullishCHoCH,
			Score:    2,
			Details:  []string{"Bullish CHoCH: LH broken, now HH"},
		}
	}

	return StructureShift{}
}

// confirmedSwings finds swing points over the full window using a 2-bar
// backward and 1-bar forward comparison. Results are ordered oldest first.
func confirmedSwings(candles []marketdata.Candle) (highs, lows []SwingPoint) {
	for i := 2; i < len(candles)-1; i++ {
		h := candles[i].High
		if h > candles[i-1].High && h > candles[i-2].High && h > candles[i+1].High {
			highs = append(highs, SwingPoint{Index: i, Price: h, Kind: SwingHigh})
		}
		l := candles[i].Low
		if l < candles[i-1].Low && l < candles[i-2].Low && l < candles[i+1].Low {
			lows = append(lows, SwingPoint{Index: i, Price: l, Kind: SwingLow})
		}
	}
	return highs, lows
}
