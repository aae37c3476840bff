package analysis

import (
	"time"

	"market-structure-engine/internal/marketdata"
)

// GapKind distinguishes the direction of a fair value gap.
type GapKind string

const (
	GapBullish GapKind = "bullish"
	GapBearish GapKind = "bearish"
)

// Gap is a fair value gap: a price void left when the middle candle of a
// three-candle run moves so fast that candle one and candle three never
// overlap. Price tends to revisit these zones.
type Gap struct {
	Kind        GapKind   `json:"kind"`
	Top         float64   `json:"top"`
	Bottom      float64   `json:"bottom"`
	CandleIndex int       `json:"candle_index"`
	CreatedAt   time.Time `json:"created_at"`
	Filled      bool      `json:"filled"`
}

// minGapPercent filters out noise gaps below this size in percent.
const minGapPercent = 0.1

// DetectGaps scans a candle series for fair value gaps. A bullish gap exists
// where candle one's high sits below candle three's low; bearish is the
// mirror. Gaps already revisited by a later wick are marked filled.
func DetectGaps(candles []marketdata.Candle) []Gap {
	if len(candles) < 3 {
		return nil
	}

	var gaps []Gap
	for i := 0; i < len(candles)-2; i++ {
		c1, c2, c3 := candles[i], candles[i+1], candles[i+2]

		if c1.High < c3.Low {
			size := (c3.Low - c1.High) / c1.High * 100
			if size >= minGapPercent {
				gaps = append(gaps, Gap{
					Kind:        GapBullish,
					Top:         c3.Low,
					Bottom:      c1.High,
					CandleIndex: i,
					CreatedAt:   time.UnixMilli(c2.OpenTime),
				})
			}
		}

		if c1.Low > c3.High {
			size := (c1.Low - c3.High) / c3.High * 100
			if size >= minGapPercent {
				gaps = append(gaps, Gap{
					Kind:        GapBearish,
					Top:         c1.Low,
					Bottom:      c3.High,
					CandleIndex: i,
					CreatedAt:   time.UnixMilli(c2.OpenTime),
				})
			}
		}
	}

	markFilled(gaps, candles)
	return gaps
}

// markFilled flags gaps whose zone a later candle wicked back into. A
// bullish gap fills from above (a low dipping into the zone), bearish from
// below (a high poking into it).
func markFilled(gaps []Gap, candles []marketdata.Candle) {
	for g := range gaps {
		gap := &gaps[g]
		for i := gap.CandleIndex + 3; i < len(candles); i++ {
			c := candles[i]
			if gap.Kind == GapBullish && c.Low <= gap.Top && c.Low >= gap.Bottom {
				gap.Filled = true
				break
			}
			if gap.Kind == GapBearish && c.High >= gap.Bottom && c.High <= gap.Top {
				gap.Filled = true
				break
			}
		}
	}
}

// UnfilledGaps filters to gaps price has not yet revisited.
func UnfilledGaps(gaps []Gap) []Gap {
	var open []Gap
	for _, g := range gaps {
		if !g.Filled {
			open = append(open, g)
		}
	}
	return open
}

// PriceInGap reports whether price sits inside the gap zone.
func PriceInGap(price float64, gap Gap) bool {
	return price >= gap.Bottom && price <= gap.Top
}
