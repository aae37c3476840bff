package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/marketdata"
)

// Config holds every analysis threshold in one place so callers can tune the
// pipeline without touching detector code.
type Config struct {
	PrimaryTimeframe string
	PrimaryLimit     int
	DailyTimeframe   string
	DailyLimit       int

	MinCandles int
	EntryScore int

	SweepVolumeMultiplier float64
	VolumeDeltaRatio      float64
	CompressionRatio      float64

	StopLossPct   float64
	TakeProfitPct float64
}

// DefaultConfig returns the thresholds the engine ships with.
func DefaultConfig() Config {
	return Config{
		PrimaryTimeframe:      "4h",
		PrimaryLimit:          200,
		DailyTimeframe:        "1d",
		DailyLimit:            100,
		MinCandles:            50,
		EntryScore:            7,
		SweepVolumeMultiplier: 1.5,
		VolumeDeltaRatio:      1.3,
		CompressionRatio:      0.7,
		StopLossPct:           0.03,
		TakeProfitPct:         0.10,
	}
}

// CandleSource supplies OHLCV history. Satisfied by *marketdata.Store.
type CandleSource interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Candle, error)
}

// Result is the full output of one structure analysis pass. Score is the
// 0-10 composite; Direction is "LONG", "SHORT" or empty when no side won.
// HoldReason is set whenever the verdict gate did not pass.
type Result struct {
	Symbol     string
	Score      int
	Breakdown  []string
	Direction  string
	Reasoning  []string
	HoldReason string

	Trend        TrendResult
	DailyTrend   TrendResult
	Sweep        LiquiditySweep
	Shift        StructureShift
	Confluence   ConfluenceResult
	Gaps         []Gap
	Aligned      bool
	ChecksPassed int
	TotalChecks  int
}

// Directional reports whether the verdict gate passed and a side was chosen.
func (r *Result) Directional() bool {
	return r.HoldReason == "" && r.Direction != ""
}

type Analyzer struct {
	source CandleSource
	cfg    Config
	logger zerolog.Logger
}

func NewAnalyzer(source CandleSource, cfg Config, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		source: source,
		cfg:    cfg,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze runs the full structure pipeline on the primary timeframe, with the
// daily timeframe consulted only for the alignment bonus. A missing or short
// primary series yields a zero-score hold result rather than an error.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) *Result {
	result := &Result{Symbol: symbol}

	primary, err := a.source.Candles(ctx, symbol, a.cfg.PrimaryTimeframe, a.cfg.PrimaryLimit)
	if err != nil || len(primary) < a.cfg.MinCandles {
		if err != nil {
			a.logger.Warn().Err(err).Str("symbol", symbol).Msg("primary candles unavailable")
		}
		result.HoldReason = "Insufficient OHLCV data"
		result.Reasoning = []string{result.HoldReason}
		return result
	}

	// Daily data is best effort. Without it the alignment bonus simply
	// cannot fire.
	daily, err := a.source.Candles(ctx, symbol, a.cfg.DailyTimeframe, a.cfg.DailyLimit)
	if err != nil {
		a.logger.Debug().Err(err).Str("symbol", symbol).Msg("daily candles unavailable")
		daily = nil
	}

	result.Trend = DetectTrend(primary)
	result.DailyTrend = TrendResult{Bias: TrendNeutral}
	if len(daily) > 0 {
		result.DailyTrend = DetectTrend(daily)
	}
	result.Sweep = DetectLiquiditySweep(primary, a.cfg.SweepVolumeMultiplier)
	result.Shift = DetectStructureShift(primary, result.Trend)
	result.Confluence = CalculateConfluence(primary, a.cfg.VolumeDeltaRatio, a.cfg.CompressionRatio)

	// Unfilled gaps are carried as context only. They never move the score,
	// but downstream consumers can use them as entry zones.
	result.Gaps = UnfilledGaps(DetectGaps(primary))

	result.ChecksPassed, result.TotalChecks = a.countChecks(result)

	htfScore := minInt(3, result.Trend.Score)
	result.Score = htfScore
	result.Breakdown = append(result.Breakdown, fmt.Sprintf("HTF Trend: %d/3", htfScore))

	result.Score += result.Sweep.Score
	result.Breakdown = append(result.Breakdown, fmt.Sprintf("Liquidity Sweep: %d/2", result.Sweep.Score))

	result.Score += result.Shift.Score
	result.Breakdown = append(result.Breakdown, fmt.Sprintf("MSS/CHoCH: %d/2", result.Shift.Score))

	result.Score += result.Confluence.Score
	result.Breakdown = append(result.Breakdown, fmt.Sprintf("Confluence: %d/2", result.Confluence.Score))

	if result.DailyTrend.Bias == result.Trend.Bias {
		result.Aligned = true
		result.Score++
		result.Breakdown = append(result.Breakdown, "Multi-TF Alignment: +1")
	}

	// Structure shift overrides the trend when both speak.
	if result.Trend.RawScore > 0 {
		result.Direction = "LONG"
	} else if result.Trend.RawScore < 0 {
		result.Direction = "SHORT"
	}
	if result.Shift.Detected {
		if result.Shift.Kind.IsBullish() {
			result.Direction = "LONG"
		} else if result.Shift.Kind.IsBearish() {
			result.Direction = "SHORT"
		}
	}

	result.Reasoning = append(result.Reasoning, result.Trend.Details...)
	result.Reasoning = append(result.Reasoning, result.Sweep.Details...)
	result.Reasoning = append(result.Reasoning, result.Shift.Details...)
	result.Reasoning = append(result.Reasoning, result.Confluence.Details...)

	if result.Score < a.cfg.EntryScore || result.Direction == "" {
		reason := fmt.Sprintf("Score %d/10 (need %d+)", result.Score, a.cfg.EntryScore)
		if result.Direction == "" {
			reason = "No clear directional bias"
		}
		result.HoldReason = reason
	}

	a.logger.Debug().
		Str("symbol", symbol).
		Int("score", result.Score).
		Str("direction", result.Direction).
		Str("hold_reason", result.HoldReason).
		Msg("structure analysis complete")

	return result
}

// countChecks tallies the repeated per-factor checks reported alongside a
// signal. The blocks mirror the factor weighting: 20 trend, 15 daily trend,
// 20 sweep, 25 shift, 20 confluence.
func (a *Analyzer) countChecks(r *Result) (passed, total int) {
	blocks := []struct {
		n  int
		ok bool
	}{
		{20, r.Trend.Score >= 2},
		{15, r.DailyTrend.Score >= 2},
		{20, r.Sweep.Detected},
		{25, r.Shift.Detected},
		{20, r.Confluence.Score >= 1},
	}
	for _, b := range blocks {
		total += b.n
		if b.ok {
			passed += b.n
		}
	}
	return passed, total
}
