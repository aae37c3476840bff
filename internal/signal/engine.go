package signal

import (
	"context"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/analysis"
	"market-structure-engine/internal/metrics"
	"market-structure-engine/internal/notify"
	"market-structure-engine/internal/trades"
)

// StructureAnalyzer runs the market structure pipeline. Satisfied by
// *analysis.Analyzer.
type StructureAnalyzer interface {
	Analyze(ctx context.Context, symbol string) *analysis.Result
}

// Engine ties analysis, bias persistence, the trade gate and notification
// tracking into the single GetSignal entry point.
type Engine struct {
	analyzer  StructureAnalyzer
	biases    *BiasStore
	tracker   *trades.Tracker
	debouncer *notify.Debouncer

	entryScore    int
	stopLossPct   float64
	takeProfitPct float64
	logger        zerolog.Logger
}

func NewEngine(analyzer StructureAnalyzer, biases *BiasStore, tracker *trades.Tracker, debouncer *notify.Debouncer, cfg analysis.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		analyzer:      analyzer,
		biases:        biases,
		tracker:       tracker,
		debouncer:     debouncer,
		entryScore:    cfg.EntryScore,
		stopLossPct:   cfg.StopLossPct,
		takeProfitPct: cfg.TakeProfitPct,
		logger:        logger.With().Str("component", "signal_engine").Logger(),
	}
}

// GetSignal evaluates symbol at the given live price and returns the signal
// to display. The whole evaluation is atomic per symbol; distinct symbols do
// not contend.
func (e *Engine) GetSignal(ctx context.Context, symbol string, currentPrice, priceChange24h float64) *Signal {
	unlock := e.biases.Lock(symbol)
	defer unlock()

	if ok, reason := e.tracker.ShouldIssueSignal(ctx, symbol, currentPrice); !ok {
		sig := NewHoldSignal(symbol, currentPrice, reason, 0, nil)
		metrics.SignalsIssued.WithLabelValues(sig.Action).Inc()
		return sig
	}

	fresh := e.analyzer.Analyze(ctx, symbol)

	if bias := e.biases.Get(symbol); bias != nil {
		maintain, reason := e.biases.ShouldMaintain(symbol, currentPrice, fresh)
		if maintain {
			cached := *bias.Signal
			cached.EntryPrice = currentPrice
			cached.SignalType = TypePersistent
			cached.PersistenceReason = reason

			e.debouncer.TrackDisplayed(symbol, cached.Action, currentPrice)
			metrics.SignalsIssued.WithLabelValues(cached.Action).Inc()
			return &cached
		}
		// A just-cleared bias falls through: a fresh directional verdict
		// may originate the opposite stance in this same call.
		e.logger.Info().
			Str("symbol", symbol).
			Str("reason", reason).
			Float64("price", currentPrice).
			Msg("bias invalidated")
	}

	var sig *Signal
	if fresh.Directional() {
		sig = NewDirectionalSignal(fresh, currentPrice, e.stopLossPct, e.takeProfitPct)
		e.biases.Set(symbol, fresh.Direction, sig)
	} else {
		sig = NewHoldSignal(symbol, currentPrice, fresh.HoldReason, fresh.Score, fresh.Breakdown)
	}

	e.debouncer.TrackDisplayed(symbol, sig.Action, currentPrice)
	metrics.SignalsIssued.WithLabelValues(sig.Action).Inc()

	e.logger.Debug().
		Str("symbol", symbol).
		Str("action", sig.Action).
		Int("score", sig.Score).
		Float64("change_24h", priceChange24h).
		Msg("signal issued")

	return sig
}

// ClearBias drops the held bias for symbol. Returns whether one existed.
func (e *Engine) ClearBias(symbol string) bool {
	unlock := e.biases.Lock(symbol)
	defer unlock()
	return e.biases.Clear(symbol)
}

// ActiveBiases returns a copy of all held biases.
func (e *Engine) ActiveBiases() map[string]*Bias {
	return e.biases.All()
}
