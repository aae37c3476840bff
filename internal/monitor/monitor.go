// Package monitor runs periodic structure sweeps over a watchlist so bias
// flips surface without anyone polling the API.
package monitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"market-structure-engine/internal/signal"
)

const sweepTimeout = 2 * time.Minute

// PriceSource yields the latest traded price and 24h change for a symbol.
// The candle store satisfies this through LatestPrice.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (price, change24h float64, err error)
}

type Monitor struct {
	engine   *signal.Engine
	prices   PriceSource
	symbols  []string
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
	onSweep  func(symbol string, sig *signal.Signal)
}

func NewMonitor(engine *signal.Engine, prices PriceSource, symbols []string, schedule string, logger zerolog.Logger) *Monitor {
	return &Monitor{
		engine:   engine,
		prices:   prices,
		symbols:  symbols,
		schedule: schedule,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// OnSweep registers a callback invoked for every signal produced by a sweep.
func (m *Monitor) OnSweep(fn func(symbol string, sig *signal.Signal)) {
	m.onSweep = fn
}

func (m *Monitor) Start() error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, m.sweep); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info().Str("schedule", m.schedule).Strs("symbols", m.symbols).Msg("monitor started")
	return nil
}

func (m *Monitor) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
	}
	m.logger.Info().Msg("monitor stopped")
}

func (m *Monitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	for _, symbol := range m.symbols {
		price, change, err := m.prices.LatestPrice(ctx, symbol)
		if err != nil {
			m.logger.Warn().Err(err).Str("symbol", symbol).Msg("price lookup failed, skipping")
			continue
		}

		sig := m.engine.GetSignal(ctx, symbol, price, change)
		m.logger.Info().
			Str("symbol", symbol).
			Str("action", sig.Action).
			Int("score", sig.Score).
			Msg("sweep complete")

		if m.onSweep != nil {
			m.onSweep(symbol, sig)
		}
	}
}
