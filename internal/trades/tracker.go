package trades

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-structure-engine/internal/metrics"
)

// DefaultMaxDuration is how long a trade may stay open before it is closed
// at market.
const DefaultMaxDuration = 24 * time.Hour

// Completion statuses.
const (
	StatusTPHit   = "TP_HIT"
	StatusSLHit   = "SL_HIT"
	StatusExpired = "EXPIRED"
)

// Trade is an open position being tracked. One per symbol; while it exists
// no new signal originates for that symbol.
type Trade struct {
	ID          string        `json:"id"`
	Symbol      string        `json:"symbol"`
	Action      string        `json:"action"`
	EntryPrice  float64       `json:"entry_price"`
	StopLoss    float64       `json:"stop_loss"`
	TakeProfit  float64       `json:"take_profit"`
	Leverage    int           `json:"leverage"`
	Confidence  float64       `json:"confidence"`
	EntryTime   time.Time     `json:"entry_time"`
	Status      string        `json:"status"`
	MaxDuration time.Duration `json:"-"`
}

// Completion describes how a tracked trade ended.
type Completion struct {
	Status     string  `json:"status"`
	PnLPercent float64 `json:"pnl_percent"`
	ExitPrice  float64 `json:"exit_price"`
	Trade      *Trade  `json:"trade"`
}

// Tracker holds the active trades and resolves their completions. The
// journal is optional; a nil journal disables persistence without changing
// tracking behavior.
type Tracker struct {
	mu          sync.Mutex
	trades      map[string]*Trade
	maxDuration time.Duration
	journal     *Journal
	logger      zerolog.Logger
	now         func() time.Time
}

func NewTracker(maxDuration time.Duration, journal *Journal, logger zerolog.Logger) *Tracker {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Tracker{
		trades:      make(map[string]*Trade),
		maxDuration: maxDuration,
		journal:     journal,
		logger:      logger.With().Str("component", "trade_tracker").Logger(),
		now:         time.Now,
	}
}

// Register opens tracking for a trade, replacing any prior trade on the
// same symbol.
func (t *Tracker) Register(ctx context.Context, symbol, action string, entry, stopLoss, takeProfit float64, leverage int, confidence float64) *Trade {
	trade := &Trade{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Action:      action,
		EntryPrice:  entry,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
		Leverage:    leverage,
		Confidence:  confidence,
		EntryTime:   t.now(),
		Status:      "ACTIVE",
		MaxDuration: t.maxDuration,
	}

	t.mu.Lock()
	t.trades[symbol] = trade
	count := len(t.trades)
	t.mu.Unlock()

	metrics.ActiveTrades.Set(float64(count))

	if t.journal != nil {
		if err := t.journal.RecordEntry(ctx, trade); err != nil {
			t.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to journal trade entry")
		}
	}

	t.logger.Info().
		Str("symbol", symbol).
		Str("action", action).
		Float64("entry_price", entry).
		Msg("trade registered")

	return trade
}

// Active returns the open trade for symbol, or nil.
func (t *Tracker) Active(symbol string) *Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trade, ok := t.trades[symbol]; ok {
		copied := *trade
		return &copied
	}
	return nil
}

// ActiveTrades returns a copy of the open trade set keyed by symbol.
func (t *Tracker) ActiveTrades() map[string]Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Trade, len(t.trades))
	for symbol, trade := range t.trades {
		out[symbol] = *trade
	}
	return out
}

// CheckCompletion resolves the open trade for symbol against the current
// price. Returns nil while the trade is still live. A completed trade is
// removed and journaled.
func (t *Tracker) CheckCompletion(ctx context.Context, symbol string, currentPrice float64) *Completion {
	t.mu.Lock()
	trade, ok := t.trades[symbol]
	if !ok {
		t.mu.Unlock()
		return nil
	}

	completion := t.resolve(trade, currentPrice)
	if completion == nil {
		t.mu.Unlock()
		return nil
	}

	delete(t.trades, symbol)
	count := len(t.trades)
	t.mu.Unlock()

	metrics.ActiveTrades.Set(float64(count))

	if t.journal != nil {
		if err := t.journal.RecordExit(ctx, completion); err != nil {
			t.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to journal trade exit")
		}
	}

	t.logger.Info().
		Str("symbol", symbol).
		Str("status", completion.Status).
		Float64("pnl_percent", completion.PnLPercent).
		Msg("trade completed")

	return completion
}

func (t *Tracker) resolve(trade *Trade, currentPrice float64) *Completion {
	entry := trade.EntryPrice

	if trade.Action == "BUY" {
		if currentPrice >= trade.TakeProfit {
			return &Completion{
				Status:     StatusTPHit,
				PnLPercent: (trade.TakeProfit - entry) / entry * 100,
				ExitPrice:  currentPrice,
				Trade:      trade,
			}
		}
		if currentPrice <= trade.StopLoss {
			return &Completion{
				Status:     StatusSLHit,
				PnLPercent: (trade.StopLoss - entry) / entry * 100,
				ExitPrice:  currentPrice,
				Trade:      trade,
			}
		}
	} else {
		if currentPrice <= trade.TakeProfit {
			return &Completion{
				Status:     StatusTPHit,
				PnLPercent: (entry - trade.TakeProfit) / entry * 100,
				ExitPrice:  currentPrice,
				Trade:      trade,
			}
		}
		if currentPrice >= trade.StopLoss {
			return &Completion{
				Status:     StatusSLHit,
				PnLPercent: (entry - trade.StopLoss) / entry * 100,
				ExitPrice:  currentPrice,
				Trade:      trade,
			}
		}
	}

	if t.now().Sub(trade.EntryTime) > trade.MaxDuration {
		// Mark-to-market at expiry; shorts profit from price falling.
		pnl := (currentPrice - entry) / entry * 100
		if trade.Action == "SELL" {
			pnl = -pnl
		}
		return &Completion{
			Status:     StatusExpired,
			PnLPercent: pnl,
			ExitPrice:  currentPrice,
			Trade:      trade,
		}
	}

	return nil
}

// ShouldIssueSignal reports whether a fresh signal may be issued for symbol.
// An active trade blocks new signals; a trade that just completed at this
// price allows one.
func (t *Tracker) ShouldIssueSignal(ctx context.Context, symbol string, currentPrice float64) (bool, string) {
	active := t.Active(symbol)
	if active == nil {
		return true, ""
	}

	if completion := t.CheckCompletion(ctx, symbol, currentPrice); completion != nil {
		return true, fmt.Sprintf("Previous trade completed: %s", completion.Status)
	}

	return false, fmt.Sprintf("Active trade in progress - entered at $%.4f", active.EntryPrice)
}
