package signal

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/analysis"
	"market-structure-engine/internal/metrics"
)

// DefaultMinHold is how long a fresh bias is held regardless of opposing
// analysis.
const DefaultMinHold = 4 * time.Hour

// DefaultOverrideScore is the opposing score required to unseat a held bias
// once the minimum hold has elapsed. Deliberately one point above the entry
// threshold so flipping is harder than entering.
const DefaultOverrideScore = 8

const biasStripes = 32

// Bias is a held directional stance for one symbol.
type Bias struct {
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Signal     *Signal   `json:"signal"`
	SetAt      time.Time `json:"set_at"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}

// BiasStore is the single writer of per-symbol bias state. A striped mutex
// keeps evaluation atomic per symbol while different symbols proceed in
// parallel.
type BiasStore struct {
	stripes [biasStripes]sync.Mutex

	mu     sync.RWMutex
	biases map[string]*Bias

	minHold       time.Duration
	overrideScore int
	logger        zerolog.Logger
	now           func() time.Time
}

func NewBiasStore(minHold time.Duration, overrideScore int, logger zerolog.Logger) *BiasStore {
	if minHold <= 0 {
		minHold = DefaultMinHold
	}
	if overrideScore <= 0 {
		overrideScore = DefaultOverrideScore
	}
	return &BiasStore{
		biases:        make(map[string]*Bias),
		minHold:       minHold,
		overrideScore: overrideScore,
		logger:        logger.With().Str("component", "bias_store").Logger(),
		now:           time.Now,
	}
}

func (s *BiasStore) stripe(symbol string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return &s.stripes[h.Sum32()%biasStripes]
}

// Lock acquires the per-symbol stripe so a full evaluate-and-update cycle
// for one symbol is atomic. Callers must call the returned unlock.
func (s *BiasStore) Lock(symbol string) func() {
	m := s.stripe(symbol)
	m.Lock()
	return m.Unlock
}

// Get returns the held bias for symbol, or nil.
func (s *BiasStore) Get(symbol string) *Bias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.biases[symbol]
}

// Set records a new bias for symbol.
func (s *BiasStore) Set(symbol, direction string, sig *Signal) {
	bias := &Bias{
		Symbol:     symbol,
		Direction:  direction,
		Signal:     sig,
		SetAt:      s.now(),
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}

	s.mu.Lock()
	s.biases[symbol] = bias
	s.mu.Unlock()

	metrics.BiasTransitions.WithLabelValues("set").Inc()
	s.logger.Info().Str("symbol", symbol).Str("direction", direction).Msg("bias set")
}

// Clear removes the bias for symbol. Returns whether one existed.
func (s *BiasStore) Clear(symbol string) bool {
	s.mu.Lock()
	_, existed := s.biases[symbol]
	delete(s.biases, symbol)
	s.mu.Unlock()

	if existed {
		metrics.BiasTransitions.WithLabelValues("clear").Inc()
		s.logger.Info().Str("symbol", symbol).Msg("bias cleared")
	}
	return existed
}

// All returns a copy of the active bias set.
func (s *BiasStore) All() map[string]*Bias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Bias, len(s.biases))
	for symbol, bias := range s.biases {
		copied := *bias
		out[symbol] = &copied
	}
	return out
}

// ShouldMaintain decides whether the held bias for symbol survives this
// evaluation. Checks run in strict order: TP/SL invalidation, then the
// unconditional minimum hold, then the opposing-score override. An
// invalidated bias is cleared before returning.
func (s *BiasStore) ShouldMaintain(symbol string, currentPrice float64, fresh *analysis.Result) (bool, string) {
	bias := s.Get(symbol)
	if bias == nil {
		return false, "No active bias"
	}

	if bias.Direction == "LONG" {
		if currentPrice <= bias.StopLoss {
			s.Clear(symbol)
			return false, "Stop loss hit"
		}
		if currentPrice >= bias.TakeProfit {
			s.Clear(symbol)
			return false, "Take profit hit"
		}
	} else {
		if currentPrice >= bias.StopLoss {
			s.Clear(symbol)
			return false, "Stop loss hit"
		}
		if currentPrice <= bias.TakeProfit {
			s.Clear(symbol)
			return false, "Take profit hit"
		}
	}

	held := s.now().Sub(bias.SetAt)
	if held < s.minHold {
		return true, fmt.Sprintf("Maintaining bias (held %.1fh, min %.0fh)", held.Hours(), s.minHold.Hours())
	}

	if fresh != nil && fresh.Direction != "" && fresh.Direction != bias.Direction {
		if fresh.Score >= s.overrideScore {
			s.Clear(symbol)
			return false, "Strong opposing signal detected"
		}
	}

	return true, "Bias maintained - no invalidation"
}
