package signal

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/analysis"
)

func newTestBiasStore() (*BiasStore, *time.Time) {
	store := NewBiasStore(4*time.Hour, 8, zerolog.Nop())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	return store, &current
}

func longSignal(symbol string, price float64) *Signal {
	return &Signal{
		Symbol:     symbol,
		Action:     "BUY",
		Direction:  "LONG",
		EntryPrice: price,
		StopLoss:   price * 0.97,
		TakeProfit: price * 1.10,
	}
}

func shortSignal(symbol string, price float64) *Signal {
	return &Signal{
		Symbol:     symbol,
		Action:     "SELL",
		Direction:  "SHORT",
		EntryPrice: price,
		StopLoss:   price * 1.03,
		TakeProfit: price * 0.90,
	}
}

func opposing(direction string, score int) *analysis.Result {
	return &analysis.Result{Direction: direction, Score: score}
}

func TestShouldMaintainNoBias(t *testing.T) {
	store, _ := newTestBiasStore()

	maintain, reason := store.ShouldMaintain("BTC", 50000, nil)
	if maintain {
		t.Error("No bias should not be maintained")
	}
	if reason != "No active bias" {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestLongStopLossClears(t *testing.T) {
	store, _ := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	maintain, reason := store.ShouldMaintain("BTC", 48000, nil)
	if maintain {
		t.Error("Stop loss cross should invalidate the bias")
	}
	if reason != "Stop loss hit" {
		t.Errorf("Unexpected reason: %s", reason)
	}
	if store.Get("BTC") != nil {
		t.Error("Invalidated bias should be cleared")
	}
}

func TestLongTakeProfitClears(t *testing.T) {
	store, _ := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	maintain, reason := store.ShouldMaintain("BTC", 56000, nil)
	if maintain || reason != "Take profit hit" {
		t.Errorf("Expected take profit clear, got maintain=%v reason=%q", maintain, reason)
	}
}

func TestShortLevelsInverted(t *testing.T) {
	store, _ := newTestBiasStore()
	store.Set("ETH", "SHORT", shortSignal("ETH", 3000))

	// Price above the short stop invalidates.
	maintain, reason := store.ShouldMaintain("ETH", 3100, nil)
	if maintain || reason != "Stop loss hit" {
		t.Errorf("Expected short stop loss, got maintain=%v reason=%q", maintain, reason)
	}

	store.Set("ETH", "SHORT", shortSignal("ETH", 3000))
	maintain, reason = store.ShouldMaintain("ETH", 2650, nil)
	if maintain || reason != "Take profit hit" {
		t.Errorf("Expected short take profit, got maintain=%v reason=%q", maintain, reason)
	}
}

func TestMinHoldBlocksOverride(t *testing.T) {
	store, clock := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	*clock = clock.Add(2 * time.Hour)

	// Even a maximum-score opposing verdict cannot flip inside min hold.
	maintain, reason := store.ShouldMaintain("BTC", 50500, opposing("SHORT", 10))
	if !maintain {
		t.Fatalf("Min hold must maintain unconditionally, got: %s", reason)
	}
}

func TestOverrideAfterHold(t *testing.T) {
	store, clock := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	*clock = clock.Add(5 * time.Hour)

	maintain, reason := store.ShouldMaintain("BTC", 50500, opposing("SHORT", 8))
	if maintain {
		t.Fatal("Opposing score at the override threshold should clear the bias")
	}
	if reason != "Strong opposing signal detected" {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestEntryGradeOppositionMaintains(t *testing.T) {
	store, clock := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	*clock = clock.Add(5 * time.Hour)

	// Score 7 would be enough to enter fresh, but not enough to flip.
	maintain, _ := store.ShouldMaintain("BTC", 50500, opposing("SHORT", 7))
	if !maintain {
		t.Fatal("Entry-grade opposition must not unseat a held bias")
	}
}

func TestSameDirectionNeverClears(t *testing.T) {
	store, clock := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	*clock = clock.Add(10 * time.Hour)

	maintain, _ := store.ShouldMaintain("BTC", 50500, opposing("LONG", 10))
	if !maintain {
		t.Fatal("Agreeing analysis should never clear the bias")
	}
}

func TestAllReturnsCopies(t *testing.T) {
	store, _ := newTestBiasStore()
	store.Set("BTC", "LONG", longSignal("BTC", 50000))

	all := store.All()
	if len(all) != 1 {
		t.Fatalf("Expected 1 bias, got %d", len(all))
	}
	all["BTC"].Direction = "SHORT"
	if store.Get("BTC").Direction != "LONG" {
		t.Error("All should return copies")
	}
}
