package notify

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestDebouncer(window time.Duration) (*Debouncer, *time.Time) {
	d := NewDebouncer(window, zerolog.Nop())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }
	return d, &current
}

func TestFirstSightingIsSilent(t *testing.T) {
	d, _ := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)

	if n := d.Notifications(); len(n) != 0 {
		t.Fatalf("First sighting should not notify, got %d notifications", len(n))
	}
}

func TestFlipEmitsNotification(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "SELL", 49500)

	notifications := d.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifications))
	}

	n := notifications[0]
	if n.Previous != "BUY" || n.New != "SELL" {
		t.Errorf("Expected BUY->SELL, got %s->%s", n.Previous, n.New)
	}
	if n.Price != 49500 {
		t.Errorf("Expected price 49500, got %f", n.Price)
	}
}

func TestHoldIgnored(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "HOLD", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "BUY", 50100)

	if n := d.Notifications(); len(n) != 0 {
		t.Fatalf("HOLD should not affect tracking, got %d notifications", len(n))
	}
}

func TestBurstAbsorbedAndTimerRearmed(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "SELL", 49900) // emits, arms timer

	// Flips inside the window are absorbed but each one re-arms the timer.
	for i := 0; i < 4; i++ {
		*clock = clock.Add(100 * time.Second)
		action := "BUY"
		if i%2 == 1 {
			action = "SELL"
		}
		d.TrackDisplayed("BTC", action, 50000)
	}

	if n := d.Notifications(); len(n) != 1 {
		t.Fatalf("Burst flips should be absorbed, got %d notifications", len(n))
	}

	// 100s after the last absorbed flip is still inside the re-armed
	// window even though the emitted notification is long past.
	*clock = clock.Add(100 * time.Second)
	d.TrackDisplayed("BTC", "BUY", 49000)
	if n := d.Notifications(); len(n) != 1 {
		t.Fatalf("Re-armed window should still absorb, got %d notifications", len(n))
	}

	// Once the symbol holds still for a full window the next flip emits,
	// with previous set to the last absorbed direction.
	*clock = clock.Add(181 * time.Second)
	d.TrackDisplayed("BTC", "SELL", 51000)

	notifications := d.Notifications()
	if len(notifications) != 2 {
		t.Fatalf("Expected 2 notifications after settling, got %d", len(notifications))
	}
	if notifications[0].Previous != "BUY" || notifications[0].New != "SELL" {
		t.Errorf("Expected BUY->SELL, got %s->%s", notifications[0].Previous, notifications[0].New)
	}
}

func TestNotificationCapNewestFirst(t *testing.T) {
	d, clock := newTestDebouncer(time.Second)

	d.TrackDisplayed("BTC", "BUY", 1)
	for i := 0; i < 8; i++ {
		*clock = clock.Add(2 * time.Second)
		action := "SELL"
		if i%2 == 1 {
			action = "BUY"
		}
		d.TrackDisplayed("BTC", action, float64(i))
	}

	notifications := d.Notifications()
	if len(notifications) != 5 {
		t.Fatalf("Expected cap of 5 notifications, got %d", len(notifications))
	}
	if notifications[0].Price != 7 {
		t.Errorf("Expected newest first (price 7), got %f", notifications[0].Price)
	}
}

func TestSymbolsDebounceIndependently(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	d.TrackDisplayed("ETH", "SELL", 3000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "SELL", 49000)
	d.TrackDisplayed("ETH", "BUY", 3100)

	if n := d.Notifications(); len(n) != 2 {
		t.Fatalf("Each symbol should emit its own flip, got %d", len(n))
	}
}

func TestClearKeepsFlipState(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "SELL", 49000)

	d.Clear()
	if n := d.Notifications(); len(n) != 0 {
		t.Fatalf("Clear should drop notifications, got %d", len(n))
	}

	// Still inside the window from the emitted flip: absorbed.
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "BUY", 50500)
	if n := d.Notifications(); len(n) != 0 {
		t.Fatalf("Flip state should survive Clear, got %d notifications", len(n))
	}
}

func TestResetWipesEverything(t *testing.T) {
	d, clock := newTestDebouncer(180 * time.Second)

	d.TrackDisplayed("BTC", "BUY", 50000)
	*clock = clock.Add(time.Second)
	d.TrackDisplayed("BTC", "SELL", 49000)
	d.Reset()

	// After reset the next sighting is a fresh baseline: silent.
	d.TrackDisplayed("BTC", "BUY", 50500)
	if n := d.Notifications(); len(n) != 0 {
		t.Fatalf("Post-reset baseline should be silent, got %d notifications", len(n))
	}
}
