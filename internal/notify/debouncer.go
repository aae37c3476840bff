package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-structure-engine/internal/metrics"
)

// DefaultDebounceWindow is the minimum quiet period between emitted bias
// change notifications for one symbol.
const DefaultDebounceWindow = 180 * time.Second

const maxNotifications = 5

// Notification records a bias flip that survived debouncing.
type Notification struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Previous  string    `json:"previous"`
	New       string    `json:"new"`
	Price     float64   `json:"price"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Debouncer tracks the displayed action per symbol and emits a notification
// when it flips, suppressing bursts. Every observed flip re-arms the window,
// so a symbol that keeps flipping stays silent until it settles.
type Debouncer struct {
	mu            sync.Mutex
	window        time.Duration
	displayed     map[string]string
	lastFlip      map[string]time.Time
	notifications []Notification
	logger        zerolog.Logger
	now           func() time.Time

	onEmit func(Notification)
}

func NewDebouncer(window time.Duration, logger zerolog.Logger) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window:    window,
		displayed: make(map[string]string),
		lastFlip:  make(map[string]time.Time),
		logger:    logger.With().Str("component", "debouncer").Logger(),
		now:       time.Now,
	}
}

// OnEmit registers a callback invoked for every emitted notification, outside
// any hot path guarantees but inside the debouncer lock. Used to fan out to
// the websocket hub.
func (d *Debouncer) OnEmit(fn func(Notification)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEmit = fn
}

// TrackDisplayed records the action shown to the user for symbol. HOLD is
// ignored. The first sighting of a symbol sets the baseline silently.
func (d *Debouncer) TrackDisplayed(symbol, action string, price float64) {
	if action != "BUY" && action != "SELL" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	previous, seen := d.displayed[symbol]
	now := d.now()

	if seen && previous != action {
		if last, ok := d.lastFlip[symbol]; ok && now.Sub(last) < d.window {
			// Absorbed. The timer re-arms so a flapping symbol never
			// emits until it holds still for a full window.
			d.displayed[symbol] = action
			d.lastFlip[symbol] = now
			return
		}

		n := Notification{
			ID:        uuid.NewString(),
			Symbol:    symbol,
			Previous:  previous,
			New:       action,
			Price:     price,
			Message:   fmt.Sprintf("%s: Bias changed from %s to %s", symbol, previous, action),
			Timestamp: now,
		}
		d.notifications = append([]Notification{n}, d.notifications...)
		if len(d.notifications) > maxNotifications {
			d.notifications = d.notifications[:maxNotifications]
		}
		d.lastFlip[symbol] = now
		metrics.NotificationsEmitted.Inc()

		d.logger.Info().
			Str("symbol", symbol).
			Str("previous", previous).
			Str("new", action).
			Float64("price", price).
			Msg("bias change notification")

		if d.onEmit != nil {
			d.onEmit(n)
		}
	}

	d.displayed[symbol] = action
}

// Notifications returns the retained notifications, newest first.
func (d *Debouncer) Notifications() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notification, len(d.notifications))
	copy(out, d.notifications)
	return out
}

// Clear drops the retained notifications but keeps per-symbol flip state.
func (d *Debouncer) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = nil
}

// Reset wipes all state. Called on engine restart.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.displayed = make(map[string]string)
	d.lastFlip = make(map[string]time.Time)
	d.notifications = nil
	d.logger.Info().Msg("cleared all notification state")
}
