package marketdata

import (
	"sync"
	"time"
)

// BreakerState is the health state of a provider.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // provider healthy
	StateOpen     BreakerState = "open"      // provider skipped
	StateHalfOpen BreakerState = "half_open" // single probe allowed
)

const (
	breakerFailureThreshold = 5
	breakerCooldown         = 2 * time.Minute
)

// providerBreaker trips a provider out of the rotation after repeated
// failures so a dead upstream stops eating its fetch timeout on every miss.
// After the cooldown one probe request is let through; success closes the
// breaker, failure reopens it.
type providerBreaker struct {
	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	now                 func() time.Time
}

func newProviderBreaker(now func() time.Time) *providerBreaker {
	return &providerBreaker{state: StateClosed, now: now}
}

// Allow reports whether a request may go to the provider. When the cooldown
// has elapsed it transitions open to half-open and admits the probe.
func (b *providerBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= breakerCooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return true
}

func (b *providerBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
}

func (b *providerBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		// Probe failed, back to cooldown.
		b.state = StateOpen
		b.openedAt = b.now()
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= breakerFailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

func (b *providerBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
