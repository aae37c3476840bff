package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"market-structure-engine/internal/metrics"
)

// StoreConfig holds tunables for the candle store.
type StoreConfig struct {
	// ProviderTimeout bounds each individual upstream fetch attempt.
	ProviderTimeout time.Duration
	// SnapshotMaxAge is the oldest a durable snapshot may be and still be
	// served when every provider and the memory cache have failed.
	SnapshotMaxAge time.Duration
}

// DefaultStoreConfig returns the production defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		ProviderTimeout: 15 * time.Second,
		SnapshotMaxAge:  24 * time.Hour,
	}
}

// staleFactor extends the fresh TTL into a stale-but-usable window.
const staleFactor = 3

// fetchLimit is the floor on upstream request size so one cache entry can
// serve any smaller limit later.
const fetchLimit = 200

type cacheEntry struct {
	candles   []Candle
	fetchedAt time.Time
}

// Store fetches and caches OHLCV candle series per (symbol, timeframe) key.
// Concurrent misses for the same key share a single upstream fetch, and
// provider failures fall back through stale memory and durable snapshots
// before ErrUnavailable is reported.
type Store struct {
	providers []Provider
	snapshots []SnapshotStore
	cfg       StoreConfig
	logger    zerolog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*cacheEntry

	breakers map[string]*providerBreaker

	now func() time.Time
}

// NewStore creates a candle store. Providers are tried in order; snapshots
// are written to every store and read in order, freshest wins.
func NewStore(providers []Provider, snapshots []SnapshotStore, cfg StoreConfig, logger zerolog.Logger) *Store {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultStoreConfig().ProviderTimeout
	}
	if cfg.SnapshotMaxAge <= 0 {
		cfg.SnapshotMaxAge = DefaultStoreConfig().SnapshotMaxAge
	}
	s := &Store{
		providers: providers,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.With().Str("component", "CandleStore").Logger(),
		entries:   make(map[string]*cacheEntry),
		breakers:  make(map[string]*providerBreaker),
		now:       time.Now,
	}
	for _, p := range providers {
		s.breakers[p.Name()] = newProviderBreaker(func() time.Time { return s.now() })
	}
	return s
}

// cacheTTL returns the freshness window for a timeframe. Longer timeframes
// change less often and tolerate older data.
func cacheTTL(timeframe string) time.Duration {
	switch timeframe {
	case "15m":
		return 10 * time.Minute
	case "30m":
		return 15 * time.Minute
	case "1h":
		return 20 * time.Minute
	case "4h":
		return time.Hour
	case "12h":
		return 2 * time.Hour
	case "1d":
		return 2 * time.Hour
	case "1w":
		return 4 * time.Hour
	default:
		return 30 * time.Minute
	}
}

func cacheKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}

// Candles returns at most limit candles for the key, oldest first. It never
// returns a partial error: the result is either a usable series or
// ErrUnavailable.
func (s *Store) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	key := cacheKey(symbol, timeframe)

	if candles, ok := s.cached(key, cacheTTL(timeframe)); ok {
		metrics.CandleCacheLookups.WithLabelValues("hit").Inc()
		return trim(candles, limit), nil
	}
	metrics.CandleCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Another waiter may have filled the cache before we got here.
		if candles, ok := s.cached(key, cacheTTL(timeframe)); ok {
			return candles, nil
		}
		return s.fetch(ctx, symbol, timeframe)
	})
	if err == nil {
		return trim(v.([]Candle), limit), nil
	}

	// Stale-but-usable window.
	if candles, ok := s.cached(key, staleFactor*cacheTTL(timeframe)); ok {
		metrics.CandleCacheLookups.WithLabelValues("stale").Inc()
		s.logger.Warn().Str("key", key).Msg("All providers failed, serving stale cache")
		return trim(candles, limit), nil
	}

	// Durable last-known-good snapshot.
	if candles, ok := s.fromSnapshot(ctx, symbol, timeframe); ok {
		s.logger.Warn().Str("key", key).Msg("All providers failed, serving durable snapshot")
		return trim(candles, limit), nil
	}

	s.logger.Error().Str("key", key).Err(err).Msg("Market data unavailable")
	return nil, ErrUnavailable
}

// cached returns the entry for key if it is younger than maxAge.
func (s *Store) cached(key string, maxAge time.Duration) ([]Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || s.now().Sub(entry.fetchedAt) >= maxAge {
		return nil, false
	}
	return entry.candles, true
}

// fetch walks the provider priority list; the first provider returning a
// usable series wins, and the result overwrites both cache tiers.
func (s *Store) fetch(ctx context.Context, symbol, timeframe string) ([]Candle, error) {
	var lastErr error = ErrUnavailable

	for _, p := range s.providers {
		breaker := s.breakers[p.Name()]
		if breaker != nil && !breaker.Allow() {
			metrics.ProviderFetches.WithLabelValues(p.Name(), "skipped").Inc()
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		candles, err := p.Fetch(fetchCtx, symbol, timeframe, fetchLimit)
		cancel()

		if err != nil {
			if breaker != nil {
				breaker.RecordFailure()
			}
			metrics.ProviderFetches.WithLabelValues(p.Name(), "error").Inc()
			s.logger.Warn().Str("provider", p.Name()).Str("symbol", symbol).Err(err).Msg("Provider fetch failed")
			lastErr = err
			continue
		}
		if breaker != nil {
			breaker.RecordSuccess()
		}
		if len(candles) < minUsableCandles {
			metrics.ProviderFetches.WithLabelValues(p.Name(), "short").Inc()
			s.logger.Warn().Str("provider", p.Name()).Str("symbol", symbol).
				Int("candles", len(candles)).Msg("Provider returned too few candles")
			continue
		}

		metrics.ProviderFetches.WithLabelValues(p.Name(), "ok").Inc()
		s.storeEntry(symbol, timeframe, candles, s.now())
		s.writeSnapshots(symbol, timeframe, candles)
		s.logger.Debug().Str("provider", p.Name()).Str("symbol", symbol).
			Str("timeframe", timeframe).Int("candles", len(candles)).Msg("Fetched candles")
		return candles, nil
	}

	return nil, lastErr
}

func (s *Store) storeEntry(symbol, timeframe string, candles []Candle, fetchedAt time.Time) {
	s.mu.Lock()
	s.entries[cacheKey(symbol, timeframe)] = &cacheEntry{candles: candles, fetchedAt: fetchedAt}
	s.mu.Unlock()
}

func (s *Store) writeSnapshots(symbol, timeframe string, candles []Candle) {
	snap := &Snapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
		FetchedAt: s.now(),
	}
	for _, store := range s.snapshots {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Save(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Snapshot save failed")
		}
		cancel()
	}
}

// fromSnapshot loads the freshest acceptable durable snapshot and promotes
// it into the memory cache with its original fetch time, so staleness math
// keeps working on later calls.
func (s *Store) fromSnapshot(ctx context.Context, symbol, timeframe string) ([]Candle, bool) {
	var best *Snapshot
	for _, store := range s.snapshots {
		snap, err := store.Load(ctx, symbol, timeframe)
		if err != nil {
			continue
		}
		if s.now().Sub(snap.FetchedAt) > s.cfg.SnapshotMaxAge {
			continue
		}
		if best == nil || snap.FetchedAt.After(best.FetchedAt) {
			best = snap
		}
	}
	if best == nil || len(best.Candles) < minUsableCandles {
		return nil, false
	}
	s.storeEntry(symbol, timeframe, best.Candles, best.FetchedAt)
	return best.Candles, true
}

func trim(candles []Candle, limit int) []Candle {
	if limit > 0 && len(candles) > limit {
		return candles[len(candles)-limit:]
	}
	return candles
}

// LatestPrice derives a spot price and 24h change from recent hourly candles.
// It is a convenience for callers that sweep symbols without a live ticker.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (float64, float64, error) {
	candles, err := s.Candles(ctx, symbol, "1h", 25)
	if err != nil {
		return 0, 0, err
	}
	if len(candles) == 0 {
		return 0, 0, ErrUnavailable
	}

	price := candles[len(candles)-1].Close
	change := 0.0
	if first := candles[0].Close; first > 0 && len(candles) > 1 {
		change = (price - first) / first * 100
	}
	return price, change, nil
}
