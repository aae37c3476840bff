package marketdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	name    string
	candles []Candle
	err     error
	calls   atomic.Int64
	delay   time.Duration
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.candles, nil
}

func seriesOf(n int) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{
			OpenTime: int64(i) * 14_400_000,
			Open:     100, High: 101, Low: 99, Close: 100, Volume: 50,
		}
	}
	return candles
}

func newTestStore(providers []Provider, snapshots []SnapshotStore) (*Store, *time.Time) {
	store := NewStore(providers, snapshots, DefaultStoreConfig(), zerolog.Nop())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	return store, &current
}

func TestCacheHitWithinTTL(t *testing.T) {
	provider := &stubProvider{name: "binance", candles: seriesOf(60)}
	store, clock := newTestStore([]Provider{provider}, nil)

	if _, err := store.Candles(context.Background(), "BTC", "4h", 50); err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}

	// Within the 4h TTL of one hour: served from memory.
	*clock = clock.Add(30 * time.Minute)
	if _, err := store.Candles(context.Background(), "BTC", "4h", 50); err != nil {
		t.Fatalf("Cached fetch failed: %v", err)
	}

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("Expected 1 upstream call, got %d", got)
	}

	// Past the TTL: refetched.
	*clock = clock.Add(45 * time.Minute)
	if _, err := store.Candles(context.Background(), "BTC", "4h", 50); err != nil {
		t.Fatalf("Refresh fetch failed: %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("Expected refetch after TTL, got %d calls", got)
	}
}

func TestLimitTrimsNewest(t *testing.T) {
	series := seriesOf(200)
	for i := range series {
		series[i].Close = float64(i)
	}
	provider := &stubProvider{name: "binance", candles: series}
	store, _ := newTestStore([]Provider{provider}, nil)

	candles, err := store.Candles(context.Background(), "BTC", "4h", 50)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(candles) != 50 {
		t.Fatalf("Expected 50 candles, got %d", len(candles))
	}
	if candles[len(candles)-1].Close != 199 {
		t.Errorf("Trim should keep the newest candles, last close %f", candles[len(candles)-1].Close)
	}
}

func TestProviderPriorityFallback(t *testing.T) {
	down := &stubProvider{name: "binance", err: errors.New("HTTP 451")}
	short := &stubProvider{name: "bybit", candles: seriesOf(5)}
	good := &stubProvider{name: "coingecko", candles: seriesOf(90)}
	store, _ := newTestStore([]Provider{down, short, good}, nil)

	candles, err := store.Candles(context.Background(), "BTC", "4h", 0)
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if len(candles) != 90 {
		t.Errorf("Expected the third provider's series, got %d candles", len(candles))
	}
	if down.calls.Load() != 1 || short.calls.Load() != 1 || good.calls.Load() != 1 {
		t.Errorf("Each provider should be tried once: %d %d %d",
			down.calls.Load(), short.calls.Load(), good.calls.Load())
	}
}

func TestFirstUsableProviderWins(t *testing.T) {
	first := &stubProvider{name: "binance", candles: seriesOf(60)}
	second := &stubProvider{name: "bybit", candles: seriesOf(200)}
	store, _ := newTestStore([]Provider{first, second}, nil)

	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if second.calls.Load() != 0 {
		t.Error("Lower-priority provider should not be called when the first succeeds")
	}
}

func TestAllProvidersFailUnavailable(t *testing.T) {
	down := &stubProvider{name: "binance", err: errors.New("timeout")}
	store, _ := newTestStore([]Provider{down}, nil)

	_, err := store.Candles(context.Background(), "BTC", "4h", 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestStaleCacheServedOnFailure(t *testing.T) {
	provider := &stubProvider{name: "binance", candles: seriesOf(60)}
	store, clock := newTestStore([]Provider{provider}, nil)

	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
		t.Fatalf("Seed fetch failed: %v", err)
	}

	// Providers go down; data is past fresh TTL (1h) but inside 3x.
	provider.err = errors.New("down")
	*clock = clock.Add(2 * time.Hour)

	candles, err := store.Candles(context.Background(), "BTC", "4h", 0)
	if err != nil {
		t.Fatalf("Expected stale cache to be served, got %v", err)
	}
	if len(candles) != 60 {
		t.Errorf("Expected the stale series, got %d candles", len(candles))
	}

	// Past the stale window too: nothing left.
	*clock = clock.Add(2 * time.Hour)
	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable past the stale window, got %v", err)
	}
}

func TestSnapshotFallback(t *testing.T) {
	disk, err := NewDiskSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	provider := &stubProvider{name: "binance", candles: seriesOf(60)}
	store, clock := newTestStore([]Provider{provider}, []SnapshotStore{disk})

	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
		t.Fatalf("Seed fetch failed: %v", err)
	}

	// Fresh store instance: memory cache gone, snapshot on disk remains.
	provider.err = errors.New("down")
	store2, clock2 := newTestStore([]Provider{provider}, []SnapshotStore{disk})
	*clock2 = clock.Add(6 * time.Hour)

	candles, err := store2.Candles(context.Background(), "BTC", "4h", 0)
	if err != nil {
		t.Fatalf("Expected snapshot fallback, got %v", err)
	}
	if len(candles) != 60 {
		t.Errorf("Expected the snapshot series, got %d candles", len(candles))
	}
}

func TestSnapshotTooOldRejected(t *testing.T) {
	disk, err := NewDiskSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	provider := &stubProvider{name: "binance", candles: seriesOf(60)}
	store, clock := newTestStore([]Provider{provider}, []SnapshotStore{disk})

	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
		t.Fatalf("Seed fetch failed: %v", err)
	}

	provider.err = errors.New("down")
	store2, clock2 := newTestStore([]Provider{provider}, []SnapshotStore{disk})
	*clock2 = clock.Add(25 * time.Hour)

	if _, err := store2.Candles(context.Background(), "BTC", "4h", 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Snapshot older than 24h must be rejected, got %v", err)
	}
}

func TestConcurrentRequestsShareOneFetch(t *testing.T) {
	provider := &stubProvider{name: "binance", candles: seriesOf(60), delay: 50 * time.Millisecond}
	store, _ := newTestStore([]Provider{provider}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
				t.Errorf("Concurrent fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("Singleflight should collapse concurrent misses into 1 call, got %d", got)
	}
}

func TestDistinctKeysDoNotShare(t *testing.T) {
	provider := &stubProvider{name: "binance", candles: seriesOf(60)}
	store, _ := newTestStore([]Provider{provider}, nil)

	if _, err := store.Candles(context.Background(), "BTC", "4h", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Candles(context.Background(), "BTC", "1d", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Candles(context.Background(), "ETH", "4h", 0); err != nil {
		t.Fatal(err)
	}

	if got := provider.calls.Load(); got != 3 {
		t.Errorf("Each (symbol, timeframe) key should fetch once, got %d", got)
	}
}
