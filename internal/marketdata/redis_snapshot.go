package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// snapshotKeyPrefix namespaces candle snapshots in Redis.
	// Format: ohlcv:snapshot:{SYMBOL}:{timeframe}
	snapshotKeyPrefix = "ohlcv:snapshot"

	// snapshotTTL bounds how long a snapshot lives in Redis. The store
	// separately rejects snapshots older than its own freshness window, so
	// this only caps storage, not correctness.
	snapshotTTL = 48 * time.Hour
)

// RedisSnapshotStore keeps candle snapshots in Redis so multiple engine
// instances can share last-known-good data. When Redis is unavailable,
// operations become no-ops and loads report ErrSnapshotNotFound; the caller
// is expected to also carry a disk-backed store.
type RedisSnapshotStore struct {
	client    *redis.Client
	logger    zerolog.Logger
	available atomic.Bool
}

// NewRedisSnapshotStore creates a RedisSnapshotStore. A nil client yields a
// store that is permanently unavailable.
func NewRedisSnapshotStore(client *redis.Client, logger zerolog.Logger) *RedisSnapshotStore {
	s := &RedisSnapshotStore{
		client: client,
		logger: logger.With().Str("component", "RedisSnapshotStore").Logger(),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis unavailable at startup, snapshot tier disabled")
		} else {
			s.available.Store(true)
			s.logger.Info().Msg("Redis snapshot tier connected")
		}
	}

	return s
}

func snapshotKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s:%s", snapshotKeyPrefix, strings.ToUpper(symbol), timeframe)
}

// Save stores the snapshot, re-probing availability on failure.
func (s *RedisSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if s.client == nil || snap == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(snap.Symbol, snap.Timeframe), data, snapshotTTL).Err(); err != nil {
		if s.available.Swap(false) {
			s.logger.Warn().Err(err).Msg("Redis snapshot save failed, tier disabled")
		}
		return nil
	}

	s.available.Store(true)
	return nil
}

// Load fetches a snapshot. Redis errors surface as ErrSnapshotNotFound so
// the store falls through to its next tier.
func (s *RedisSnapshotStore) Load(ctx context.Context, symbol, timeframe string) (*Snapshot, error) {
	if s.client == nil {
		return nil, ErrSnapshotNotFound
	}

	data, err := s.client.Get(ctx, snapshotKey(symbol, timeframe)).Bytes()
	if err != nil {
		if err != redis.Nil && s.available.Swap(false) {
			s.logger.Warn().Err(err).Msg("Redis snapshot load failed, tier disabled")
		}
		return nil, ErrSnapshotNotFound
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrSnapshotNotFound
	}
	s.available.Store(true)
	return &snap, nil
}
