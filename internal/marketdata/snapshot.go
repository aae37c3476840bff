package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot is the last-known-good candle series for one (symbol, timeframe)
// key, kept in durable storage so a process restart or total provider outage
// does not immediately blind the analyzer.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Candles   []Candle  `json:"candles"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ErrSnapshotNotFound is returned by SnapshotStore.Load when no snapshot
// exists for the key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists candle snapshots to a durable side-channel.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, symbol, timeframe string) (*Snapshot, error)
}

// DiskSnapshotStore writes one JSON file per (symbol, timeframe) key under a
// base directory.
type DiskSnapshotStore struct {
	dir string
}

// NewDiskSnapshotStore creates the base directory if needed.
func NewDiskSnapshotStore(dir string) (*DiskSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &DiskSnapshotStore{dir: dir}, nil
}

func (s *DiskSnapshotStore) path(symbol, timeframe string) string {
	name := fmt.Sprintf("%s_%s.json", strings.ToUpper(symbol), timeframe)
	return filepath.Join(s.dir, name)
}

// Save writes the snapshot atomically via a temp file rename.
func (s *DiskSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return errors.New("cannot save nil snapshot")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	target := s.path(snap.Symbol, snap.Timeframe)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot back. Missing or corrupt files both surface as
// ErrSnapshotNotFound; a corrupt snapshot is as useless as an absent one.
func (s *DiskSnapshotStore) Load(ctx context.Context, symbol, timeframe string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(symbol, timeframe))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrSnapshotNotFound
	}
	return &snap, nil
}
