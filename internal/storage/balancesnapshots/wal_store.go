// Package balancesnapshots keeps one portfolio snapshot per rebalancing run.
package balancesnapshots

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	defaultSnapshotDir   = "./wal/balance"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "portfolio_snapshot_"
)

type storedSnapshot struct {
	RunID    string                   `json:"runId"`
	Snapshot domain.PortfolioSnapshot `json:"snapshot"`
}

// WALStore persists portfolio snapshots in a WAL for history and streaming.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save writes the snapshot taken for runID.
func (s *WALStore) Save(runID string, snapshot domain.PortfolioSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("balance snapshot store is not initialized")
	}
	if runID == "" {
		return fmt.Errorf("balance snapshot run id is required")
	}

	payload, err := json.Marshal(storedSnapshot{RunID: runID, Snapshot: snapshot})
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, snapshotKeyPrefix+runID, payload)
}

// SnapshotsAfter returns all snapshots written after the provided WAL index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("balance snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.BalanceSnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var stored storedSnapshot
		if err := json.Unmarshal(payload, &stored); err != nil {
			return nil, errors.Wrap(err, "decode balance snapshot")
		}
		records = append(records, domain.BalanceSnapshotRecord{
			Index:    idx,
			RunID:    stored.RunID,
			Snapshot: stored.Snapshot,
		})
	}

	return records, nil
}

// Latest returns the most recent snapshot, ok is false when none is stored.
func (s *WALStore) Latest() (domain.BalanceSnapshotRecord, bool, error) {
	current := s.CurrentIndex()
	if current == 0 {
		return domain.BalanceSnapshotRecord{}, false, nil
	}
	records, err := s.SnapshotsAfter(current - 1)
	if err != nil {
		return domain.BalanceSnapshotRecord{}, false, err
	}
	if len(records) == 0 {
		return domain.BalanceSnapshotRecord{}, false, nil
	}
	return records[len(records)-1], true, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balance snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
