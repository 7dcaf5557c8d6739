// Package actions stores the audit trail of executed rebalancing plans.
package actions

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	DefaultDir   = "./wal/actions"
	segmentLimit = 100
	maxSegments  = 10

	actionKeyPrefix = "action_"
)

// WALStore persists action records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// NewWALStore initializes a WAL-backed action store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "action_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init action WAL")
	}

	return &WALStore{wal: wal, now: time.Now}, nil
}

// RecordAction appends a human-readable description of an executed plan.
func (s *WALStore) RecordAction(description, reason string) error {
	if s == nil || s.wal == nil {
		return errors.New("action store is not initialized")
	}
	if strings.TrimSpace(description) == "" {
		return errors.New("action description is required")
	}

	record := domain.ActionRecord{
		Timestamp:   s.now().UTC(),
		Description: description,
		Reason:      reason,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal action record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, actionKeyPrefix+record.Timestamp.Format(time.RFC3339Nano), payload)
}

// EventsAfter returns all action records written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.ActionRecordIndexed, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("action store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.ActionRecordIndexed, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, actionKeyPrefix) {
			continue
		}

		var record domain.ActionRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode action record")
		}
		records = append(records, domain.ActionRecordIndexed{Index: idx, Action: record})
	}

	return records, nil
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
		return errors.New("action store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
