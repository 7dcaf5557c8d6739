package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	DefaultJournalDir = "./wal/trades"

	walDirPermissions   = 0o755
	walSegmentThreshold = 1000
	walMaxSegments      = 100

	tradeIntentKeyPrefix     = "trade_intent_"
	tradeIntentStatusPending = "pending"
	tradeIntentStatusDone    = "done"
	tradeIntentStatusFailed  = "failed"
)

// TradeIntent journaled state of one swap instruction.
type TradeIntent struct {
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	Status      string           `json:"status"`
	FromCoin    string           `json:"from"`
	ToCoin      string           `json:"to"`
	Amount      decimal.Decimal  `json:"amount"`
	Kind        domain.TradeKind `json:"kind"`
	Time        time.Time        `json:"time"`
	TxReference string           `json:"tx_reference,omitempty"`
	Filled      decimal.Decimal  `json:"filled,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Journal records swap intents in a WAL before they reach the exchange,
// so an interrupted run leaves pending intents to reconcile.
type Journal struct {
	mu      sync.Mutex
	wal     *gowal.Wal
	intents []*TradeIntent
	index   map[string]*TradeIntent
}

// OpenJournal opens (or creates) the journal WAL and replays recorded intents.
func OpenJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultJournalDir
	}
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	j := &Journal{wal: wal, index: make(map[string]*TradeIntent)}
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, tradeIntentKeyPrefix) {
			continue
		}
		var intent TradeIntent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			return nil, errors.Wrapf(err, "decode trade intent %s", msg.Key)
		}
		j.remember(&intent)
	}

	return j, nil
}

// remember keeps the latest record per intent id, in first-seen order.
func (j *Journal) remember(intent *TradeIntent) {
	if existing, ok := j.index[intent.ID]; ok {
		*existing = *intent
		return
	}
	j.intents = append(j.intents, intent)
	j.index[intent.ID] = intent
}

// Prepare journals a pending intent for the instruction. The intent id doubles as client order id.
func (j *Journal) Prepare(runID string, instr domain.TradeInstruction, at time.Time) (*TradeIntent, error) {
	intent := &TradeIntent{
		ID:       uuid.New().String(),
		RunID:    runID,
		Status:   tradeIntentStatusPending,
		FromCoin: instr.FromCoin,
		ToCoin:   instr.ToCoin,
		Amount:   instr.InputAmount,
		Kind:     instr.Kind,
		Time:     at,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persist(intent); err != nil {
		return nil, err
	}
	j.remember(intent)
	return intent, nil
}

// MarkDone records a successful swap.
func (j *Journal) MarkDone(intent *TradeIntent, receipt domain.SwapReceipt) error {
	if intent == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	intent.Status = tradeIntentStatusDone
	intent.TxReference = receipt.TxReference
	intent.Filled = receipt.FilledAmount
	intent.Error = ""
	return j.persist(intent)
}

// MarkFailed records a failed swap.
func (j *Journal) MarkFailed(intent *TradeIntent, cause error) error {
	if intent == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	intent.Status = tradeIntentStatusFailed
	if cause != nil {
		intent.Error = cause.Error()
	} else {
		intent.Error = ""
	}
	return j.persist(intent)
}

// PendingIntents returns intents that never reached done or failed.
func (j *Journal) PendingIntents() []TradeIntent {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []TradeIntent
	for _, intent := range j.intents {
		if intent.Status == tradeIntentStatusPending {
			out = append(out, *intent)
		}
	}
	return out
}

// Intents returns every known intent of a run.
func (j *Journal) Intents(runID string) []TradeIntent {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []TradeIntent
	for _, intent := range j.intents {
		if intent.RunID == runID {
			out = append(out, *intent)
		}
	}
	return out
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

func (j *Journal) persist(intent *TradeIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "failed to marshal trade intent")
	}
	key := fmt.Sprintf("%s%s", tradeIntentKeyPrefix, intent.ID)
	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, data)
}
