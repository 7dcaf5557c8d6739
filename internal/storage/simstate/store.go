package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const defaultStateDir = "./wal/simulate"

// Store persists the simulated wallet so restarts keep balances.
type Store struct {
	path string
}

func getStateDir() string {
	if stateDir := os.Getenv("REBALANCER_SIMULATE_STATE_DIR"); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// NewStore creates a simulator state store for the given scope (usually the wallet name).
func NewStore(scope string) (*Store, error) {
	stateDir := getStateDir()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	storeFileName := sanitizeScope(scope)
	if storeFileName == "" {
		storeFileName = "wallet"
	}

	return &Store{path: filepath.Join(stateDir, fmt.Sprintf("%s.json", storeFileName))}, nil
}

// State represents all persisted simulator data.
type State struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Wallet    map[string]string `json:"wallet"`
	FeesPaid  map[string]string `json:"fees_paid,omitempty"`
	Swaps     int               `json:"swaps"`
}

// NewState encodes wallet balances and accumulated fees.
func NewState(wallet, fees map[string]decimal.Decimal, swaps int) State {
	state := State{
		UpdatedAt: time.Now().UTC(),
		Wallet:    make(map[string]string, len(wallet)),
		FeesPaid:  make(map[string]string, len(fees)),
		Swaps:     swaps,
	}
	for coin, balance := range wallet {
		state.Wallet[coin] = balance.String()
	}
	for coin, fee := range fees {
		state.FeesPaid[coin] = fee.String()
	}
	return state
}

// Balances decodes the stored wallet.
func (s State) Balances() (map[string]decimal.Decimal, error) {
	return decodeAmounts(s.Wallet)
}

// Fees decodes the accumulated fees.
func (s State) Fees() (map[string]decimal.Decimal, error) {
	return decodeAmounts(s.FeesPaid)
}

func decodeAmounts(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for coin, value := range raw {
		if value == "" {
			out[coin] = decimal.Zero
			continue
		}
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s amount", coin)
		}
		out[coin] = parsed
	}
	return out, nil
}

// Load reads simulator state from disk. A missing file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
