package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/storage/simstate"
)

const simulatePrecision = 18

var bpsDivisor = decimal.NewFromInt(10000)

// SimulateSwapper is an in-memory spot wallet that fills swaps at the current price table.
type SimulateSwapper struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	pricer     pricer.Pricer
	feeBps     decimal.Decimal
	wallet     map[string]decimal.Decimal
	fees       map[string]decimal.Decimal
	orders     map[string]domain.SwapReceipt
	swaps      int
	stateStore *simstate.Store
}

// NewSimulateSwapper creates a simulated wallet seeded with initial balances.
// Persisted state, when present in stateStore, overrides the seed.
func NewSimulateSwapper(logger *zap.Logger, p pricer.Pricer, initial map[string]decimal.Decimal,
	feeBps decimal.Decimal, stateStore *simstate.Store) (*SimulateSwapper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p == nil {
		return nil, errors.New("pricer is required for SimulateSwapper")
	}
	if feeBps.IsNegative() {
		return nil, errors.Errorf("fee must not be negative, got %s bps", feeBps.String())
	}

	wallet := make(map[string]decimal.Decimal, len(initial))
	for coin, balance := range initial {
		wallet[coin] = balance
	}

	s := &SimulateSwapper{
		logger:     logger,
		pricer:     p,
		feeBps:     feeBps,
		wallet:     wallet,
		fees:       make(map[string]decimal.Decimal),
		orders:     make(map[string]domain.SwapReceipt),
		stateStore: stateStore,
	}
	if err := s.restoreState(); err != nil {
		logger.Warn("failed to restore simulate state", zap.Error(err))
	}

	logger.Info("simulate wallet init", zap.Int("coins", len(s.wallet)), zap.String("fee_bps", feeBps.String()))
	return s, nil
}

// Swap sells instr.InputAmount of FROM for TO at the current price, net of the fee.
func (s *SimulateSwapper) Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error) {
	if !instr.InputAmount.IsPositive() {
		return domain.SwapReceipt{}, fmt.Errorf("swap amount must be positive, got %s", instr.InputAmount.String())
	}

	table, err := s.pricer.Prices(ctx)
	if err != nil {
		return domain.SwapReceipt{}, errors.Wrap(err, "failed to get prices for simulated swap")
	}
	price, err := table.Price(domain.Pair{From: instr.FromCoin, To: instr.ToCoin})
	if err != nil {
		return domain.SwapReceipt{}, errors.Wrap(err, "failed to price simulated swap")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt, ok := s.orders[clientOrderID]; ok {
		return receipt, nil
	}

	have := s.wallet[instr.FromCoin]
	if have.LessThan(instr.InputAmount) {
		return domain.SwapReceipt{}, fmt.Errorf("insufficient %s balance: have %s need %s",
			instr.FromCoin, have.String(), instr.InputAmount.String())
	}

	gross := instr.InputAmount.Mul(price)
	fee := gross.Mul(s.feeBps).Div(bpsDivisor).Truncate(simulatePrecision)
	received := gross.Sub(fee).Truncate(simulatePrecision)

	s.wallet[instr.FromCoin] = have.Sub(instr.InputAmount)
	s.wallet[instr.ToCoin] = s.wallet[instr.ToCoin].Add(received)
	s.fees[instr.ToCoin] = s.fees[instr.ToCoin].Add(fee)
	s.swaps++

	receipt := domain.SwapReceipt{TxReference: "sim-" + clientOrderID, FilledAmount: received}
	s.orders[clientOrderID] = receipt
	s.persist()

	s.logger.Info("Simulated swap executed",
		zap.String("id", clientOrderID),
		zap.String("from", instr.FromCoin),
		zap.String("to", instr.ToCoin),
		zap.String("amount", instr.InputAmount.String()),
		zap.String("price", price.String()),
		zap.String("received", received.String()))

	return receipt, nil
}

// GetBalance returns the wallet balance of a coin.
func (s *SimulateSwapper) GetBalance(_ context.Context, coin string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallet[coin], nil
}

// Balances returns a copy of every wallet balance.
func (s *SimulateSwapper) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.wallet))
	for coin, balance := range s.wallet {
		out[coin] = balance
	}
	return out, nil
}

// FeesPaid returns accumulated fees per coin.
func (s *SimulateSwapper) FeesPaid() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.fees))
	for coin, fee := range s.fees {
		out[coin] = fee
	}
	return out
}

// Coins lists wallet coins in lexical order.
func (s *SimulateSwapper) Coins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coins := make([]string, 0, len(s.wallet))
	for coin := range s.wallet {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	return coins
}

func (s *SimulateSwapper) restoreState() error {
	if s.stateStore == nil {
		return nil
	}
	state, err := s.stateStore.Load()
	if err != nil || state == nil {
		return err
	}

	wallet, err := state.Balances()
	if err != nil {
		return err
	}
	fees, err := state.Fees()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for coin, balance := range wallet {
		s.wallet[coin] = balance
	}
	s.fees = fees
	s.swaps = state.Swaps

	return nil
}

func (s *SimulateSwapper) persist() {
	if s.stateStore == nil {
		return
	}
	if err := s.stateStore.Save(simstate.NewState(s.wallet, s.fees, s.swaps)); err != nil {
		s.logger.Warn("failed to persist simulate state", zap.Error(err))
	}
}
