package trader

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/storage/simstate"
)

func newTestPricer() *pricer.StaticPricer {
	return pricer.NewStaticPricer("USDT", map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(50000),
		"ETH": decimal.NewFromInt(2500),
	})
}

func newTestSwapper(t *testing.T, feeBps int64, store *simstate.Store) *SimulateSwapper {
	t.Helper()
	s, err := NewSimulateSwapper(zap.NewNop(), newTestPricer(), map[string]decimal.Decimal{
		"BTC":  decimal.NewFromInt(1),
		"USDT": decimal.NewFromInt(10000),
	}, decimal.NewFromInt(feeBps), store)
	require.NoError(t, err)
	return s
}

func instruction(from, to, amount string) domain.TradeInstruction {
	return domain.TradeInstruction{FromCoin: from, ToCoin: to, InputAmount: decimal.RequireFromString(amount)}
}

func TestSimulateSwapper_New(t *testing.T) {
	_, err := NewSimulateSwapper(nil, nil, nil, decimal.Zero, nil)
	require.Error(t, err)

	_, err = NewSimulateSwapper(nil, newTestPricer(), nil, decimal.NewFromInt(-1), nil)
	require.Error(t, err)

	s := newTestSwapper(t, 0, nil)
	assert.Equal(t, []string{"BTC", "USDT"}, s.Coins())
}

func TestSimulateSwapper_SwapDirectMarket(t *testing.T) {
	s := newTestSwapper(t, 0, nil)
	ctx := context.Background()

	receipt, err := s.Swap(ctx, instruction("BTC", "USDT", "0.1"), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "sim-order-1", receipt.TxReference)
	assert.True(t, receipt.FilledAmount.Equal(decimal.NewFromInt(5000)))

	btc, err := s.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	usdt, err := s.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.True(t, btc.Equal(decimal.RequireFromString("0.9")))
	assert.True(t, usdt.Equal(decimal.NewFromInt(15000)))
}

func TestSimulateSwapper_SwapInverseMarketWithFee(t *testing.T) {
	s := newTestSwapper(t, 10, nil)
	ctx := context.Background()

	// 5000 USDT buys 2 ETH, 10 bps fee leaves 1.998
	receipt, err := s.Swap(ctx, instruction("USDT", "ETH", "5000"), "order-2")
	require.NoError(t, err)
	assert.True(t, receipt.FilledAmount.Equal(decimal.RequireFromString("1.998")), receipt.FilledAmount.String())

	balances, err := s.Balances(ctx)
	require.NoError(t, err)
	assert.True(t, balances["USDT"].Equal(decimal.NewFromInt(5000)))
	assert.True(t, balances["ETH"].Equal(decimal.RequireFromString("1.998")))
	assert.True(t, s.FeesPaid()["ETH"].Equal(decimal.RequireFromString("0.002")))
}

func TestSimulateSwapper_SwapIsIdempotentPerOrderID(t *testing.T) {
	s := newTestSwapper(t, 0, nil)
	ctx := context.Background()

	_, err := s.Swap(ctx, instruction("BTC", "USDT", "0.5"), "same")
	require.NoError(t, err)
	_, err = s.Swap(ctx, instruction("BTC", "USDT", "0.5"), "same")
	require.NoError(t, err)

	btc, _ := s.GetBalance(ctx, "BTC")
	assert.True(t, btc.Equal(decimal.RequireFromString("0.5")))
}

func TestSimulateSwapper_Errors(t *testing.T) {
	s := newTestSwapper(t, 0, nil)
	ctx := context.Background()

	_, err := s.Swap(ctx, instruction("BTC", "USDT", "2"), "too-much")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient BTC balance")

	_, err = s.Swap(ctx, instruction("BTC", "USDT", "0"), "zero")
	require.Error(t, err)

	_, err = s.Swap(ctx, instruction("BTC", "DOGE", "0.1"), "no-market")
	require.Error(t, err)

	btc, _ := s.GetBalance(ctx, "BTC")
	assert.True(t, btc.Equal(decimal.NewFromInt(1)), "failed swaps must not touch the wallet")
}

func TestSimulateSwapper_PersistsState(t *testing.T) {
	t.Setenv("REBALANCER_SIMULATE_STATE_DIR", t.TempDir())
	store, err := simstate.NewStore("test")
	require.NoError(t, err)

	s := newTestSwapper(t, 0, store)
	_, err = s.Swap(context.Background(), instruction("BTC", "USDT", "0.5"), "persist")
	require.NoError(t, err)

	restored := newTestSwapper(t, 0, store)
	balances, err := restored.Balances(context.Background())
	require.NoError(t, err)
	assert.True(t, balances["BTC"].Equal(decimal.RequireFromString("0.5")))
	assert.True(t, balances["USDT"].Equal(decimal.NewFromInt(35000)))
}
