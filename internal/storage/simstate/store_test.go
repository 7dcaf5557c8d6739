package simstate

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REBALANCER_SIMULATE_STATE_DIR", dir)

	store, err := NewStore("Main Wallet")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "main_wallet.json"), store.Path())

	state, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, state)

	wallet := map[string]decimal.Decimal{
		"BTC":  decimal.RequireFromString("0.125"),
		"USDT": decimal.NewFromInt(1000),
	}
	fees := map[string]decimal.Decimal{"USDT": decimal.RequireFromString("0.75")}
	require.NoError(t, store.Save(NewState(wallet, fees, 3)))

	state, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, 3, state.Swaps)

	balances, err := state.Balances()
	require.NoError(t, err)
	require.True(t, balances["BTC"].Equal(wallet["BTC"]))
	require.True(t, balances["USDT"].Equal(wallet["USDT"]))

	paid, err := state.Fees()
	require.NoError(t, err)
	require.True(t, paid["USDT"].Equal(decimal.RequireFromString("0.75")))
}

func TestState_BalancesRejectsGarbage(t *testing.T) {
	state := State{Wallet: map[string]string{"BTC": "abc", "ETH": ""}}
	_, err := state.Balances()
	require.Error(t, err)

	state.Wallet = map[string]string{"ETH": ""}
	balances, err := state.Balances()
	require.NoError(t, err)
	require.True(t, balances["ETH"].IsZero())
}

func TestSanitizeScope(t *testing.T) {
	require.Equal(t, "binance_main", sanitizeScope("  Binance / Main "))
	require.Equal(t, "", sanitizeScope("   "))
	require.Equal(t, "a_b", sanitizeScope("a--b!!"))
}
