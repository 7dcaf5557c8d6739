package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeKindText(t *testing.T) {
	instr := TradeInstruction{FromCoin: "USDT", ToCoin: "ETH", InputAmount: decimal.NewFromInt(10), Kind: TradeKindFunding}

	data, err := json.Marshal(instr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"funding"`)

	var decoded TradeInstruction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TradeKindFunding, decoded.Kind)

	var k TradeKind
	assert.Error(t, k.UnmarshalText([]byte("hedge")))
	assert.Equal(t, "unknown", TradeKind(42).String())
}

func TestPortfolioSnapshot(t *testing.T) {
	snap := PortfolioSnapshot{
		Assets: []HeldAsset{
			{CoinType: "BTC", Balance: decimal.NewFromInt(1)},
			{CoinType: "USDT", Balance: decimal.NewFromInt(100)},
		},
	}

	assert.Equal(t, []string{"BTC", "USDT"}, snap.CoinTypes())

	btc, ok := snap.Asset("BTC")
	require.True(t, ok)
	assert.True(t, btc.Balance.Equal(decimal.NewFromInt(1)))
	_, ok = snap.Asset("ETH")
	assert.False(t, ok)

	clone := snap.Clone()
	clone.Assets[0].Balance = decimal.Zero
	assert.True(t, snap.Assets[0].Balance.Equal(decimal.NewFromInt(1)))
}

func TestPair(t *testing.T) {
	p := Pair{From: "BTC", To: "USDT"}
	assert.Equal(t, "BTCUSDT", p.Symbol())
	assert.Equal(t, "BTC_USDT", p.String())
	assert.Equal(t, Pair{From: "USDT", To: "BTC"}, p.Reverse())
}

func TestSumPercentages(t *testing.T) {
	sum := SumPercentages([]TargetAllocation{
		{CoinType: "BTC", TargetPercentage: decimal.RequireFromString("33.3")},
		{CoinType: "ETH", TargetPercentage: decimal.RequireFromString("66.7")},
	})
	assert.True(t, sum.Equal(decimal.NewFromInt(100)))
}
