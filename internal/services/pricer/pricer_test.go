package pricer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

func TestTable_Price(t *testing.T) {
	table := Table{
		"BTCUSDT": decimal.NewFromInt(50000),
		"USDTTRY": decimal.NewFromInt(40),
	}

	price, err := table.Price(domain.Pair{From: "BTC", To: "USDT"})
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(50000)))

	price, err = table.Price(domain.Pair{From: "TRY", To: "USDT"})
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("0.025")))

	price, err = table.Price(domain.Pair{From: "USDT", To: "USDT"})
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(1)))

	_, err = table.Price(domain.Pair{From: "DOGE", To: "USDT"})
	require.Error(t, err)
}

func TestTable_Market(t *testing.T) {
	table := Table{"ETHBTC": decimal.RequireFromString("0.05")}

	pair, direct, ok := table.Market("ETH", "BTC")
	require.True(t, ok)
	require.True(t, direct)
	require.Equal(t, domain.Pair{From: "ETH", To: "BTC"}, pair)

	pair, direct, ok = table.Market("BTC", "ETH")
	require.True(t, ok)
	require.False(t, direct)
	require.Equal(t, domain.Pair{From: "ETH", To: "BTC"}, pair)

	_, _, ok = table.Market("BTC", "SOL")
	require.False(t, ok)
}

func TestStaticPricer(t *testing.T) {
	p := NewStaticPricer("USDT", map[string]decimal.Decimal{
		"BTC":  decimal.NewFromInt(60000),
		"USDT": decimal.NewFromInt(1),
	})

	table, err := p.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	require.True(t, table["BTCUSDT"].Equal(decimal.NewFromInt(60000)))

	table["BTCUSDT"] = decimal.Zero
	p.Set("ETHUSDT", decimal.NewFromInt(3000))

	table, err = p.Prices(context.Background())
	require.NoError(t, err)
	require.True(t, table["BTCUSDT"].Equal(decimal.NewFromInt(60000)), "returned table must be a copy")
	require.True(t, table["ETHUSDT"].Equal(decimal.NewFromInt(3000)))
}

func TestStaticPricerCrossMarkets(t *testing.T) {
	p := NewStaticPricer("USDT", map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(50000),
		"ETH": decimal.NewFromInt(2500),
	})

	table, err := p.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 3)
	require.True(t, table["BTCETH"].Equal(decimal.NewFromInt(20)))

	price, err := table.Price(domain.Pair{From: "ETH", To: "BTC"})
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("0.05")))

	_, direct, ok := table.Market("ETH", "BTC")
	require.True(t, ok)
	require.False(t, direct)
}
