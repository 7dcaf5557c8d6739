package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/services/rebalance"
)

func TestParse_StaticTargets(t *testing.T) {
	conf, err := Parse([]byte(`
platform: Binance
numeraire: USDT
targets:
  BTC: "50"
  ETH: "30"
  USDT: "20"
target_order: [BTC, ETH, USDT]
decimals:
  USDT: 6
rebalance_interval: 6h
clamp_to_live_balance: true
`))
	require.NoError(t, err)

	assert.Equal(t, PlatformBinance, conf.Platform)
	assert.Equal(t, "USDT", conf.Numeraire)
	require.Len(t, conf.Targets, 3)
	assert.Equal(t, "BTC", conf.Targets[0].CoinType)
	assert.True(t, conf.Targets[0].TargetPercentage.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, conf.Universe)
	assert.Equal(t, int32(6), conf.Decimals["USDT"])
	assert.Equal(t, 6*time.Hour, conf.RebalanceInterval)
	assert.True(t, conf.ClampToLiveBalance)

	// defaults
	assert.True(t, conf.Granularity.Equal(decimal.NewFromInt(5)))
	assert.True(t, conf.DustThreshold.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, rebalance.ApportionLast, conf.Apportionment)
	assert.Equal(t, rebalance.SizingBalance, conf.Sizing)
	assert.Equal(t, defaultDataDir, conf.DataDir)
	assert.Equal(t, defaultHTTPAddr, conf.HTTPAddr)
	assert.Equal(t, float64(defaultRPS), conf.Guard.RequestsPerSecond)
	assert.Equal(t, uint32(defaultFailures), conf.Guard.FailureThreshold)
	assert.Equal(t, defaultOpenAfter, conf.Guard.OpenTimeout)

	planner := conf.PlannerConfig()
	assert.Equal(t, "USDT", planner.Numeraire)
}

func TestParse_TargetsSortedWithoutOrder(t *testing.T) {
	conf, err := Parse([]byte(`
platform: bybit
numeraire: USDT
targets:
  USDT: "40"
  BTC: "60"
`))
	require.NoError(t, err)
	require.Len(t, conf.Targets, 2)
	assert.Equal(t, "BTC", conf.Targets[0].CoinType)
	assert.Equal(t, "USDT", conf.Targets[1].CoinType)
}

func TestParse_Simulate(t *testing.T) {
	conf, err := Parse([]byte(`
platform: simulate
numeraire: USDT
targets_file: ./targets.json
universe: [BTC, USDT]
granularity: "1"
dust_threshold: "0.5"
apportionment: largest_remainder
sizing: portfolio
simulate:
  initial_balances:
    BTC: "0.5"
    USDT: "10000"
  fee_bps: "7.5"
  prices:
    BTC: "60000"
guard:
  requests_per_second: 2
  failure_threshold: 5
  open_timeout: 30s
`))
	require.NoError(t, err)

	assert.Equal(t, "./targets.json", conf.TargetsFile)
	assert.Empty(t, conf.Targets)
	assert.Equal(t, []string{"BTC", "USDT"}, conf.Universe)
	assert.True(t, conf.Granularity.Equal(decimal.NewFromInt(1)))
	assert.True(t, conf.DustThreshold.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, rebalance.ApportionLargestRemainder, conf.Apportionment)
	assert.Equal(t, rebalance.SizingPortfolio, conf.Sizing)
	assert.True(t, conf.Simulate.InitialBalances["BTC"].Equal(decimal.RequireFromString("0.5")))
	assert.True(t, conf.Simulate.FeeBps.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, conf.Simulate.Prices["BTC"].Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, 2.0, conf.Guard.RequestsPerSecond)
	assert.Equal(t, uint32(5), conf.Guard.FailureThreshold)
	assert.Equal(t, 30*time.Second, conf.Guard.OpenTimeout)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown platform", "platform: kraken\nnumeraire: USDT\ntargets: {BTC: \"100\"}\n"},
		{"missing numeraire", "platform: binance\ntargets: {BTC: \"100\"}\n"},
		{"no targets", "platform: binance\nnumeraire: USDT\n"},
		{"bad target", "platform: binance\nnumeraire: USDT\ntargets: {BTC: abc}\n"},
		{"bad order", "platform: binance\nnumeraire: USDT\ntargets: {BTC: \"100\"}\ntarget_order: [ETH]\n"},
		{"bad granularity", "platform: binance\nnumeraire: USDT\ngranularity: \"0\"\ntargets: {BTC: \"100\"}\n"},
		{"bad apportionment", "platform: binance\nnumeraire: USDT\napportionment: random\ntargets: {BTC: \"100\"}\n"},
		{"simulate without balances", "platform: simulate\nnumeraire: USDT\ntargets: {BTC: \"100\"}\n"},
		{"bad simulate price", "platform: simulate\nnumeraire: USDT\ntargets: {BTC: \"100\"}\nsimulate: {initial_balances: {USDT: \"1\"}, prices: {BTC: x}}\n"},
		{"not yaml", "platform: [binance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: simulate\nnumeraire: USDT\ntargets: {USDT: \"100\"}\nsimulate: {initial_balances: {USDT: \"100\"}}\n"), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PlatformSimulate, conf.Platform)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
