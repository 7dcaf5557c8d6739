package rebalance

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

func percentages(targets []domain.TargetAllocation) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.TargetPercentage.String())
	}
	return out
}

func TestNormalize_PassThroughWhenSumIsHundred(t *testing.T) {
	targets := targetsOf("BTC", "33.3", "ETH", "33.3", "USDT", "33.4")

	out, err := Normalize(targets, defaultGranularity, ApportionLast)
	require.NoError(t, err)
	require.Equal(t, []string{"33.3", "33.3", "33.4"}, percentages(out))
}

func TestNormalize_RescaleAndApportionToLast(t *testing.T) {
	tests := []struct {
		name     string
		targets  []domain.TargetAllocation
		expected []string
	}{
		{
			name:     "rounded sum above 100",
			targets:  targetsOf("BTC", "30", "ETH", "30", "USDT", "30"),
			expected: []string{"35", "35", "30"},
		},
		{
			name:     "rounded sum below 100",
			targets:  targetsOf("BTC", "1", "ETH", "1", "SOL", "1", "USDT", "3"),
			expected: []string{"15", "15", "15", "55"},
		},
		{
			name:     "scale up small weights",
			targets:  targetsOf("BTC", "0.2", "ETH", "0.3", "USDT", "0.5"),
			expected: []string{"20", "30", "50"},
		},
		{
			name:     "halves round away from zero",
			targets:  targetsOf("BTC", "6.25", "USDT", "43.75"),
			expected: []string{"15", "85"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.targets, defaultGranularity, ApportionLast)
			require.NoError(t, err)
			require.Equal(t, len(tt.expected), len(out))
			for i := range out {
				require.True(t, out[i].TargetPercentage.Equal(dec(tt.expected[i])),
					"entry %d: expected %s got %s", i, tt.expected[i], out[i].TargetPercentage)
			}
			require.True(t, domain.SumPercentages(out).Equal(hundred))
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	targets := targetsOf("BTC", "30", "ETH", "30", "USDT", "30")
	_, err := Normalize(targets, defaultGranularity, ApportionLast)
	require.NoError(t, err)
	require.Equal(t, []string{"30", "30", "30"}, percentages(targets))
}

func TestNormalize_Anomalies(t *testing.T) {
	tests := []struct {
		name    string
		targets []domain.TargetAllocation
	}{
		{name: "empty", targets: nil},
		{name: "zero sum", targets: targetsOf("BTC", "0", "USDT", "0")},
		{name: "negative entry", targets: targetsOf("BTC", "-10", "USDT", "110")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.targets, defaultGranularity, ApportionLast)
			require.ErrorIs(t, err, ErrNormalizationAnomaly)
		})
	}
}

func TestNormalize_LastApportionmentFallsBackToLargestRemainder(t *testing.T) {
	// n equal weights rescale to 100/n; from n=13 on they round up to 5 and the last entry would go negative
	for _, n := range []int{11, 13, 30} {
		pairs := make([]any, 0, n*2)
		for i := 0; i < n; i++ {
			pairs = append(pairs, fmt.Sprintf("COIN%d", i), "1")
		}
		targets := targetsOf(pairs...)

		out, err := Normalize(targets, defaultGranularity, ApportionLast)
		require.NoError(t, err, "n=%d", n)
		require.True(t, domain.SumPercentages(out).Equal(hundred), "n=%d", n)
		for _, o := range out {
			require.False(t, o.TargetPercentage.IsNegative(), "n=%d %s=%s", n, o.CoinType, o.TargetPercentage)
		}
	}

	pairs := make([]any, 0, 60)
	for i := 0; i < 30; i++ {
		pairs = append(pairs, fmt.Sprintf("COIN%d", i), "1")
	}
	targets := targetsOf(pairs...)

	last, err := Normalize(targets, defaultGranularity, ApportionLast)
	require.NoError(t, err)
	largest, err := Normalize(targets, defaultGranularity, ApportionLargestRemainder)
	require.NoError(t, err)
	require.Equal(t, percentages(largest), percentages(last))

	fives := 0
	for _, o := range last {
		require.True(t, o.TargetPercentage.Equal(decimal.Zero) || o.TargetPercentage.Equal(dec("5")))
		if o.TargetPercentage.Equal(dec("5")) {
			fives++
		}
	}
	require.Equal(t, 20, fives)
}

func TestNormalize_LargestRemainder(t *testing.T) {
	// rescaled: 41.67, 33.33, 25 -> floors 40, 30, 25; drift 5 goes to the largest residual (33.33)
	targets := targetsOf("BTC", "50", "ETH", "40", "USDT", "30")

	out, err := Normalize(targets, defaultGranularity, ApportionLargestRemainder)
	require.NoError(t, err)
	require.Equal(t, []string{"40", "35", "25"}, percentages(out))
}

func TestNormalize_GranularityNotDividingHundred(t *testing.T) {
	targets := targetsOf("BTC", "1", "ETH", "1", "USDT", "1")

	for _, mode := range []Apportionment{ApportionLast, ApportionLargestRemainder} {
		out, err := Normalize(targets, dec("3"), mode)
		require.NoError(t, err, mode)
		require.True(t, domain.SumPercentages(out).Equal(hundred), mode)
	}
}

func TestNormalize_RandomAllocationsSumToHundred(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		n := 2 + rng.Intn(8)
		pairs := make([]any, 0, n*2)
		for i := 0; i < n; i++ {
			pairs = append(pairs, fmt.Sprintf("C%d", i), decimal.NewFromInt(int64(1+rng.Intn(60))).String())
		}
		targets := targetsOf(pairs...)

		for _, mode := range []Apportionment{ApportionLast, ApportionLargestRemainder} {
			out, err := Normalize(targets, defaultGranularity, mode)
			require.NoError(t, err, "run %d mode %s", run, mode)
			require.True(t, domain.SumPercentages(out).Equal(hundred), "run %d mode %s", run, mode)

			if domain.SumPercentages(targets).Equal(hundred) {
				continue
			}
			for i, o := range out {
				onGrid := o.TargetPercentage.Mod(defaultGranularity).IsZero()
				if mode == ApportionLast && i == len(out)-1 && !onGrid {
					continue
				}
				require.True(t, onGrid, "run %d mode %s entry %d = %s", run, mode, i, o.TargetPercentage)
			}
		}
	}
}
