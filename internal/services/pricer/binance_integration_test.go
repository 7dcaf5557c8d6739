//go:build integration

package pricer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// TestBinancePricer_Prices_Integration calls the real Binance public API.
// To run this test, use: go test -tags=integration -v ./...
func TestBinancePricer_Prices_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	pricer := NewBinancePricer(clients.NewBinanceClient("", ""))

	table, err := pricer.Prices(context.Background())
	require.NoError(t, err)

	price, err := table.Price(domain.Pair{From: "BTC", To: "USDT"})
	require.NoError(t, err)
	require.True(t, price.IsPositive())
	t.Logf("Current BTC_USDT price: %s", price.String())
}
