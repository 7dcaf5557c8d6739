package trader

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()
	p := newTestPricer()

	o, err := resolveOrder(ctx, p, instruction("BTC", "USDT", "0.5"))
	require.NoError(t, err)
	assert.True(t, o.sell)
	assert.Equal(t, domain.Pair{From: "BTC", To: "USDT"}, o.market)

	o, err = resolveOrder(ctx, p, instruction("USDT", "ETH", "100"))
	require.NoError(t, err)
	assert.False(t, o.sell)
	assert.Equal(t, domain.Pair{From: "ETH", To: "USDT"}, o.market)

	o, err = resolveOrder(ctx, p, instruction("ETH", "BTC", "2"))
	require.NoError(t, err)
	assert.False(t, o.sell)
	assert.Equal(t, domain.Pair{From: "BTC", To: "ETH"}, o.market)

	_, err = resolveOrder(ctx, p, instruction("BTC", "DOGE", "1"))
	require.True(t, errors.Is(err, ErrNoMarket))

	_, err = resolveOrder(ctx, p, instruction("BTC", "BTC", "1"))
	require.Error(t, err)

	_, err = resolveOrder(ctx, p, instruction("BTC", "USDT", "-1"))
	require.Error(t, err)
}
