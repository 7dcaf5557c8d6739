package trader

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

type scriptedSwapper struct {
	calls int
	errs  []error
}

func (s *scriptedSwapper) Swap(_ context.Context, instr domain.TradeInstruction, id string) (domain.SwapReceipt, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return domain.SwapReceipt{}, err
		}
	}
	return domain.SwapReceipt{TxReference: id, FilledAmount: instr.InputAmount}, nil
}

func TestGuardedSwapper_PassesThrough(t *testing.T) {
	next := &scriptedSwapper{}
	g := NewGuardedSwapper("test", next, DefaultGuardSettings(), nil)

	receipt, err := g.Swap(context.Background(), instruction("BTC", "USDT", "1"), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", receipt.TxReference)
	assert.True(t, receipt.FilledAmount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuardedSwapper_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("exchange down")
	next := &scriptedSwapper{errs: []error{boom, boom}}
	g := NewGuardedSwapper("test", next, GuardSettings{FailureThreshold: 2, OpenTimeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Swap(ctx, instruction("BTC", "USDT", "1"), "id")
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Swap(ctx, instruction("BTC", "USDT", "1"), "id")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls, "open breaker must not reach the exchange")
}

func TestGuardedSwapper_LimiterHonoursContext(t *testing.T) {
	next := &scriptedSwapper{}
	g := NewGuardedSwapper("test", next, GuardSettings{RequestsPerSecond: 0.001, Burst: 1}, nil)

	_, err := g.Swap(context.Background(), instruction("BTC", "USDT", "1"), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Swap(ctx, instruction("BTC", "USDT", "1"), "second")
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}
