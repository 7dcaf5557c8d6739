package trader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

type swapper interface {
	Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error)
}

// GuardSettings configures GuardedSwapper.
type GuardSettings struct {
	// RequestsPerSecond swap rate limit, zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// FailureThreshold consecutive failures that open the breaker.
	FailureThreshold uint32
	// OpenTimeout time the breaker stays open before a trial swap is let through.
	OpenTimeout time.Duration
}

// DefaultGuardSettings returns conservative exchange limits.
func DefaultGuardSettings() GuardSettings {
	return GuardSettings{
		RequestsPerSecond: 5,
		Burst:             1,
		FailureThreshold:  3,
		OpenTimeout:       time.Minute,
	}
}

// GuardedSwapper wraps a swapper with a rate limiter and a circuit breaker.
type GuardedSwapper struct {
	next    swapper
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedSwapper decorates next. name labels the breaker in logs.
func NewGuardedSwapper(name string, next swapper, settings GuardSettings, logger *zap.Logger) *GuardedSwapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultGuardSettings().FailureThreshold
	}
	if settings.Burst < 1 {
		settings.Burst = 1
	}

	var limiter *rate.Limiter
	if settings.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst)
	}

	threshold := settings.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("swap circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &GuardedSwapper{next: next, limiter: limiter, breaker: breaker}
}

// Swap waits for the limiter and forwards the swap unless the breaker is open.
func (g *GuardedSwapper) Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return domain.SwapReceipt{}, errors.Wrap(err, "swap rate limiter")
		}
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Swap(ctx, instr, clientOrderID)
	})
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	return res.(domain.SwapReceipt), nil
}

// State reports the breaker state.
func (g *GuardedSwapper) State() gobreaker.State {
	return g.breaker.State()
}
