package internal

import (
	"context"
	"fmt"
	"sync"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/services/trader"
	"github.com/vadiminshakov/rebalancer/internal/storage/simstate"
	"github.com/vadiminshakov/rebalancer/pkg/retrier"
)

type swapService interface {
	Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error)
}

type walletService interface {
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	GetBalance(ctx context.Context, coin string) (decimal.Decimal, error)
}

// serviceProvider defines a factory interface for creating platform-specific services.
type serviceProvider interface {
	Pricer() (pricer.Pricer, error)
	Wallet() (walletService, error)
	Swapper() (swapService, error)
}

// newServiceProvider creates a new service provider based on the client type.
// This is the single point of truth for dispatching to platform-specific implementations.
func newServiceProvider(client any, conf config.Config, logger *zap.Logger) (serviceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c, logger: logger}, nil
	case *bybit.Client:
		return &bybitProvider{client: c, logger: logger}, nil
	case *clients.SimulateClient:
		return &simulateProvider{client: c, conf: conf, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
	logger *zap.Logger

	swapperOnce sync.Once
	swapper     *trader.BinanceSwapper
}

func (p *binanceProvider) Pricer() (pricer.Pricer, error) {
	return pricer.NewBinancePricer(p.client), nil
}

func (p *binanceProvider) getSwapper() *trader.BinanceSwapper {
	p.swapperOnce.Do(func() {
		p.swapper = trader.NewBinanceSwapper(p.client, pricer.NewBinancePricer(p.client),
			retrier.New(retrier.WithMaxRetries(10)), p.logger)
	})
	return p.swapper
}

func (p *binanceProvider) Wallet() (walletService, error) {
	return p.getSwapper(), nil
}

func (p *binanceProvider) Swapper() (swapService, error) {
	return p.getSwapper(), nil
}

type bybitProvider struct {
	client *bybit.Client
	logger *zap.Logger
}

func (p *bybitProvider) Pricer() (pricer.Pricer, error) {
	return pricer.NewBybitPricer(p.client), nil
}

func (p *bybitProvider) Wallet() (walletService, error) {
	return trader.NewBybitSwapper(p.client, pricer.NewBybitPricer(p.client), p.logger), nil
}

func (p *bybitProvider) Swapper() (swapService, error) {
	return trader.NewBybitSwapper(p.client, pricer.NewBybitPricer(p.client), p.logger), nil
}

type simulateProvider struct {
	client *clients.SimulateClient
	conf   config.Config
	logger *zap.Logger

	pricer     pricer.Pricer
	pricerOnce sync.Once

	swapper    *trader.SimulateSwapper
	swapperErr error
	swapOnce   sync.Once
}

func (p *simulateProvider) getPricer() pricer.Pricer {
	p.pricerOnce.Do(func() {
		if len(p.conf.Simulate.Prices) > 0 {
			p.pricer = pricer.NewStaticPricer(p.conf.Numeraire, p.conf.Simulate.Prices)
			return
		}
		p.pricer = pricer.NewBinancePricer(p.client.GetBinanceClient())
	})
	return p.pricer
}

func (p *simulateProvider) getSwapper() (*trader.SimulateSwapper, error) {
	p.swapOnce.Do(func() {
		store, err := simstate.NewStore(p.client.Scope)
		if err != nil {
			p.swapperErr = errors.Wrap(err, "init simulate state store")
			return
		}
		p.swapper, p.swapperErr = trader.NewSimulateSwapper(p.logger, p.getPricer(),
			p.conf.Simulate.InitialBalances, p.conf.Simulate.FeeBps, store)
	})
	return p.swapper, p.swapperErr
}

func (p *simulateProvider) Pricer() (pricer.Pricer, error) {
	return p.getPricer(), nil
}

func (p *simulateProvider) Wallet() (walletService, error) {
	return p.getSwapper()
}

func (p *simulateProvider) Swapper() (swapService, error) {
	return p.getSwapper()
}
