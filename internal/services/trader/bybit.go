package trader

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
)

// BybitSwapper places V5 spot market orders on Bybit.
type BybitSwapper struct {
	client *bybit.Client
	pricer pricer.Pricer
	logger *zap.Logger
}

// NewBybitSwapper creates a swapper. Markets are resolved from p on every swap.
func NewBybitSwapper(client *bybit.Client, p pricer.Pricer, logger *zap.Logger) *BybitSwapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BybitSwapper{client: client, pricer: p, logger: logger}
}

// Swap spends instr.InputAmount of FROM for TO with a market order.
// Spot market buys on Bybit take qty in the quote coin, so both sides pass FROM units.
// The fill is not polled, the receipt carries the exchange order id and a zero filled amount.
func (s *BybitSwapper) Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error) {
	o, err := resolveOrder(ctx, s.pricer, instr)
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	side := bybit.SideSell
	if !o.sell {
		side = bybit.SideBuy
	}

	linkID := clientOrderID
	res, err := s.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(o.market.Symbol()),
		Side:        side,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         o.amount.String(),
		OrderLinkID: &linkID,
	})
	if err != nil {
		return domain.SwapReceipt{}, errors.Wrapf(err, "failed to create bybit %s order", o.market.Symbol())
	}

	s.logger.Info("bybit order placed",
		zap.String("symbol", o.market.Symbol()),
		zap.Bool("sell", o.sell),
		zap.String("amount", o.amount.String()),
		zap.String("order_link_id", clientOrderID),
		zap.String("order_id", res.Result.OrderID))

	return domain.SwapReceipt{TxReference: res.Result.OrderID, FilledAmount: decimal.Zero}, nil
}

// Balances returns wallet balances of the unified account.
func (s *BybitSwapper) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	return BybitBalances(s.client)
}

// GetBalance returns the wallet balance of a coin.
func (s *BybitSwapper) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	balances, err := s.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return balances[coin], nil
}

// BybitBalances reads non-zero coin balances of the unified account.
func BybitBalances(client *bybit.Client) (map[string]decimal.Decimal, error) {
	res, err := client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return nil, errors.New("bybit API returned no wallet")
	}

	out := make(map[string]decimal.Decimal)
	for _, coin := range res.Result.List[0].Coin {
		if coin.WalletBalance == "" {
			continue
		}
		balance, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s balance", string(coin.Coin))
		}
		if balance.IsZero() {
			continue
		}
		out[string(coin.Coin)] = balance
	}
	return out, nil
}
