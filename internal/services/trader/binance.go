package trader

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/pkg/retrier"
)

var errOrderNotFilled = errors.New("order not filled yet")

// BinanceSwapper places spot market orders on Binance.
type BinanceSwapper struct {
	client  *binance.Client
	pricer  pricer.Pricer
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBinanceSwapper creates a swapper. Markets are resolved from p on every swap.
func NewBinanceSwapper(client *binance.Client, p pricer.Pricer, r *retrier.Retrier, logger *zap.Logger) *BinanceSwapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if r == nil {
		r = retrier.New()
	}
	return &BinanceSwapper{client: client, pricer: p, retrier: r, logger: logger}
}

// Swap spends instr.InputAmount of FROM for TO with a market order and waits for the fill.
func (s *BinanceSwapper) Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error) {
	o, err := resolveOrder(ctx, s.pricer, instr)
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	svc := s.client.NewCreateOrderService().Symbol(o.market.Symbol()).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(clientOrderID)
	if o.sell {
		svc = svc.Side(binance.SideTypeSell).Quantity(o.amount.String())
	} else {
		// FROM is the quote asset, spend it with quoteOrderQty
		svc = svc.Side(binance.SideTypeBuy).QuoteOrderQty(o.amount.String())
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return domain.SwapReceipt{}, errors.Wrapf(err, "failed to create binance order %s", clientOrderID)
	}

	s.logger.Info("binance order placed",
		zap.String("symbol", o.market.Symbol()),
		zap.Bool("sell", o.sell),
		zap.String("amount", o.amount.String()),
		zap.String("client_order_id", clientOrderID),
		zap.Int64("order_id", resp.OrderID))

	filled, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.orderFilled(ctx, o, clientOrderID)
	})
	if err != nil {
		return domain.SwapReceipt{}, errors.Wrapf(err, "binance order %s was not confirmed", clientOrderID)
	}

	return domain.SwapReceipt{TxReference: clientOrderID, FilledAmount: filled}, nil
}

// orderFilled returns the amount of TO received once the order is final.
func (s *BinanceSwapper) orderFilled(ctx context.Context, o order, clientOrderID string) (decimal.Decimal, error) {
	res, err := s.client.NewGetOrderService().
		Symbol(o.market.Symbol()).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == -2013 {
			// order does not exist (yet)
			return decimal.Zero, errOrderNotFilled
		}
		return decimal.Zero, errors.Wrap(err, "failed to query binance order status")
	}

	received := res.CummulativeQuoteQuantity
	if !o.sell {
		received = res.ExecutedQuantity
	}
	qty, parseErr := decimal.NewFromString(received)
	if parseErr != nil {
		return decimal.Zero, retrier.Permanent(errors.Wrap(parseErr, "failed to parse filled quantity"))
	}

	switch res.Status {
	case binance.OrderStatusTypeFilled:
		return qty, nil
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		if qty.IsPositive() {
			return qty, nil
		}
		return decimal.Zero, retrier.Permanent(errors.Errorf("binance order %s ended with status %s", clientOrderID, res.Status))
	default:
		return decimal.Zero, errOrderNotFilled
	}
}

// Balances returns free balances of every non-zero asset in the spot account.
func (s *BinanceSwapper) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return BinanceBalances(ctx, s.client)
}

// GetBalance returns the free balance of a coin.
func (s *BinanceSwapper) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	balances, err := s.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return balances[coin], nil
}

// BinanceBalances reads free spot balances.
func BinanceBalances(ctx context.Context, client *binance.Client) (map[string]decimal.Decimal, error) {
	account, err := client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account")
	}

	out := make(map[string]decimal.Decimal, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s balance", b.Asset)
		}
		if free.IsZero() {
			continue
		}
		out[b.Asset] = free
	}
	return out, nil
}
