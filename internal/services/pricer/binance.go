package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinancePricer fetches spot prices from the Binance public API.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a new Binance pricer.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// Prices fetches last prices of every listed spot symbol.
func (p *BinancePricer) Prices(ctx context.Context) (Table, error) {
	prices, err := p.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list binance prices")
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("binance API returned empty prices")
	}

	table := make(Table, len(prices))
	for _, sp := range prices {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse binance price for %s", sp.Symbol)
		}
		table[sp.Symbol] = price
	}

	return table, nil
}
