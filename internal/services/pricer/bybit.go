package pricer

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitPricer fetches spot prices from Bybit V5 tickers.
type BybitPricer struct {
	client *bybit.Client
}

// NewBybitPricer creates a new Bybit pricer.
func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// Prices fetches last prices of every spot ticker.
func (p *BybitPricer) Prices(_ context.Context) (Table, error) {
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit tickers")
	}

	if len(result.Result.Spot.List) == 0 {
		return nil, fmt.Errorf("bybit API returned empty tickers")
	}

	table := make(Table, len(result.Result.Spot.List))
	for _, ticker := range result.Result.Spot.List {
		price, err := decimal.NewFromString(ticker.LastPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse bybit price for %s", ticker.Symbol)
		}
		table[string(ticker.Symbol)] = price
	}

	return table, nil
}
