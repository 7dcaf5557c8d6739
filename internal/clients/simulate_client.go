package clients

import (
	"github.com/adshao/go-binance/v2"
)

// SimulateClient marks the simulated platform. Prices come from the Binance public API
// unless the configuration supplies a static price table.
type SimulateClient struct {
	// use Binance public API for real market prices
	binanceClient *binance.Client
	// Scope names the persisted simulated wallet.
	Scope string
}

// NewSimulateClient creates a new simulate client.
func NewSimulateClient(scope string) *SimulateClient {
	// create client without API keys for public data only
	client := binance.NewClient("", "")
	return &SimulateClient{
		binanceClient: client,
		Scope:         scope,
	}
}

// GetBinanceClient returns the underlying Binance client.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}
