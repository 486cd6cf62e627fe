// Package di contains dependency injection tokens for the trade context.
package di

import (
	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/infra/chain"
	"github.com/fd1az/margin-router/business/trade/infra/dexagg"
	"github.com/fd1az/margin-router/business/trade/infra/offchain"
	"github.com/fd1az/margin-router/business/trade/infra/oneinch"
	"github.com/fd1az/margin-router/business/trade/infra/protocol"
	"github.com/fd1az/margin-router/business/trade/infra/rest"
	"github.com/fd1az/margin-router/business/trade/infra/univ3"
	"github.com/fd1az/margin-router/internal/di"
)

// Public service tokens - exposed to the outer surfaces
var (
	TradeService = di.NewToken[*app.TradeService]("trade.TradeService")
	Listings     = di.NewToken[*offchain.Client]("trade.Listings")
	HTTPHandler  = di.NewToken[*rest.Handler]("trade.HTTPHandler")
)

// Private dependency tokens - internal to the trade module
var (
	ChainParams = di.NewToken[app.ChainParams]("trade:chainParams")
	OpenLev     = di.NewToken[*protocol.OpenLev]("trade:openLev")
	QueryHelper = di.NewToken[*protocol.QueryHelper]("trade:queryHelper")
	LPool       = di.NewToken[*protocol.LPool]("trade:lpool")
	DexAgg      = di.NewToken[*dexagg.Provider]("trade:dexAggregator")
	V3Quoter    = di.NewToken[*univ3.Provider]("trade:v3Quoter")
	Aggregator  = di.NewToken[*oneinch.Client]("trade:aggregator")
	GasOracle   = di.NewToken[*chain.GasOracle]("trade:gasOracle")
	Calculator  = di.NewToken[*app.Calculator]("trade:calculator")
	Router      = di.NewToken[*app.Router]("trade:router")
)

// Helper functions for type-safe access
func GetTradeService(c di.ServiceRegistry) *app.TradeService {
	return di.GetToken(c, TradeService)
}

func GetListings(c di.ServiceRegistry) *offchain.Client {
	return di.GetToken(c, Listings)
}

func GetHTTPHandler(c di.ServiceRegistry) *rest.Handler {
	return di.GetToken(c, HTTPHandler)
}

func GetChainParams(c di.ServiceRegistry) app.ChainParams {
	return di.GetToken(c, ChainParams)
}

func GetOpenLev(c di.ServiceRegistry) *protocol.OpenLev {
	return di.GetToken(c, OpenLev)
}

func GetGasOracle(c di.ServiceRegistry) *chain.GasOracle {
	return di.GetToken(c, GasOracle)
}
