// Package trade implements the margin trade bounded context: previews,
// positions and unsigned trade plans over the lending protocol.
package trade

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/margin-router/business/trade/app"
	tradeDI "github.com/fd1az/margin-router/business/trade/di"
	"github.com/fd1az/margin-router/business/trade/infra/chain"
	"github.com/fd1az/margin-router/business/trade/infra/dexagg"
	"github.com/fd1az/margin-router/business/trade/infra/offchain"
	"github.com/fd1az/margin-router/business/trade/infra/oneinch"
	"github.com/fd1az/margin-router/business/trade/infra/protocol"
	"github.com/fd1az/margin-router/business/trade/infra/rest"
	"github.com/fd1az/margin-router/business/trade/infra/univ3"
	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/config"
	"github.com/fd1az/margin-router/internal/di"
	"github.com/fd1az/margin-router/internal/logger"
	"github.com/fd1az/margin-router/internal/monolith"
)

const rpcCheckTimeout = 3 * time.Second

// Module implements the trade bounded context.
type Module struct{}

// ChainParams projects the chain configuration onto what the trade
// services need.
func ChainParams(cfg config.ChainConfig) app.ChainParams {
	return app.ChainParams{
		ChainID:        cfg.ChainID,
		BlocksPerYear:  cfg.BlocksPerYear,
		OpenLev:        cfg.OpenLevAddress(),
		NativeToken:    cfg.NativeTokenAddress(),
		NativeDecimals: cfg.NativeDecimals,
		USDT:           cfg.USDTAddress(),
		USDTDecimals:   cfg.USDTDecimals,
		TWAP:           cfg.TWAP,
	}
}

// RegisterServices registers all trade services with the DI container.
// Adapters are built lazily, on the first command that needs them.
func (m *Module) RegisterServices(c di.Container) error {
	cfgOf := func(sr di.ServiceRegistry) *config.Config { return sr.Get("config").(*config.Config) }
	logOf := func(sr di.ServiceRegistry) logger.LoggerInterface { return sr.Get("logger").(logger.LoggerInterface) }
	ethOf := func(sr di.ServiceRegistry) *ethclient.Client { return sr.Get("ethClient").(*ethclient.Client) }

	di.RegisterToken(c, tradeDI.ChainParams, func(sr di.ServiceRegistry) app.ChainParams {
		return ChainParams(cfgOf(sr).Chain)
	})

	di.RegisterToken(c, tradeDI.OpenLev, func(sr di.ServiceRegistry) *protocol.OpenLev {
		cfg := cfgOf(sr)
		ol, err := protocol.NewOpenLev(ethOf(sr), cfg.Chain.OpenLevAddress(), protocol.DefaultMarketTTL, logOf(sr))
		if err != nil {
			panic("failed to create openlev adapter: " + err.Error())
		}
		return ol
	})

	di.RegisterToken(c, tradeDI.QueryHelper, func(sr di.ServiceRegistry) *protocol.QueryHelper {
		cfg := cfgOf(sr)
		qh, err := protocol.NewQueryHelper(ethOf(sr), cfg.Chain.QueryHelperAddress(), cfg.Chain.OpenLevAddress(), logOf(sr))
		if err != nil {
			panic("failed to create query helper adapter: " + err.Error())
		}
		return qh
	})

	di.RegisterToken(c, tradeDI.LPool, func(sr di.ServiceRegistry) *protocol.LPool {
		lp, err := protocol.NewLPool(ethOf(sr))
		if err != nil {
			panic("failed to create lending pool adapter: " + err.Error())
		}
		return lp
	})

	di.RegisterToken(c, tradeDI.DexAgg, func(sr di.ServiceRegistry) *dexagg.Provider {
		p, err := dexagg.NewProvider(ethOf(sr), cfgOf(sr).Chain.DexAggregatorAddress(), logOf(sr))
		if err != nil {
			panic("failed to create dex aggregator adapter: " + err.Error())
		}
		return p
	})

	di.RegisterToken(c, tradeDI.V3Quoter, func(sr di.ServiceRegistry) *univ3.Provider {
		p, err := univ3.NewProvider(ethOf(sr), cfgOf(sr).Chain.V3QuoterAddress(), logOf(sr))
		if err != nil {
			panic("failed to create v3 quoter adapter: " + err.Error())
		}
		return p
	})

	di.RegisterToken(c, tradeDI.Aggregator, func(sr di.ServiceRegistry) *oneinch.Client {
		cfg := cfgOf(sr)
		client, err := oneinch.NewClient(oneinch.Config{
			QuoteURL:          cfg.Aggregator.QuoteURL,
			SwapURL:           cfg.Aggregator.SwapURL,
			RequestsPerMinute: cfg.Aggregator.RequestsPerMinute,
			Timeout:           cfg.Aggregator.Timeout,
		}, logOf(sr))
		if err != nil {
			panic("failed to create aggregator client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, tradeDI.GasOracle, func(sr di.ServiceRegistry) *chain.GasOracle {
		oracleCfg := chain.DefaultGasOracleConfig()
		oracleCfg.CacheTTL = cfgOf(sr).Chain.GasCacheTTL
		oracle, err := chain.NewGasOracle(ethOf(sr), oracleCfg, logOf(sr))
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, tradeDI.Calculator, func(sr di.ServiceRegistry) *app.Calculator {
		openLev := tradeDI.GetOpenLev(sr)
		return app.NewCalculator(tradeDI.GetChainParams(sr), app.CalculatorDeps{
			Markets: openLev,
			Fees:    openLev,
			Oracle:  di.GetToken(sr, tradeDI.DexAgg),
			Shares:  openLev,
			Pools:   di.GetToken(sr, tradeDI.LPool),
			History: di.GetToken(sr, tradeDI.QueryHelper),
		}, logOf(sr))
	})

	di.RegisterToken(c, tradeDI.Router, func(sr di.ServiceRegistry) *app.Router {
		dex := di.GetToken(sr, tradeDI.DexAgg)
		return app.NewRouter(tradeDI.GetChainParams(sr), app.RouterDeps{
			Oracle:          dex,
			ConstantProduct: dex,
			Concentrated:    di.GetToken(sr, tradeDI.V3Quoter),
			Aggregator:      di.GetToken(sr, tradeDI.Aggregator),
			Gas:             tradeDI.GetGasOracle(sr),
			Liquidity:       dex,
			Pools:           di.GetToken(sr, tradeDI.LPool),
		}, logOf(sr))
	})

	di.RegisterToken(c, tradeDI.TradeService, func(sr di.ServiceRegistry) *app.TradeService {
		openLev := tradeDI.GetOpenLev(sr)
		return app.NewTradeService(tradeDI.GetChainParams(sr), app.ServiceDeps{
			Calculator: di.GetToken(sr, tradeDI.Calculator),
			Router:     di.GetToken(sr, tradeDI.Router),
			Fees:       openLev,
			Positions:  di.GetToken(sr, tradeDI.QueryHelper),
			Aggregator: di.GetToken(sr, tradeDI.Aggregator),
			Gas:        tradeDI.GetGasOracle(sr),
			Encoder:    openLev,
		}, logOf(sr))
	})

	di.RegisterToken(c, tradeDI.Listings, func(sr di.ServiceRegistry) *offchain.Client {
		cfg := cfgOf(sr)
		client, err := offchain.NewClient(offchain.Config{
			PairsURL: cfg.Offchain.PairsURL,
			PoolsURL: cfg.Offchain.PoolsURL,
			CacheTTL: cfg.Offchain.CacheTTL,
			Timeout:  cfg.Offchain.Timeout,
		}, logOf(sr))
		if err != nil {
			panic("failed to create listing client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, tradeDI.HTTPHandler, func(sr di.ServiceRegistry) *rest.Handler {
		return rest.NewHandler(
			tradeDI.GetTradeService(sr),
			tradeDI.GetListings(sr),
			sr.Get("assetRegistry").(*asset.Registry),
			cfgOf(sr).Chain.ChainID,
			logOf(sr),
		)
	})

	return nil
}

// Startup registers the RPC health check when probes are served and
// hooks the caching components into application shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	sr := mono.Services()

	mono.OnClose("gas oracle", tradeDI.GetGasOracle(sr).Close)
	mono.OnClose("listings", tradeDI.GetListings(sr).Close)

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("rpc", chain.ReachabilityCheck(mono.EthClient(), cfg.Chain.ChainID, rpcCheckTimeout))
	}

	log.Info(ctx, "trade module started",
		"chain", cfg.Chain.Name,
		"chain_id", cfg.Chain.ChainID,
		"openlev", cfg.Chain.OpenLev,
	)
	return nil
}
