// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Offchain   OffchainConfig   `mapstructure:"offchain"`
	Trade      TradeConfig      `mapstructure:"trade"`
	Server     ServerConfig     `mapstructure:"server"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig selects the network and the protocol deployment on it.
// Empty fields are filled from the preset named by Name.
type ChainConfig struct {
	Name           string        `mapstructure:"name"`
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	BlocksPerYear  int64         `mapstructure:"blocks_per_year"`
	OpenLev        string        `mapstructure:"openlev"`
	QueryHelper    string        `mapstructure:"query_helper"`
	DexAggregator  string        `mapstructure:"dex_aggregator"`
	V3Quoter       string        `mapstructure:"v3_quoter"`
	NativeToken    string        `mapstructure:"native_token"`
	NativeDecimals int32         `mapstructure:"native_decimals"`
	USDT           string        `mapstructure:"usdt"`
	USDTDecimals   int32         `mapstructure:"usdt_decimals"`
	TWAP           time.Duration `mapstructure:"twap"`
	GasCacheTTL    time.Duration `mapstructure:"gas_cache_ttl"`
}

// OpenLevAddress returns the margin protocol address.
func (c *ChainConfig) OpenLevAddress() common.Address {
	return common.HexToAddress(c.OpenLev)
}

// QueryHelperAddress returns the query helper address.
func (c *ChainConfig) QueryHelperAddress() common.Address {
	return common.HexToAddress(c.QueryHelper)
}

// DexAggregatorAddress returns the protocol's dex aggregator address.
func (c *ChainConfig) DexAggregatorAddress() common.Address {
	return common.HexToAddress(c.DexAggregator)
}

// V3QuoterAddress returns the concentrated-liquidity quoter address.
func (c *ChainConfig) V3QuoterAddress() common.Address {
	return common.HexToAddress(c.V3Quoter)
}

// NativeTokenAddress returns the wrapped native token address.
func (c *ChainConfig) NativeTokenAddress() common.Address {
	return common.HexToAddress(c.NativeToken)
}

// USDTAddress returns the USD reference token address.
func (c *ChainConfig) USDTAddress() common.Address {
	return common.HexToAddress(c.USDT)
}

// AggregatorConfig holds the swap aggregator endpoints.
type AggregatorConfig struct {
	QuoteURL          string        `mapstructure:"quote_url"`
	SwapURL           string        `mapstructure:"swap_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// OffchainConfig holds the protocol listing endpoints.
type OffchainConfig struct {
	PairsURL string        `mapstructure:"pairs_url"`
	PoolsURL string        `mapstructure:"pools_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TradeConfig holds defaults applied to pairs built from listings.
type TradeConfig struct {
	DefaultSlippage float64 `mapstructure:"default_slippage"`
	Trader          string  `mapstructure:"trader"`
}

// DefaultSlippageDecimal returns the default slippage as decimal.Decimal.
func (c *TradeConfig) DefaultSlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultSlippage)
}

// TraderAddress returns the configured trader, or the zero address.
func (c *TradeConfig) TraderAddress() common.Address {
	return common.HexToAddress(c.Trader)
}

// ServerConfig holds the API listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	HealthPort      int           `mapstructure:"health_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("MARGIN_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Chain.ApplyPreset(); err != nil {
		return nil, err
	}
	cfg.applyEndpointDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "MARGIN_ROUTER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MARGIN_ROUTER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MARGIN_ROUTER_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	// MARGIN_ROUTER_CHAIN would shadow the whole chain section under
	// AutomaticEnv.
	v.BindEnv("chain.name", "MARGIN_ROUTER_CHAIN_NAME", "CHAIN")
	v.BindEnv("chain.rpc_url", "MARGIN_ROUTER_RPC_URL", "RPC_URL")

	// Aggregator and listings
	v.BindEnv("aggregator.quote_url", "MARGIN_ROUTER_AGGREGATOR_QUOTE_URL")
	v.BindEnv("aggregator.swap_url", "MARGIN_ROUTER_AGGREGATOR_SWAP_URL")
	v.BindEnv("offchain.pairs_url", "MARGIN_ROUTER_PAIRS_URL")
	v.BindEnv("offchain.pools_url", "MARGIN_ROUTER_POOLS_URL")

	// Trade
	v.BindEnv("trade.trader", "MARGIN_ROUTER_TRADER", "TRADER")

	// Telemetry
	v.BindEnv("telemetry.enabled", "MARGIN_ROUTER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MARGIN_ROUTER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_exporter", "MARGIN_ROUTER_TRACE_EXPORTER", "TRACE_EXPORTER")
	v.BindEnv("telemetry.otlp_endpoint", "MARGIN_ROUTER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "margin-router")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Chain defaults; everything else comes from the preset
	v.SetDefault("chain.name", ChainBNB)
	v.SetDefault("chain.gas_cache_ttl", "12s")

	v.SetDefault("aggregator.requests_per_minute", 60)
	v.SetDefault("aggregator.timeout", "10s")

	v.SetDefault("offchain.cache_ttl", "1m")
	v.SetDefault("offchain.timeout", "10s")

	v.SetDefault("trade.default_slippage", 0.01)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "margin-router")
	v.SetDefault("telemetry.trace_exporter", "empty")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// applyEndpointDefaults derives the protocol API endpoints from the chain
// when they are not configured explicitly.
func (c *Config) applyEndpointDefaults() {
	p, ok := presets[c.Chain.Name]
	if !ok {
		return
	}
	base := "https://" + p.apiHost + "/api"
	id := fmt.Sprintf("%d", c.Chain.ChainID)

	if c.Aggregator.QuoteURL == "" {
		c.Aggregator.QuoteURL = base + "/1inch/" + id + "/quote"
	}
	if c.Aggregator.SwapURL == "" {
		c.Aggregator.SwapURL = base + "/1inch/" + id + "/swap"
	}
	if c.Offchain.PairsURL == "" {
		c.Offchain.PairsURL = base + "/trade/pairs"
	}
	if c.Offchain.PoolsURL == "" && p.hasPoolsAPI {
		c.Offchain.PoolsURL = base + "/info/pools/interest"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	if c.Chain.BlocksPerYear <= 0 {
		return fmt.Errorf("chain.blocks_per_year must be positive")
	}
	for key, addr := range map[string]string{
		"chain.openlev":        c.Chain.OpenLev,
		"chain.query_helper":   c.Chain.QueryHelper,
		"chain.dex_aggregator": c.Chain.DexAggregator,
		"chain.v3_quoter":      c.Chain.V3Quoter,
		"chain.native_token":   c.Chain.NativeToken,
		"chain.usdt":           c.Chain.USDT,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %q", key, addr)
		}
	}
	if c.Trade.Trader != "" && !common.IsHexAddress(c.Trade.Trader) {
		return fmt.Errorf("invalid trade.trader: %q", c.Trade.Trader)
	}
	if c.Trade.DefaultSlippage < 0 {
		return fmt.Errorf("trade.default_slippage cannot be negative")
	}
	if c.Aggregator.RequestsPerMinute <= 0 {
		return fmt.Errorf("aggregator.requests_per_minute must be positive")
	}
	return nil
}
