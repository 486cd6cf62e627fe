package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Presets(t *testing.T) {
	tests := []struct {
		chain         string
		chainID       uint64
		blocksPerYear int64
		openLev       string
		poolsURL      string
	}{
		{ChainEthereum, 1, 2102400, "0x03bf707deb2808f711bb0086fc17c5cafa6e8aaf", ""},
		{ChainBNB, 56, 10512000, "0x6a75ac4b8d8e76d15502e69be4cb6325422833b4", "https://bnb.openleverage.finance/api/info/pools/interest"},
		{ChainArbitrum, 42161, 2628000, "0x2925671dc7f2def9e4ad3fa878afd997f0b4db45", "https://arbitrum.openleverage.finance/api/info/pools/interest"},
	}

	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			t.Setenv("MARGIN_ROUTER_CHAIN_NAME", tt.chain)

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Chain.ChainID != tt.chainID {
				t.Errorf("ChainID = %d, want %d", cfg.Chain.ChainID, tt.chainID)
			}
			if cfg.Chain.BlocksPerYear != tt.blocksPerYear {
				t.Errorf("BlocksPerYear = %d, want %d", cfg.Chain.BlocksPerYear, tt.blocksPerYear)
			}
			if cfg.Chain.OpenLev != tt.openLev {
				t.Errorf("OpenLev = %s, want %s", cfg.Chain.OpenLev, tt.openLev)
			}
			if cfg.Offchain.PoolsURL != tt.poolsURL {
				t.Errorf("PoolsURL = %q, want %q", cfg.Offchain.PoolsURL, tt.poolsURL)
			}
			if cfg.Chain.TWAP != 60*time.Second {
				t.Errorf("TWAP = %s, want 60s", cfg.Chain.TWAP)
			}
		})
	}
}

func TestLoad_AggregatorURLsFollowChainID(t *testing.T) {
	t.Setenv("MARGIN_ROUTER_CHAIN_NAME", ChainBNB)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := "https://bnb.openleverage.finance/api/1inch/56/quote"; cfg.Aggregator.QuoteURL != want {
		t.Errorf("QuoteURL = %s, want %s", cfg.Aggregator.QuoteURL, want)
	}
	if want := "https://bnb.openleverage.finance/api/1inch/56/swap"; cfg.Aggregator.SwapURL != want {
		t.Errorf("SwapURL = %s, want %s", cfg.Aggregator.SwapURL, want)
	}
}

func TestLoad_FileOverridesPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
chain:
  name: arbitrum
  rpc_url: http://localhost:8545
  blocks_per_year: 1000
trade:
  default_slippage: 0.02
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chain.RPCURL != "http://localhost:8545" {
		t.Errorf("RPCURL = %s", cfg.Chain.RPCURL)
	}
	if cfg.Chain.BlocksPerYear != 1000 {
		t.Errorf("BlocksPerYear = %d, want 1000", cfg.Chain.BlocksPerYear)
	}
	if cfg.Chain.ChainID != 42161 {
		t.Errorf("ChainID = %d, want preset 42161", cfg.Chain.ChainID)
	}
	if got := cfg.Trade.DefaultSlippageDecimal().String(); got != "0.02" {
		t.Errorf("DefaultSlippage = %s, want 0.02", got)
	}
}

func TestLoad_ChainNameFromEnv(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		wantID uint64
	}{
		{name: "prefixed", env: map[string]string{"MARGIN_ROUTER_CHAIN_NAME": ChainArbitrum}, wantID: 42161},
		{name: "short alias", env: map[string]string{"CHAIN": ChainEthereum}, wantID: 1},
		{
			name:   "chain section override keeps the preset",
			env:    map[string]string{"MARGIN_ROUTER_CHAIN_NAME": ChainArbitrum, "MARGIN_ROUTER_RPC_URL": "http://localhost:8545"},
			wantID: 42161,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Chain.ChainID != tt.wantID {
				t.Errorf("ChainID = %d, want %d", cfg.Chain.ChainID, tt.wantID)
			}
			if rpc, ok := tt.env["MARGIN_ROUTER_RPC_URL"]; ok && cfg.Chain.RPCURL != rpc {
				t.Errorf("RPCURL = %s, want %s", cfg.Chain.RPCURL, rpc)
			}
		})
	}
}

func TestLoad_UnknownChain(t *testing.T) {
	t.Setenv("MARGIN_ROUTER_CHAIN_NAME", "solana")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown chain")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{Chain: ChainConfig{Name: ChainBNB}, Aggregator: AggregatorConfig{RequestsPerMinute: 60}}
		if err := c.Chain.ApplyPreset(); err != nil {
			t.Fatal(err)
		}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "preset", mutate: func(*Config) {}},
		{name: "bad openlev", mutate: func(c *Config) { c.Chain.OpenLev = "nope" }, wantErr: true},
		{name: "missing rpc", mutate: func(c *Config) { c.Chain.RPCURL = "" }, wantErr: true},
		{name: "bad trader", mutate: func(c *Config) { c.Trade.Trader = "0x12" }, wantErr: true},
		{name: "negative slippage", mutate: func(c *Config) { c.Trade.DefaultSlippage = -1 }, wantErr: true},
		{name: "no rate limit", mutate: func(c *Config) { c.Aggregator.RequestsPerMinute = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
