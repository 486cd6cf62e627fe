package config

import (
	"fmt"
	"time"
)

// Supported chain presets.
const (
	ChainEthereum = "ethereum"
	ChainBNB      = "bnb"
	ChainArbitrum = "arbitrum"
)

const defaultTWAP = 60 * time.Second

type chainPreset struct {
	chainID        uint64
	blocksPerYear  int64
	rpcURL         string
	openLev        string
	queryHelper    string
	dexAggregator  string
	v3Quoter       string
	nativeToken    string
	nativeDecimals int32
	usdt           string
	usdtDecimals   int32
	apiHost        string
	hasPoolsAPI    bool
}

var presets = map[string]chainPreset{
	ChainEthereum: {
		chainID:        1,
		blocksPerYear:  2102400,
		rpcURL:         "https://ethereum.publicnode.com",
		openLev:        "0x03bf707deb2808f711bb0086fc17c5cafa6e8aaf",
		queryHelper:    "0x8e95ff1939a2c7c59ec5ef170a591e2da08fb87a",
		dexAggregator:  "0xd78b5db4aec619779b4c7d1ab99e290e6347d66a",
		v3Quoter:       "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
		nativeToken:    "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		nativeDecimals: 18,
		usdt:           "0xdac17f958d2ee523a2206206994597c13d831ec7",
		usdtDecimals:   6,
		apiHost:        "ethereum.openleverage.finance",
	},
	ChainBNB: {
		chainID:        56,
		blocksPerYear:  10512000,
		rpcURL:         "https://bsc-dataseed4.binance.org",
		openLev:        "0x6a75ac4b8d8e76d15502e69be4cb6325422833b4",
		queryHelper:    "0x512a2f81b4f4ae66747f2f21910d5a14015bd3e9",
		dexAggregator:  "0xe9e321d1cb6b540e922a5e4d8720feed0749e93f",
		v3Quoter:       "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
		nativeToken:    "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
		nativeDecimals: 18,
		usdt:           "0xe9e7cea3dedca5984780bafc599bd69add087d56",
		usdtDecimals:   18,
		apiHost:        "bnb.openleverage.finance",
		hasPoolsAPI:    true,
	},
	ChainArbitrum: {
		chainID:        42161,
		blocksPerYear:  2628000,
		rpcURL:         "https://arb1.arbitrum.io/rpc",
		openLev:        "0x2925671dc7f2def9e4ad3fa878afd997f0b4db45",
		queryHelper:    "0xb037ae390c15fb94ea98b07dece43aefcf3bf8ba",
		dexAggregator:  "0x20ebf8d5c6cb3ba26f5f5aef993a78411457d183",
		v3Quoter:       "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
		nativeToken:    "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
		nativeDecimals: 18,
		usdt:           "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9",
		usdtDecimals:   6,
		apiHost:        "arbitrum.openleverage.finance",
		hasPoolsAPI:    true,
	},
}

// ChainNames lists the presets Load accepts.
func ChainNames() []string {
	return []string{ChainEthereum, ChainBNB, ChainArbitrum}
}

// ApplyPreset fills every unset field from the preset named by c.Name.
func (c *ChainConfig) ApplyPreset() error {
	p, ok := presets[c.Name]
	if !ok {
		return fmt.Errorf("unknown chain %q (want one of %v)", c.Name, ChainNames())
	}

	setString(&c.RPCURL, p.rpcURL)
	setString(&c.OpenLev, p.openLev)
	setString(&c.QueryHelper, p.queryHelper)
	setString(&c.DexAggregator, p.dexAggregator)
	setString(&c.V3Quoter, p.v3Quoter)
	setString(&c.NativeToken, p.nativeToken)
	setString(&c.USDT, p.usdt)

	if c.ChainID == 0 {
		c.ChainID = p.chainID
	}
	if c.BlocksPerYear == 0 {
		c.BlocksPerYear = p.blocksPerYear
	}
	if c.NativeDecimals == 0 {
		c.NativeDecimals = p.nativeDecimals
	}
	if c.USDTDecimals == 0 {
		c.USDTDecimals = p.usdtDecimals
	}
	if c.TWAP == 0 {
		c.TWAP = defaultTWAP
	}
	return nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
