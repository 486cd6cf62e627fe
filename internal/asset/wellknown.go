package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs of the supported networks.
const (
	ChainIDEthereum = 1
	ChainIDBSC      = 56
	ChainIDArbitrum = 42161
)

// Wrapped native tokens and USD stablecoins used as price references.
var (
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")

	AddrWBNBBSC = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	AddrBUSDBSC = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")

	AddrWETHArbitrum = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	AddrUSDTArbitrum = common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9")
)

// Well-known assets.
var (
	WETH = NewAssetWithName(NewTokenAssetID(ChainIDEthereum, AddrWETHEthereum), "WETH", "Wrapped Ether", 18)
	USDT = NewAssetWithName(NewTokenAssetID(ChainIDEthereum, AddrUSDTEthereum), "USDT", "Tether USD", 6)

	WBNB = NewAssetWithName(NewTokenAssetID(ChainIDBSC, AddrWBNBBSC), "WBNB", "Wrapped BNB", 18)
	BUSD = NewAssetWithName(NewTokenAssetID(ChainIDBSC, AddrBUSDBSC), "BUSD", "Binance USD", 18)

	WETHArbitrum = NewAssetWithName(NewTokenAssetID(ChainIDArbitrum, AddrWETHArbitrum), "WETH", "Wrapped Ether", 18)
	USDTArbitrum = NewAssetWithName(NewTokenAssetID(ChainIDArbitrum, AddrUSDTArbitrum), "USDT", "Tether USD", 6)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{WETH, USDT, WBNB, BUSD, WETHArbitrum, USDTArbitrum} {
		_ = r.Register(a)
	}
	return r
}
