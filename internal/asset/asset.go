package asset

import "github.com/ethereum/go-ethereum/common"

// Asset is the metadata of a token. Two assets are the same token when their
// IDs are equal.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates an Asset. An empty symbol is replaced by a short form of
// the contract address so every asset renders.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}
	if symbol == "" {
		symbol = ShortAddress(id.Address())
	}

	return &Asset{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewAssetWithName creates an Asset with a human-readable name.
func NewAssetWithName(id AssetID, symbol, name string, decimals uint8) *Asset {
	a := NewAsset(id, symbol, decimals)
	a.name = name
	return a
}

// ID returns the identity of the token.
func (a *Asset) ID() AssetID {
	return a.id
}

// Symbol returns the ticker symbol (e.g. "WBNB").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places of the minor unit.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// Exp returns the decimals as the exponent type used by decimal math.
func (a *Asset) Exp() int32 {
	return int32(a.decimals)
}

// ChainID returns the chain ID.
func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

// Address returns the token contract address.
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}

// ShortAddress renders 0x1234…abcd.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
