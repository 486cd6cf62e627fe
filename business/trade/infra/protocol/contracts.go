package protocol

import (
	"math/big"
)

// OpenLevABI covers the margin protocol reads plus the two trade entry
// points that plans encode.
const OpenLevABI = `[
	{
		"inputs": [{"internalType": "uint16", "name": "", "type": "uint16"}],
		"name": "markets",
		"outputs": [
			{"internalType": "address", "name": "pool0", "type": "address"},
			{"internalType": "address", "name": "pool1", "type": "address"},
			{"internalType": "address", "name": "token0", "type": "address"},
			{"internalType": "address", "name": "token1", "type": "address"},
			{"internalType": "uint16", "name": "marginLimit", "type": "uint16"},
			{"internalType": "uint16", "name": "feesRate", "type": "uint16"},
			{"internalType": "uint16", "name": "priceDiffientRatio", "type": "uint16"},
			{"internalType": "address", "name": "priceUpdater", "type": "address"},
			{"internalType": "uint256", "name": "pool0Insurance", "type": "uint256"},
			{"internalType": "uint256", "name": "pool1Insurance", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint16", "name": "", "type": "uint16"},
			{"internalType": "address", "name": "", "type": "address"},
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"name": "taxes",
		"outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "", "type": "address"}],
		"name": "totalHelds",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint16", "name": "marketId", "type": "uint16"},
			{"internalType": "bool", "name": "longToken", "type": "bool"},
			{"internalType": "bool", "name": "depositToken", "type": "bool"},
			{"internalType": "uint256", "name": "deposit", "type": "uint256"},
			{"internalType": "uint256", "name": "borrow", "type": "uint256"},
			{"internalType": "uint256", "name": "minBuyAmount", "type": "uint256"},
			{"internalType": "bytes", "name": "dexData", "type": "bytes"}
		],
		"name": "marginTrade",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint16", "name": "marketId", "type": "uint16"},
			{"internalType": "bool", "name": "longToken", "type": "bool"},
			{"internalType": "uint256", "name": "closeHeld", "type": "uint256"},
			{"internalType": "uint256", "name": "minOrMaxAmount", "type": "uint256"},
			{"internalType": "bytes", "name": "dexData", "type": "bytes"}
		],
		"name": "closeTrade",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// QueryHelperABI covers price history and batched position reads.
const QueryHelperABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "openLev", "type": "address"},
			{"internalType": "uint16", "name": "marketId", "type": "uint16"},
			{"internalType": "address", "name": "desToken", "type": "address"},
			{"internalType": "address", "name": "quoteToken", "type": "address"},
			{"internalType": "uint32", "name": "secondsAgo", "type": "uint32"},
			{"internalType": "bytes", "name": "dexData", "type": "bytes"}
		],
		"name": "calPriceCAvgPriceHAvgPrice",
		"outputs": [
			{"internalType": "uint256", "name": "price", "type": "uint256"},
			{"internalType": "uint256", "name": "cAvgPrice", "type": "uint256"},
			{"internalType": "uint256", "name": "hAvgPrice", "type": "uint256"},
			{"internalType": "uint256", "name": "decimals", "type": "uint256"},
			{"internalType": "uint256", "name": "timestamp", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "openLev", "type": "address"},
			{"internalType": "uint16", "name": "marketId", "type": "uint16"},
			{"internalType": "address[]", "name": "traders", "type": "address[]"},
			{"internalType": "bool[]", "name": "longTokens", "type": "bool[]"},
			{"internalType": "bytes", "name": "dexData", "type": "bytes"}
		],
		"name": "getTraderPositons",
		"outputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "deposited", "type": "uint256"},
					{"internalType": "uint256", "name": "held", "type": "uint256"},
					{"internalType": "uint256", "name": "borrowed", "type": "uint256"},
					{"internalType": "uint256", "name": "marginRatio", "type": "uint256"},
					{"internalType": "uint256", "name": "marginLimit", "type": "uint256"}
				],
				"internalType": "struct QueryHelper.PositionVars[]",
				"name": "results",
				"type": "tuple[]"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// LPoolABI covers the lending pool reads.
const LPoolABI = `[
	{
		"inputs": [],
		"name": "borrowRatePerBlock",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "availableForBorrow",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "borrowBalanceStored",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "borrowBalanceCurrent",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC20ABI is the balanceOf fragment of ERC20.
const ERC20ABI = `[
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PositionVars is one entry of getTraderPositons.
type PositionVars struct {
	Deposited   *big.Int
	Held        *big.Int
	Borrowed    *big.Int
	MarginRatio *big.Int
	MarginLimit *big.Int
}
