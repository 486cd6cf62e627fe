package dexagg

// DexAggregatorABI is the protocol's venue router: constant-product quotes
// with token taxes applied, and spot prices for any supported venue.
const DexAggregatorABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "buyToken", "type": "address"},
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "uint24", "name": "buyTax", "type": "uint24"},
			{"internalType": "uint24", "name": "sellTax", "type": "uint24"},
			{"internalType": "uint256", "name": "sellAmount", "type": "uint256"},
			{"internalType": "bytes", "name": "data", "type": "bytes"}
		],
		"name": "calBuyAmount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "buyToken", "type": "address"},
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "uint24", "name": "buyTax", "type": "uint24"},
			{"internalType": "uint24", "name": "sellTax", "type": "uint24"},
			{"internalType": "uint256", "name": "buyAmount", "type": "uint256"},
			{"internalType": "bytes", "name": "data", "type": "bytes"}
		],
		"name": "calSellAmount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "desToken", "type": "address"},
			{"internalType": "address", "name": "quoteToken", "type": "address"},
			{"internalType": "bytes", "name": "data", "type": "bytes"}
		],
		"name": "getPrice",
		"outputs": [
			{"internalType": "uint256", "name": "price", "type": "uint256"},
			{"internalType": "uint8", "name": "decimals", "type": "uint8"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// V2FactoryABI is the getPair fragment of a Uniswap V2 style factory.
const V2FactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "", "type": "address"},
			{"internalType": "address", "name": "", "type": "address"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// V2PairABI is the getReserves fragment of a Uniswap V2 style pair.
const V2PairABI = `[
	{
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
