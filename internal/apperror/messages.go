package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to the chain RPC node",
	CodeEthereumRPCError:         "Chain RPC call failed",
	CodeGasEstimationFailed:      "Gas price lookup failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeABIError:                 "ABI encoding or decoding failed",

	CodeMarketNotFound:         "Market not found",
	CodeUnknownVenue:           "Unknown venue id",
	CodeVenueQuoteFailed:       "Venue quote failed",
	CodeAggregatorQuoteFailed:  "Aggregator quote failed",
	CodeAggregatorSwapFailed:   "Aggregator swap data request failed",
	CodeInsufficientLiquidity:  "The maximum borrowing of total position must be lower than 10% of liquidity on the DEX; adjust leverage",
	CodeCalculationInvariant:   "Required price or decimal input is missing or invalid",
	CodeInvalidTrade:           "Trade parameters do not match the pair",
	CodePositionNotFound:       "Position not found",
	CodeOffchainListingFailed:  "Failed to fetch off-chain listing",
	CodePriceHistoryReadFailed: "Failed to read average prices",

	CodeHTTPRequestFailed: "HTTP request failed",
	CodeHTTPBadStatus:     "HTTP request returned an error status",
	CodeHTTPDecodeFailed:  "Failed to decode HTTP response",
	CodeCircuitOpen:       "Circuit breaker is open",
}
