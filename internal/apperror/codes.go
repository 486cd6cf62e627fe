package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeABIError                 Code = "ABI_ERROR"
)

// Trade calculation and routing
const (
	// CodeMarketNotFound is reported as an empty preview, not a failure.
	CodeMarketNotFound         Code = "MARKET_NOT_FOUND"
	CodeUnknownVenue           Code = "INVALID_VENUE"
	CodeVenueQuoteFailed       Code = "VENUE_QUOTE_FAILED"
	CodeAggregatorQuoteFailed  Code = "AGGREGATOR_QUOTE_FAILED"
	CodeAggregatorSwapFailed   Code = "AGGREGATOR_SWAP_FAILED"
	CodeInsufficientLiquidity  Code = "INSUFFICIENT_LIQUIDITY"
	CodeCalculationInvariant   Code = "CALCULATION_INVARIANT"
	CodeInvalidTrade           Code = "INVALID_TRADE"
	CodePositionNotFound       Code = "POSITION_NOT_FOUND"
	CodeOffchainListingFailed  Code = "OFFCHAIN_LISTING_FAILED"
	CodePriceHistoryReadFailed Code = "PRICE_HISTORY_READ_FAILED"
)

// Infrastructure
const (
	CodeHTTPRequestFailed Code = "HTTP_REQUEST_FAILED"
	CodeHTTPBadStatus     Code = "HTTP_BAD_STATUS"
	CodeHTTPDecodeFailed  Code = "HTTP_DECODE_FAILED"
	CodeCircuitOpen       Code = "CIRCUIT_OPEN"
)
