package domain

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
)

// VenueClass is the quoting family of a venue.
type VenueClass uint8

const (
	ConstantProduct VenueClass = iota + 1
	ConcentratedLiquidity
	Aggregator
)

func (c VenueClass) String() string {
	switch c {
	case ConstantProduct:
		return "constant-product"
	case ConcentratedLiquidity:
		return "concentrated-liquidity"
	case Aggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

const (
	// AggregatorVenueID is the venue id of the swap aggregator.
	AggregatorVenueID = "21"
	// ConcentratedLiquidityPriceDex is the price source reported for
	// concentrated-liquidity positions.
	ConcentratedLiquidityPriceDex = "2"

	concentratedLiquidityFeeModulus = 33554432
	constantProductMaxID            = 256
	maxCallDataIDBytes              = 7
)

// Venue is a resolved venue id. Fee is in hundredths of a basis point
// (3000 = 0.3%).
type Venue struct {
	ID       string
	Class    VenueClass
	Name     string
	Fee      uint32
	Factory  common.Address
	CallData []byte
}

type venueInfo struct {
	name    string
	fee     uint32
	factory common.Address
}

type venueKey struct {
	id      string
	chainID uint64
}

var (
	uniswapV2Factory = common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f")
	uniswapV3Factory = common.HexToAddress("0x1f98431c8ad98523631ae4a59f267346ea31f984")

	venueTable = map[string]venueInfo{
		"0":  {name: "Uniswap V2", fee: 3000, factory: uniswapV2Factory},
		"1":  {name: "Uniswap V2", fee: 3000, factory: uniswapV2Factory},
		"2":  {name: "Uniswap V3", factory: uniswapV3Factory},
		"3":  {name: "PancakeSwap", fee: 2500, factory: common.HexToAddress("0xca143ce32fe78f1f7019d7d551a6402fc5350c73")},
		"4":  {name: "Sushi", fee: 3000, factory: common.HexToAddress("0xc0aee478e3658e2610c5f7a4a2e1777ce9e4f2ac")},
		"5":  {name: "MDEX", fee: 3000, factory: common.HexToAddress("0x3cd1c46068daea5ebb0d3f55f6915b10648062b8")},
		"10": {name: "ApeSwap", fee: 2000, factory: common.HexToAddress("0x0841bd0b734e4f5853f0dd8d7ea041c241fb0da6")},
		"11": {name: "PancakeSwap V1", fee: 2000, factory: common.HexToAddress("0xbcfccbde45ce874adcb698cc183debcf17952812")},
		"12": {name: "BabySwap", fee: 2000, factory: common.HexToAddress("0x86407bea2078ea5f5eb5a52b2caa963bc1f889da")},
		"13": {name: "MojitoSwap", fee: 3000, factory: common.HexToAddress("0x79855A03426e15Ad120df77eFA623aF87bd54eF3")},
		"14": {name: "KuSwap", fee: 1000, factory: common.HexToAddress("0xAE46cBBCDFBa3bE0F02F463Ec5486eBB4e2e65Ae")},
		"15": {name: "Biswap", fee: 2000, factory: common.HexToAddress("0x858e3312ed3a876947ea49d572a7c42de08af7ee")},
		"21": {name: "1inch"},
	}

	// Per-chain deployments that differ from the default.
	venueOverrides = map[venueKey]venueInfo{
		{id: "4", chainID: 42161}: {name: "Sushi", fee: 3000, factory: common.HexToAddress("0xc35dadb65012ec5796536bd9864ed8773abc74c4")},
	}
)

// ParseVenue resolves a venue id for chainID.
//
// Ids below 256 are constant-product venues from the venue table, except
// AggregatorVenueID. Ids above 256 are concentrated-liquidity pools whose
// fee tier is encoded in the id.
func ParseVenue(id string, chainID uint64) (Venue, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Venue{}, unknownVenue(id, "not a number")
	}

	switch {
	case id == AggregatorVenueID:
		info := lookupVenue(id, chainID)
		return Venue{ID: id, Class: Aggregator, Name: info.name, CallData: venueCallData(n, 1)}, nil

	case n < constantProductMaxID:
		info, ok := venueTable[id]
		if ov, found := venueOverrides[venueKey{id: id, chainID: chainID}]; found {
			info, ok = ov, true
		}
		if !ok {
			return Venue{}, unknownVenue(id, "no constant-product venue with this id")
		}
		return Venue{
			ID:       id,
			Class:    ConstantProduct,
			Name:     info.name,
			Fee:      info.fee,
			Factory:  info.factory,
			CallData: venueCallData(n, 1),
		}, nil

	case n > constantProductMaxID:
		if n >= 1<<(8*maxCallDataIDBytes) {
			return Venue{}, unknownVenue(id, "id too large")
		}
		info := lookupVenue(ConcentratedLiquidityPriceDex, chainID)
		return Venue{
			ID:       id,
			Class:    ConcentratedLiquidity,
			Name:     info.name,
			Fee:      uint32(n % concentratedLiquidityFeeModulus),
			Factory:  info.factory,
			CallData: venueCallData(n, maxCallDataIDBytes),
		}, nil
	}

	return Venue{}, unknownVenue(id, "reserved id")
}

func lookupVenue(id string, chainID uint64) venueInfo {
	if ov, ok := venueOverrides[venueKey{id: id, chainID: chainID}]; ok {
		return ov
	}
	return venueTable[id]
}

// venueCallData left-pads n to width bytes, then appends the dex flag
// bytes expected by the protocol.
func venueCallData(n uint64, width int) []byte {
	out := make([]byte, width, width+4)
	for i := width - 1; i >= 0 && n > 0; i-- {
		out[i] = byte(n)
		n >>= 8
	}
	if width > 1 {
		return append(out, 0x02)
	}
	return append(out, 0x00, 0x00, 0x00, 0x02)
}

func unknownVenue(id, reason string) error {
	return apperror.New(apperror.CodeUnknownVenue,
		apperror.WithVenue(id),
		apperror.WithContext(reason))
}

// FeeTier returns the fee as the uint24 argument of a quoter call.
func (v Venue) FeeTier() *big.Int {
	return new(big.Int).SetUint64(uint64(v.Fee))
}

// SwapFeesRate is the venue fee in basis points.
func (v Venue) SwapFeesRate() decimal.Decimal {
	return fixedpoint.Div(decimal.NewFromInt(int64(v.Fee)), fixedpoint.Hundred)
}

// SwapFees applies the venue fee to amount.
func (v Venue) SwapFees(amount decimal.Decimal) decimal.Decimal {
	return fixedpoint.Div(amount.Mul(v.SwapFeesRate()), fixedpoint.BasisPoints)
}

// HasFactory reports whether the venue has a known pair factory.
func (v Venue) HasFactory() bool {
	return v.Factory != (common.Address{})
}

// PriceDex is the venue id reported as the price source of a position.
func (v Venue) PriceDex() string {
	if v.Class == ConcentratedLiquidity {
		return ConcentratedLiquidityPriceDex
	}
	return v.ID
}

func (v Venue) String() string {
	return fmt.Sprintf("%s(%s)", v.Name, v.ID)
}
