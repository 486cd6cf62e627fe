package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
)

// Pair is a tradable token pair on one protocol market.
type Pair struct {
	MarketID uint16
	Token0   *asset.Asset
	Token1   *asset.Asset
	// Pool0 and Pool1 are the lending pools of each leg.
	Pool0    common.Address
	Pool1    common.Address
	Slippage decimal.Decimal
	// DexData is the comma-separated, priority-ordered list of venue ids.
	DexData   string
	Token0USD decimal.Decimal
	Token1USD decimal.Decimal
}

// Token returns the asset of leg s.
func (p Pair) Token(s Side) *asset.Asset {
	if s == Token0 {
		return p.Token0
	}
	return p.Token1
}

// Address returns the token address of leg s.
func (p Pair) Address(s Side) common.Address {
	return p.Token(s).Address()
}

// Decimals returns the decimal exponent of leg s.
func (p Pair) Decimals(s Side) int32 {
	return p.Token(s).Exp()
}

// Amount converts d human units of leg s into a token amount. Digits
// beyond the token's precision are truncated.
func (p Pair) Amount(s Side, d decimal.Decimal) (asset.Amount, error) {
	return asset.FromDecimal(p.Token(s), d)
}

// Human converts a non-negative minor-unit amount of leg s into human
// units. A nil raw is zero.
func (p Pair) Human(s Side, raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return asset.NewAmount(p.Token(s), raw).ToDecimal()
}

// Pool returns the lending pool of leg s.
func (p Pair) Pool(s Side) common.Address {
	if s == Token0 {
		return p.Pool0
	}
	return p.Pool1
}

// USD returns the reference USD price of leg s.
func (p Pair) USD(s Side) decimal.Decimal {
	if s == Token0 {
		return p.Token0USD
	}
	return p.Token1USD
}

// SideOf returns the leg holding addr.
func (p Pair) SideOf(addr common.Address) (Side, bool) {
	switch addr {
	case p.Token0.Address():
		return Token0, true
	case p.Token1.Address():
		return Token1, true
	default:
		return 0, false
	}
}

// VenueIDs splits DexData, keeping order and dropping blanks.
func (p Pair) VenueIDs() []string {
	parts := strings.Split(p.DexData, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// DefaultVenueID is the first venue of DexData. Price reads that are not
// tied to a particular venue go through it.
func (p Pair) DefaultVenueID() string {
	ids := p.VenueIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// HasVenue reports whether id appears in DexData.
func (p Pair) HasVenue(id string) bool {
	for _, v := range p.VenueIDs() {
		if v == id {
			return true
		}
	}
	return false
}

func (p Pair) String() string {
	if p.Token0 == nil || p.Token1 == nil {
		return fmt.Sprintf("market#%d", p.MarketID)
	}
	return fmt.Sprintf("%s-%s#%d", p.Token0.Symbol(), p.Token1.Symbol(), p.MarketID)
}

// Validate checks the pair carries everything routing needs.
func (p Pair) Validate() error {
	if p.Token0 == nil || p.Token1 == nil {
		return apperror.New(apperror.CodeRequiredField, apperror.WithContext("pair tokens"))
	}
	if p.Token0.Equals(p.Token1) {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("pair tokens must differ"))
	}
	if len(p.VenueIDs()) == 0 {
		return apperror.New(apperror.CodeRequiredField, apperror.WithContext("pair dexData"))
	}
	if p.Token0USD.IsNegative() || p.Token1USD.IsNegative() {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("negative usd reference price"))
	}
	return nil
}
