package rest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
)

type tokenDTO struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type pairDTO struct {
	MarketID  uint16          `json:"marketId"`
	Token0    tokenDTO        `json:"token0"`
	Token1    tokenDTO        `json:"token1"`
	Pool0     string          `json:"pool0"`
	Pool1     string          `json:"pool1"`
	Slippage  decimal.Decimal `json:"slippage"`
	DexData   string          `json:"dexData"`
	Token0USD decimal.Decimal `json:"token0Usd"`
	Token1USD decimal.Decimal `json:"token1Usd"`
}

func (p pairDTO) toPair(reg *asset.Registry, chainID uint64) (domain.Pair, error) {
	t0, err := resolveToken(reg, chainID, p.Token0, "token0")
	if err != nil {
		return domain.Pair{}, err
	}
	t1, err := resolveToken(reg, chainID, p.Token1, "token1")
	if err != nil {
		return domain.Pair{}, err
	}
	pool0, err := parseAddress(p.Pool0, "pool0", true)
	if err != nil {
		return domain.Pair{}, err
	}
	pool1, err := parseAddress(p.Pool1, "pool1", true)
	if err != nil {
		return domain.Pair{}, err
	}

	pair := domain.Pair{
		MarketID:  p.MarketID,
		Token0:    t0,
		Token1:    t1,
		Pool0:     pool0,
		Pool1:     pool1,
		Slippage:  p.Slippage,
		DexData:   p.DexData,
		Token0USD: p.Token0USD,
		Token1USD: p.Token1USD,
	}
	if err := pair.Validate(); err != nil {
		return domain.Pair{}, err
	}
	return pair, nil
}

func resolveToken(reg *asset.Registry, chainID uint64, t tokenDTO, field string) (*asset.Asset, error) {
	addr, err := parseAddress(t.Address, field, false)
	if err != nil {
		return nil, err
	}
	a, err := reg.Resolve(chainID, addr, t.Symbol, t.Decimals)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext(field), apperror.WithCause(err))
	}
	return a, nil
}

// parseAddress accepts an empty string only when optional is set.
func parseAddress(s, field string, optional bool) (common.Address, error) {
	if s == "" && optional {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(field+": not a hex address"))
	}
	return common.HexToAddress(s), nil
}

func parseSides(long, dep int) (domain.Side, domain.Side, error) {
	l, err := domain.ParseSide(long)
	if err != nil {
		return 0, 0, apperror.New(apperror.CodeInvalidTrade, apperror.WithContext("longToken"), apperror.WithCause(err))
	}
	d, err := domain.ParseSide(dep)
	if err != nil {
		return 0, 0, apperror.New(apperror.CodeInvalidTrade, apperror.WithContext("depositToken"), apperror.WithCause(err))
	}
	return l, d, nil
}

type previewRequest struct {
	Pair          pairDTO         `json:"pair"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
	Level         int64           `json:"level"`
	Slippage      decimal.Decimal `json:"slippage"`
	LongToken     int             `json:"longToken"`
	DepositToken  int             `json:"depositToken"`
	Trader        string          `json:"trader"`
	// Plan also returns the unsigned marginTrade call.
	Plan bool   `json:"plan"`
	Dex  string `json:"dex"`
}

type positionRequest struct {
	Pair         pairDTO `json:"pair"`
	LongToken    int     `json:"longToken"`
	DepositToken int     `json:"depositToken"`
	Trader       string  `json:"trader"`
}

type closePreviewRequest struct {
	positionRequest
	CloseAmount decimal.Decimal `json:"closeAmount"`
	Slippage    decimal.Decimal `json:"slippage"`
	Lever       decimal.Decimal `json:"lever"`
	Plan        bool            `json:"plan"`
	Dex         string          `json:"dex"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type aggregatorDTO struct {
	FinalBackUSD       decimal.Decimal `json:"finalBackUsd"`
	ToTokenAmountInWei string          `json:"toTokenAmountInWei"`
	GasUSD             decimal.Decimal `json:"gasUsd"`
}

type overChangeDTO struct {
	Amount decimal.Decimal `json:"amount"`
	Addr   common.Address  `json:"addr"`
	Dex    string          `json:"dex"`
}

func newAggregatorDTO(a *domain.AggregatorLeg) *aggregatorDTO {
	if a == nil {
		return nil
	}
	return &aggregatorDTO{
		FinalBackUSD:       a.FinalBackUSD,
		ToTokenAmountInWei: bigString(a.ToTokenAmountInWei),
		GasUSD:             a.GasUSD,
	}
}

func newOverChangeDTO(o *domain.OverChange) *overChangeDTO {
	if o == nil {
		return nil
	}
	return &overChangeDTO{Amount: o.Amount, Addr: o.Addr, Dex: o.Dex}
}

type tradeQuoteDTO struct {
	Dex                  string          `json:"dex"`
	Token0PriceOfToken1  decimal.Decimal `json:"token0PriceOfToken1"`
	SwapFeesRate         decimal.Decimal `json:"swapFeesRate"`
	SwapFees             decimal.Decimal `json:"swapFees"`
	Held                 decimal.Decimal `json:"held"`
	MinBuyAmount         decimal.Decimal `json:"minBuyAmount"`
	LiquidationPrice     decimal.Decimal `json:"liquidationPrice"`
	PriceImpact          decimal.Decimal `json:"priceImpact"`
	DexCallData          hexutil.Bytes   `json:"dexCallData"`
	SwapTotalAmountInWei string          `json:"swapTotalAmountInWei"`
	Aggregator           *aggregatorDTO  `json:"aggregator,omitempty"`
	OverChange           *overChangeDTO  `json:"overChange,omitempty"`
	ShouldUpdatePrice    bool            `json:"shouldUpdatePrice"`
	WaitingSecond        int64           `json:"waitingSecond"`
}

type closeQuoteDTO struct {
	Dex                  string          `json:"dex"`
	Token0PriceOfToken1  decimal.Decimal `json:"token0PriceOfToken1"`
	SwapFeesRate         decimal.Decimal `json:"swapFeesRate"`
	SwapFees             decimal.Decimal `json:"swapFees"`
	CloseReturns         decimal.Decimal `json:"closeReturns"`
	MinBuyAmount         decimal.Decimal `json:"minBuyAmount"`
	MaxSellAmount        decimal.Decimal `json:"maxSellAmount"`
	PriceImpact          decimal.Decimal `json:"priceImpact"`
	DexCallData          hexutil.Bytes   `json:"dexCallData"`
	SwapTotalAmountInWei string          `json:"swapTotalAmountInWei"`
	Aggregator           *aggregatorDTO  `json:"aggregator,omitempty"`
	OverChange           *overChangeDTO  `json:"overChange,omitempty"`
}

type routeEntryDTO[Q any] struct {
	Venue string `json:"venue"`
	Quote Q      `json:"quote"`
}

type routeDTO[Q any] struct {
	Dex    string             `json:"dex"`
	Quotes []routeEntryDTO[Q] `json:"quotes"`
}

func newRouteDTO[S, D any](r *domain.Route[S], conv func(S) D) *routeDTO[D] {
	if r == nil {
		return nil
	}
	out := &routeDTO[D]{Dex: r.Dex}
	for _, e := range r.Entries() {
		out.Quotes = append(out.Quotes, routeEntryDTO[D]{Venue: e.Venue, Quote: conv(e.Quote)})
	}
	return out
}

func newTradeQuoteDTO(q *domain.TradeQuote) tradeQuoteDTO {
	return tradeQuoteDTO{
		Dex:                  q.Dex,
		Token0PriceOfToken1:  q.Token0PriceOfToken1,
		SwapFeesRate:         q.SwapFeesRate,
		SwapFees:             q.SwapFees,
		Held:                 q.Held,
		MinBuyAmount:         q.MinBuyAmount,
		LiquidationPrice:     q.LiquidationPrice,
		PriceImpact:          q.PriceImpact,
		DexCallData:          q.DexCallData,
		SwapTotalAmountInWei: bigString(q.SwapTotalAmountInWei),
		Aggregator:           newAggregatorDTO(q.Aggregator),
		OverChange:           newOverChangeDTO(q.OverChange),
		ShouldUpdatePrice:    q.ShouldUpdatePrice,
		WaitingSecond:        q.WaitingSecond,
	}
}

func newCloseQuoteDTO(q *domain.CloseQuote) closeQuoteDTO {
	return closeQuoteDTO{
		Dex:                  q.Dex,
		Token0PriceOfToken1:  q.Token0PriceOfToken1,
		SwapFeesRate:         q.SwapFeesRate,
		SwapFees:             q.SwapFees,
		CloseReturns:         q.CloseReturns,
		MinBuyAmount:         q.MinBuyAmount,
		MaxSellAmount:        q.MaxSellAmount,
		PriceImpact:          q.PriceImpact,
		DexCallData:          q.DexCallData,
		SwapTotalAmountInWei: bigString(q.SwapTotalAmountInWei),
		Aggregator:           newAggregatorDTO(q.Aggregator),
		OverChange:           newOverChangeDTO(q.OverChange),
	}
}

type tradePreviewDTO struct {
	Borrowing             decimal.Decimal          `json:"borrowing"`
	SwapTotalAmount       decimal.Decimal          `json:"swapTotalAmount"`
	BorrowInterest        decimal.Decimal          `json:"borrowInterest"`
	BorrowingAvailable    decimal.Decimal          `json:"borrowingAvailable"`
	LeverFees             decimal.Decimal          `json:"leverFees"`
	LeverFeesRate         decimal.Decimal          `json:"leverFeesRate"`
	DiscountLeverFees     decimal.Decimal          `json:"discountLeverFees"`
	DiscountLeverFeesRate decimal.Decimal          `json:"discountLeverFeesRate"`
	MarginLimit           decimal.Decimal          `json:"marginLimit"`
	Dex                   string                   `json:"dex"`
	Route                 *routeDTO[tradeQuoteDTO] `json:"route"`
}

func newTradePreviewDTO(p *app.TradePreview) *tradePreviewDTO {
	if p == nil {
		return nil
	}
	return &tradePreviewDTO{
		Borrowing:             p.Borrowing,
		SwapTotalAmount:       p.SwapTotalAmount,
		BorrowInterest:        p.BorrowInterest,
		BorrowingAvailable:    p.BorrowingAvailable,
		LeverFees:             p.LeverFees,
		LeverFeesRate:         p.LeverFeesRate,
		DiscountLeverFees:     p.DiscountLeverFees,
		DiscountLeverFeesRate: p.DiscountLeverFeesRate,
		MarginLimit:           p.MarginLimit,
		Dex:                   p.Dex,
		Route:                 newRouteDTO(p.Route, newTradeQuoteDTO),
	}
}

type closePreviewDTO struct {
	CloseRatio        decimal.Decimal          `json:"closeRatio"`
	DiscountLeverFees decimal.Decimal          `json:"discountLeverFees"`
	RepayAmount       decimal.Decimal          `json:"repayAmount"`
	SwapTotalInWei    string                   `json:"swapTotalInWei"`
	Dex               string                   `json:"dex"`
	Route             *routeDTO[closeQuoteDTO] `json:"route"`
}

func newClosePreviewDTO(p *app.ClosePreview) *closePreviewDTO {
	if p == nil {
		return nil
	}
	return &closePreviewDTO{
		CloseRatio:        p.CloseRatio,
		DiscountLeverFees: p.DiscountLeverFees,
		RepayAmount:       p.RepayAmount,
		SwapTotalInWei:    bigString(p.SwapTotalInWei),
		Dex:               p.Dex,
		Route:             newRouteDTO(p.Route, newCloseQuoteDTO),
	}
}

type positionDTO struct {
	MarginRatio      decimal.Decimal `json:"marginRatio"`
	MarginLimit      decimal.Decimal `json:"marginLimit"`
	CurrentPrice     decimal.Decimal `json:"currentPrice"`
	PnLValue         decimal.Decimal `json:"pnlValue"`
	PnLPercent       decimal.Decimal `json:"pnlPercent"`
	Held             decimal.Decimal `json:"held"`
	Share            decimal.Decimal `json:"share"`
	Deposited        decimal.Decimal `json:"deposited"`
	DepositToken     domain.Side     `json:"depositToken"`
	OpenPrice        decimal.Decimal `json:"openPrice"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	PriceDex         string          `json:"priceDex"`
	Borrowed         string          `json:"borrowed"`
}

func newPositionDTO(p *domain.PositionView) *positionDTO {
	if p == nil {
		return nil
	}
	return &positionDTO{
		MarginRatio:      p.MarginRatio,
		MarginLimit:      p.MarginLimit,
		CurrentPrice:     p.CurrentPrice,
		PnLValue:         p.PnLValue,
		PnLPercent:       p.PnLPercent,
		Held:             p.Held,
		Share:            p.Share,
		Deposited:        p.Deposited,
		DepositToken:     p.DepositToken,
		OpenPrice:        p.OpenPrice,
		LiquidationPrice: p.LiquidationPrice,
		PriceDex:         p.PriceDex,
		Borrowed:         bigString(p.OnChain.Borrowed),
	}
}

type openPlanDTO struct {
	To           common.Address `json:"to"`
	MarketID     uint16         `json:"marketId"`
	LongToken    domain.Side    `json:"longToken"`
	DepositToken domain.Side    `json:"depositToken"`
	Deposit      string         `json:"deposit"`
	Borrow       string         `json:"borrow"`
	MinBuyAmount string         `json:"minBuyAmount"`
	DexData      hexutil.Bytes  `json:"dexData"`
	Dex          string         `json:"dex"`
	Value        string         `json:"value"`
	CallData     hexutil.Bytes  `json:"callData"`
}

func newOpenPlanDTO(p *app.OpenPlan) *openPlanDTO {
	if p == nil {
		return nil
	}
	return &openPlanDTO{
		To:           p.To,
		MarketID:     p.MarketID,
		LongToken:    p.LongToken,
		DepositToken: p.DepositToken,
		Deposit:      bigString(p.Deposit),
		Borrow:       bigString(p.Borrow),
		MinBuyAmount: bigString(p.MinBuyAmount),
		DexData:      p.DexData,
		Dex:          p.Dex,
		Value:        bigString(p.Value),
		CallData:     p.CallData,
	}
}

type closePlanDTO struct {
	To             common.Address `json:"to"`
	MarketID       uint16         `json:"marketId"`
	LongToken      domain.Side    `json:"longToken"`
	CloseHeld      string         `json:"closeHeld"`
	MinOrMaxAmount string         `json:"minOrMaxAmount"`
	DexData        hexutil.Bytes  `json:"dexData"`
	Dex            string         `json:"dex"`
	CallData       hexutil.Bytes  `json:"callData"`
}

func newClosePlanDTO(p *app.ClosePlan) *closePlanDTO {
	if p == nil {
		return nil
	}
	return &closePlanDTO{
		To:             p.To,
		MarketID:       p.MarketID,
		LongToken:      p.LongToken,
		CloseHeld:      bigString(p.CloseHeld),
		MinOrMaxAmount: bigString(p.MinOrMaxAmount),
		DexData:        p.DexData,
		Dex:            p.Dex,
		CallData:       p.CallData,
	}
}

type previewResponse struct {
	Preview *tradePreviewDTO `json:"preview"`
	Plan    *openPlanDTO     `json:"plan,omitempty"`
}

type closePreviewResponse struct {
	Position *positionDTO     `json:"position"`
	Preview  *closePreviewDTO `json:"preview"`
	Plan     *closePlanDTO    `json:"plan,omitempty"`
}

// PreviewBody is the JSON body of a preview response.
func PreviewBody(p *app.TradePreview, plan *app.OpenPlan) any {
	return previewResponse{Preview: newTradePreviewDTO(p), Plan: newOpenPlanDTO(plan)}
}

// ClosePreviewBody is the JSON body of a close-preview response.
func ClosePreviewBody(pos *domain.PositionView, p *app.ClosePreview, plan *app.ClosePlan) any {
	return closePreviewResponse{
		Position: newPositionDTO(pos),
		Preview:  newClosePreviewDTO(p),
		Plan:     newClosePlanDTO(plan),
	}
}

// PositionBody is the JSON body of a position response.
func PositionBody(pos *domain.PositionView) any {
	return map[string]any{"position": newPositionDTO(pos)}
}
