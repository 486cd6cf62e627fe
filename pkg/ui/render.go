package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/offchain"
	"github.com/fd1az/margin-router/pkg/ui/components"
)

// Renderer formats trade results for one chain.
type Renderer struct {
	chainID uint64
}

// NewRenderer creates a Renderer. chainID resolves venue names.
func NewRenderer(chainID uint64) *Renderer {
	return &Renderer{chainID: chainID}
}

func (r *Renderer) venueName(id string) string {
	v, err := domain.ParseVenue(id, r.chainID)
	if err != nil {
		return id
	}
	return v.Name
}

// Preview renders an open-trade preview. A nil preview means the market
// does not exist.
func (r *Renderer) Preview(pair domain.Pair, ti domain.TradeInfo, p *app.TradePreview) string {
	title := TitleStyle.Render(fmt.Sprintf("OPEN %s", pair))
	if p == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, MutedValue.Render("market not found"))
	}

	long := pair.Token(ti.LongToken).Symbol()
	borrow := pair.Token(ti.BorrowSide()).Symbol()
	dep := pair.Token(ti.DepositToken).Symbol()

	summary := components.NewSummaryComponent("SUMMARY").
		Add("Deposit", fmt.Sprintf("%s %s", ti.DepositAmount.String(), dep)).
		Add("Leverage", fmt.Sprintf("%dx long %s", ti.Level, long)).
		Add("Borrowing", fmt.Sprintf("%s %s", p.Borrowing.StringFixed(6), borrow)).
		Add("Available", fmt.Sprintf("%s %s", p.BorrowingAvailable.StringFixed(6), borrow)).
		Add("Interest", p.BorrowInterest.StringFixed(2)+"% / year").
		Add("Swap total", fmt.Sprintf("%s %s", p.SwapTotalAmount.StringFixed(6), borrow)).
		Add("Lever fees", fmt.Sprintf("%s %s (%s bps)", p.LeverFees.StringFixed(6), dep, p.LeverFeesRate.String())).
		Add("Discounted", fmt.Sprintf("%s %s (%s bps)", p.DiscountLeverFees.StringFixed(6), dep, p.DiscountLeverFeesRate.String())).
		Add("Margin limit", p.MarginLimit.String()+" bps").
		AddTone("Best venue", r.venueName(p.Dex), "positive")

	quotes := components.NewQuotesComponent("VENUES", "Held "+long)
	if p.Route != nil {
		for _, e := range p.Route.Entries() {
			q := e.Quote
			row := components.QuoteRow{
				Venue:       r.venueName(e.Venue),
				Amount:      q.Held,
				MinAmount:   q.MinBuyAmount,
				SwapFees:    q.SwapFees,
				PriceImpact: q.PriceImpact,
				Best:        e.Venue == p.Dex,
			}
			if q.ShouldUpdatePrice {
				row.Note = fmt.Sprintf("stale price, wait %ds", q.WaitingSecond)
			}
			if q.Aggregator != nil {
				row.Note = strings.TrimSpace(row.Note + " gas $" + q.Aggregator.GasUSD.StringFixed(2))
			}
			quotes.Add(row)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		BoxStyle.Render(summary.View()),
		BoxStyle.Render(quotes.View()),
	)
}

// Position renders a position view.
func (r *Renderer) Position(pair domain.Pair, long domain.Side, pos *domain.PositionView) string {
	title := TitleStyle.Render(fmt.Sprintf("POSITION %s long %s", pair, pair.Token(long).Symbol()))
	if pos == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, MutedValue.Render("no position"))
	}

	pnlTone := "positive"
	if pos.PnLValue.IsNegative() {
		pnlTone = "negative"
	}
	marginTone := ""
	if pos.MarginRatio.LessThanOrEqual(pos.MarginLimit.Mul(decimal.NewFromInt(2))) {
		marginTone = "warn"
	}

	summary := components.NewSummaryComponent("POSITION").
		Add("Held", fmt.Sprintf("%s %s", pos.Held.StringFixed(6), pair.Token(long).Symbol())).
		Add("Deposited", fmt.Sprintf("%s %s", pos.Deposited.StringFixed(6), pair.Token(pos.DepositToken).Symbol())).
		Add("Open price", pos.OpenPrice.StringFixed(8)).
		Add("Current price", pos.CurrentPrice.StringFixed(8)).
		Add("Liquidation", pos.LiquidationPrice.StringFixed(8)).
		AddTone("Margin ratio", pos.MarginRatio.StringFixed(2)+"%", marginTone).
		Add("Margin limit", pos.MarginLimit.StringFixed(2)+"%").
		AddTone("PnL", fmt.Sprintf("%s (%s%%)", pos.PnLValue.StringFixed(6), pos.PnLPercent.StringFixed(2)), pnlTone).
		Add("Price venue", r.venueName(pos.PriceDex))

	return lipgloss.JoinVertical(lipgloss.Left, title, BoxStyle.Render(summary.View()))
}

// ClosePreview renders a close preview of pos.
func (r *Renderer) ClosePreview(pair domain.Pair, long domain.Side, pos *domain.PositionView, p *app.ClosePreview) string {
	title := TitleStyle.Render(fmt.Sprintf("CLOSE %s", pair))
	if p == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, MutedValue.Render("market not found"))
	}

	borrow := pair.Token(long.Other()).Symbol()
	summary := components.NewSummaryComponent("SUMMARY").
		Add("Close ratio", p.CloseRatio.Mul(decimal.NewFromInt(100)).StringFixed(2)+"%").
		Add("Repay", fmt.Sprintf("%s %s (minor units)", p.RepayAmount.StringFixed(0), borrow)).
		Add("Lever fee off", p.DiscountLeverFees.StringFixed(6)).
		Add("Swap total", p.SwapTotalInWei.String()).
		AddTone("Best venue", r.venueName(p.Dex), "positive")

	quotes := components.NewQuotesComponent("VENUES", "Returns")
	if p.Route != nil {
		for _, e := range p.Route.Entries() {
			q := e.Quote
			minAmount := q.MinBuyAmount
			if !q.MaxSellAmount.IsZero() {
				minAmount = q.MaxSellAmount
			}
			quotes.Add(components.QuoteRow{
				Venue:       r.venueName(e.Venue),
				Amount:      q.CloseReturns,
				MinAmount:   minAmount,
				SwapFees:    q.SwapFees,
				PriceImpact: q.PriceImpact,
				Best:        e.Venue == p.Dex,
			})
		}
	}

	parts := []string{title}
	if pos != nil {
		parts = append(parts, MutedValue.Render(fmt.Sprintf("held %s, share %s", pos.Held.StringFixed(6), pos.Share.StringFixed(6))))
	}
	parts = append(parts, BoxStyle.Render(summary.View()), BoxStyle.Render(quotes.View()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Pairs renders the published pairs listing.
func (r *Renderer) Pairs(listings []offchain.PairListing) string {
	rows := make([]components.PairRow, 0, len(listings))
	for _, l := range listings {
		names := make([]string, 0)
		for _, id := range strings.Split(l.DexNames, ",") {
			if id = strings.TrimSpace(id); id != "" {
				names = append(names, r.venueName(id))
			}
		}
		rows = append(rows, components.PairRow{
			Symbol:   l.Symbol(),
			Price:    l.Price,
			Leverage: l.Leverage,
			Venues:   strings.Join(names, ","),
			TaxToken: l.IsTaxToken,
		})
	}
	return components.NewPairsComponent(rows).View()
}

// Error renders err on one line.
func Error(err error) string {
	return ErrorStyle.Render("error: ") + err.Error()
}
