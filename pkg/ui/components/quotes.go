// Package components provides the reusable terminal views.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// QuoteRow is one venue of a route.
type QuoteRow struct {
	Venue       string
	Amount      decimal.Decimal
	MinAmount   decimal.Decimal
	SwapFees    decimal.Decimal
	PriceImpact decimal.Decimal
	Best        bool
	// Note carries venue specific remarks such as a stale price.
	Note string
}

// QuotesComponent renders the venues of a route side by side.
type QuotesComponent struct {
	title      string
	amountName string
	rows       []QuoteRow
}

// NewQuotesComponent creates a quotes table. amountName labels the
// Amount column ("Held" for opens, "Returns" for closes).
func NewQuotesComponent(title, amountName string) *QuotesComponent {
	return &QuotesComponent{
		title:      title,
		amountName: amountName,
		rows:       make([]QuoteRow, 0),
	}
}

// Add appends a venue row.
func (q *QuotesComponent) Add(row QuoteRow) {
	q.rows = append(q.rows, row)
}

// View renders the quotes component.
func (q *QuotesComponent) View() string {
	if len(q.rows) == 0 {
		return "No venue quoted"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	bestStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	result := headerStyle.Render(q.title) + "\n\n"
	result += fmt.Sprintf("  %-12s  %18s  %18s  %12s  %8s\n",
		"Venue", q.amountName, "Min", "Fees", "Impact")
	result += dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n"

	for _, row := range q.rows {
		venue := fmt.Sprintf("%-12s", row.Venue)
		if row.Best {
			venue = bestStyle.Render(fmt.Sprintf("%-12s", "★ "+row.Venue))
		}

		impact := fmt.Sprintf("%7s%%", row.PriceImpact.StringFixed(2))
		if row.PriceImpact.GreaterThan(decimal.NewFromInt(5)) {
			impact = warnStyle.Render(impact)
		}

		result += fmt.Sprintf("  %s  %18s  %18s  %12s  %s",
			venue,
			row.Amount.StringFixed(6),
			row.MinAmount.StringFixed(6),
			row.SwapFees.StringFixed(6),
			impact,
		)
		if row.Note != "" {
			result += "  " + warnStyle.Render(row.Note)
		}
		result += "\n"
	}

	return result
}
