package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PairRow is one listed pair.
type PairRow struct {
	Symbol   string
	Price    decimal.Decimal
	Leverage decimal.Decimal
	Venues   string
	TaxToken bool
}

// PairsComponent renders the published pairs.
type PairsComponent struct {
	rows []PairRow
}

// NewPairsComponent creates a pairs table.
func NewPairsComponent(rows []PairRow) *PairsComponent {
	return &PairsComponent{rows: rows}
}

// View renders the pairs component.
func (p *PairsComponent) View() string {
	if len(p.rows) == 0 {
		return "No pairs listed"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	result := headerStyle.Render(fmt.Sprintf("PAIRS (%d)", len(p.rows))) + "\n\n"
	result += fmt.Sprintf("  %-18s  %18s  %8s  %-16s\n", "Pair", "Price", "Lever", "Venues")
	result += dimStyle.Render("  "+strings.Repeat("─", 66)) + "\n"

	for _, row := range p.rows {
		line := fmt.Sprintf("  %-18s  %18s  %7sx  %-16s",
			row.Symbol,
			row.Price.StringFixed(8),
			row.Leverage.StringFixed(0),
			row.Venues,
		)
		if row.TaxToken {
			line += " " + warnStyle.Render("tax")
		}
		result += line + "\n"
	}

	return result
}
