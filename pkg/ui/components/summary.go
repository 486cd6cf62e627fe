package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled value.
type Field struct {
	Label string
	Value string
	// Tone is "", "positive", "negative" or "warn".
	Tone string
}

// SummaryComponent renders a titled list of labelled values.
type SummaryComponent struct {
	title  string
	fields []Field
}

// NewSummaryComponent creates an empty summary.
func NewSummaryComponent(title string) *SummaryComponent {
	return &SummaryComponent{title: title}
}

// Add appends a field.
func (s *SummaryComponent) Add(label, value string) *SummaryComponent {
	s.fields = append(s.fields, Field{Label: label, Value: value})
	return s
}

// AddTone appends a field rendered with tone.
func (s *SummaryComponent) AddTone(label, value, tone string) *SummaryComponent {
	s.fields = append(s.fields, Field{Label: label, Value: value, Tone: tone})
	return s
}

// View renders the summary component.
func (s *SummaryComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	tones := map[string]lipgloss.Style{
		"positive": lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		"negative": lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		"warn":     lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
	}

	width := 0
	for _, f := range s.fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(s.title))
	b.WriteString("\n")
	for _, f := range s.fields {
		style, ok := tones[f.Tone]
		if !ok {
			style = valueStyle
		}
		fmt.Fprintf(&b, "  %s  %s\n",
			labelStyle.Render(fmt.Sprintf("%-*s", width, f.Label)),
			style.Render(f.Value),
		)
	}
	return b.String()
}
