package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

const minMeterCells = 4

// Meter renders "label ███░░░ 42%" in exactly width cells, or wider when
// width cannot fit the label and a minimal bar. The bar is green from 80%,
// amber from 50% and red below.
func Meter(label string, fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	pct := fmt.Sprintf(" %3d%%", int(fraction*100))

	prefix := ""
	if label != "" {
		prefix = Label.Render(label) + " "
	}
	cells := max(width-lipgloss.Width(prefix)-len(pct), minMeterCells)
	filled := int(float64(cells) * fraction)

	fill := Bad
	switch {
	case fraction >= 0.8:
		fill = Good
	case fraction >= 0.5:
		fill = Warn
	}
	empty := lipgloss.NewStyle().Foreground(Border)

	return prefix +
		fill.Render(strings.Repeat("█", filled)) +
		empty.Render(strings.Repeat("░", cells-filled)) +
		Label.Render(pct)
}
