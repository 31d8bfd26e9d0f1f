package ui

import (
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

var (
	headerCell = lipgloss.NewStyle().Foreground(Primary).Bold(true).Padding(0, 1)
	evenCell   = lipgloss.NewStyle().Foreground(Text).Padding(0, 1)
	oddCell    = lipgloss.NewStyle().Foreground(TextDim).Padding(0, 1)
)

// Table renders rows under headers with a rounded border and striped rows.
// Rows shorter than headers are padded with empty cells.
func Table(headers []string, rows [][]string) string {
	padded := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(headers))
		copy(row, r)
		padded[i] = row
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Border)).
		Headers(headers...).
		Rows(padded...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCell
			case row%2 == 0:
				return evenCell
			default:
				return oddCell
			}
		})
	return t.String()
}
