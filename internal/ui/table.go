package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nailsizes/nailsizes/internal/schema"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

// Table renders rows as left-aligned columns. Widths are measured on the
// rendered cells so styled text lines up.
func Table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string, style func(string) string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if style != nil {
				cell = style(cell)
			}
			pad := widths[i] - lipgloss.Width(cell)
			if pad < 0 {
				pad = 0
			}
			parts[i] = cell + strings.Repeat(" ", pad)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(header, func(s string) string { return headerStyle.Render(s) })
	for _, row := range rows {
		line(row, nil)
	}
}

// ClientTable prints clients in the order given.
func ClientTable(w io.Writer, clients []*schema.Client) {
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{c.ID, c.NameOrID, c.Phone, c.Email, RenderMuted(c.UpdatedAt)})
	}
	Table(w, []string{"ID", "NAME", "PHONE", "EMAIL", "UPDATED"}, rows)
}

// StyleTable prints the style catalog.
func StyleTable(w io.Writer, styles []*schema.Style) {
	rows := make([][]string, 0, len(styles))
	for _, s := range styles {
		rows = append(rows, []string{RenderAccent(s.ID), s.Name, s.MinLabel + "-" + s.MaxLabel, s.ImageFile})
	}
	Table(w, []string{"ID", "NAME", "SIZES", "IMAGE"}, rows)
}
