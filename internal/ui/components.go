package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a header row and data rows rendered in aligned columns.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render lays the table out with two spaces between columns.
func (t Table) Render(s Styles) string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = s.Column.Render(padRight(h, widths[i]))
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	b.WriteString("\n")

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	b.WriteString(s.Muted.Render(strings.Repeat("─", total)))

	for _, row := range t.Rows {
		b.WriteString("\n")
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = padRight(cell, widths[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	return b.String()
}

// Section renders a bold title above a boxed body.
func Section(title, body string, s Styles) string {
	return s.Header.Render(title) + "\n" + s.Box.Render(body)
}

// KeyValues renders label/value pairs one per line.
func KeyValues(pairs [][2]string, s Styles) string {
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = s.Label.Render(p[0]) + s.Base.Render(p[1])
	}
	return strings.Join(lines, "\n")
}

// Badge renders a status marker and label.
//
//	● ok
func Badge(ok bool, label string, s Styles) string {
	if ok {
		return s.Success.Render("● " + label)
	}
	return s.Error.Render("✗ " + label)
}

// KeyHint is one keyboard shortcut.
type KeyHint struct {
	Key   string
	Label string
}

// KeyHints renders shortcuts on one line.
//
//	[q] Quit    [p] Pause
func KeyHints(hints []KeyHint, s Styles) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = s.Key.Render("["+h.Key+"]") + " " + s.Hint.Render(h.Label)
	}
	return strings.Join(parts, "    ")
}

func padRight(text string, width int) string {
	if w := lipgloss.Width(text); w < width {
		return text + strings.Repeat(" ", width-w)
	}
	return text
}
