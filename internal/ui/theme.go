// Package ui renders session results for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the colour palette shared by every renderer.
type Theme struct {
	Text   lipgloss.Color
	Dim    lipgloss.Color
	Muted  lipgloss.Color
	Border lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// DefaultTheme is a dark palette in the Tokyo Night family.
var DefaultTheme = Theme{
	Text:   lipgloss.Color("#c0caf5"),
	Dim:    lipgloss.Color("#565f89"),
	Muted:  lipgloss.Color("#414868"),
	Border: lipgloss.Color("#414868"),

	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7dcfff"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Base    lipgloss.Style
	Dim     lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Header  lipgloss.Style
	Column  lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Box     lipgloss.Style
	Key     lipgloss.Style
	Hint    lipgloss.Style
}

// NewStyles builds Styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Base:    lipgloss.NewStyle().Foreground(t.Text),
		Dim:     lipgloss.NewStyle().Foreground(t.Dim),
		Muted:   lipgloss.NewStyle().Foreground(t.Muted),
		Bold:    lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		Header:  lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		Column:  lipgloss.NewStyle().Foreground(t.Dim).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(t.Dim).Width(14),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Info:    lipgloss.NewStyle().Foreground(t.Info),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Key:  lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		Hint: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// DefaultStyles uses DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// PlainStyles renders without colour or borders, for pipes and tests.
var PlainStyles = plainStyles()

func plainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Base:    plain,
		Dim:     plain,
		Muted:   plain,
		Bold:    plain,
		Header:  plain,
		Column:  plain,
		Label:   plain.Width(14),
		Success: plain,
		Warning: plain,
		Error:   plain,
		Info:    plain,
		Box:     plain,
		Key:     plain,
		Hint:    plain,
	}
}
