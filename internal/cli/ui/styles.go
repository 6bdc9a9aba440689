package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// Styles defines all lipgloss styles used in the CLI
var Styles = struct {
	Bold   lipgloss.Style
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Muted  lipgloss.Style
	Border lipgloss.Style
}{
	Bold: lipgloss.NewStyle().Bold(true),

	Title: lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true).
		MarginTop(1),

	Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Border: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}

var tierColors = map[domain.Tier]lipgloss.Color{
	domain.TierHigh:   lipgloss.Color("196"),
	domain.TierMedium: lipgloss.Color("214"),
	domain.TierLow:    lipgloss.Color("42"),
}

// TierStyle colors a risk tier label.
func TierStyle(t domain.Tier) lipgloss.Style {
	return Styles.Cell.Foreground(tierColors[t]).Bold(t == domain.TierHigh)
}
