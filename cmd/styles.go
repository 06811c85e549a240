package cmd

import "github.com/charmbracelet/lipgloss"

// Styles used across the CLI commands
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")). // Violet
			Bold(true).
			Padding(1, 0)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC")) // Light Gray

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B8B8B")).
			Width(14)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22C55E")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347")). // Tomato red
			Bold(true)

	statusStyles = map[string]lipgloss.Style{
		"active":       lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")),
		"pending":      lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308")),
		"inactive":     lipgloss.NewStyle().Foreground(lipgloss.Color("#8B8B8B")),
		"deregistered": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6347")).Strikethrough(true),
	}
)
