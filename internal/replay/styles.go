package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	// user input
	userStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	// plans and steps
	planStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))

	// commands
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	// file changes
	fileStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	blockStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)
