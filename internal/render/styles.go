package render

import "github.com/charmbracelet/lipgloss"

var (
	textStyle        = lipgloss.NewStyle()
	buttonStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	disabledStyle    = lipgloss.NewStyle().Faint(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	inputStyle       = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
	placeholderStyle = lipgloss.NewStyle().Faint(true).Italic(true).Border(lipgloss.RoundedBorder()).Padding(0, 1)
	imageStyle       = lipgloss.NewStyle().Faint(true)
	lazyTailStyle    = lipgloss.NewStyle().Faint(true)
	statusStyle      = lipgloss.NewStyle().Faint(true)
	overlayStyle     = lipgloss.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).Padding(1, 2)
)
