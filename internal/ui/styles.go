package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRecording  = lipgloss.Color("#EF4444")
	ColorProcessing = lipgloss.Color("#F59E0B")
	ColorSuccess    = lipgloss.Color("#10B981")
	ColorError      = lipgloss.Color("#EF4444")
	ColorCyan       = lipgloss.Color("#22D3EE")
	ColorGray       = lipgloss.Color("#6B7280")
	ColorDimGray    = lipgloss.Color("#374151")
	ColorWhite      = lipgloss.Color("#F9FAFB")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(ColorRecording).
			Bold(true)

	ProcessingStyle = lipgloss.NewStyle().
			Foreground(ColorProcessing)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	ButtonDisabledStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)

	UserLabelStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	AssistantLabelStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Bold(true)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorProcessing).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
