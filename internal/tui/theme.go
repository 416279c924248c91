package tui

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Catppuccin Mocha palette — true-color hex values
// https://catppuccin.com/palette
// ---------------------------------------------------------------------------

const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorSky      lipgloss.Color = "#89dceb"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface1 lipgloss.Color = "#45475a"
	colorSurface0 lipgloss.Color = "#313244"
	colorBase     lipgloss.Color = "#1e1e2e"
	colorMantle   lipgloss.Color = "#181825"
)

// ---------------------------------------------------------------------------
// Semantic color aliases
// ---------------------------------------------------------------------------

const (
	colorAccent  = colorSky
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorWarning = colorYellow
	colorMarker  = colorPink
	colorMuted   = colorOverlay0
	colorGrid    = colorSurface1
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorAccent)
	legendStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	labelStyle  = lipgloss.NewStyle().Foreground(colorText)
	hintStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	focusStyle  = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)

	gridStyle   = lipgloss.NewStyle().Foreground(colorGrid)
	markerStyle = lipgloss.NewStyle().Foreground(colorMarker).Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorSurface0).
			Padding(0, 2)
	activeButtonStyle = lipgloss.NewStyle().
				Foreground(colorBase).
				Background(colorTeal).
				Bold(true).
				Padding(0, 2)
	confirmStyle = lipgloss.NewStyle().
			Foreground(colorBase).
			Background(colorGreen).
			Bold(true).
			Padding(0, 3)
	disabledStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorSurface0).
			Padding(0, 3)

	statusStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Background(colorMantle).
			Padding(1, 2)
	modalErrorStyle = modalStyle.BorderForeground(colorError)
	keyStyle        = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
)
