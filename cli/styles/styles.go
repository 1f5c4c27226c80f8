// Package styles provides consistent styling for the strand CLI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// Color palette
var (
	Primary      = lipgloss.Color("#06B6D4") // Cyan
	PrimaryLight = lipgloss.Color("#67E8F9") // Light cyan

	Success = lipgloss.Color("#10B981") // Emerald green
	Warning = lipgloss.Color("#F59E0B") // Amber
	Error   = lipgloss.Color("#EF4444") // Red
	Info    = lipgloss.Color("#3B82F6") // Blue

	Text      = lipgloss.Color("#F9FAFB") // Almost white
	TextMuted = lipgloss.Color("#9CA3AF") // Gray
	TextDim   = lipgloss.Color("#6B7280") // Darker gray
	Border    = lipgloss.Color("#374151") // Border gray
)

// Text styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryLight)

	Normal = lipgloss.NewStyle().
		Foreground(Text)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Dim = lipgloss.NewStyle().
		Foreground(TextDim)

	Highlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryLight)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info)
)

// Icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconArrow   = "→"
	IconDot     = "•"
	IconPending = "◌"
)

// newRoundedBox creates a box style with rounded border and specified border color.
func newRoundedBox(borderColor lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2)
}

// Box styles for containers
var (
	Box          = newRoundedBox(Border)
	BoxHighlight = newRoundedBox(Primary)
	BoxSuccess   = newRoundedBox(Success)
	BoxError     = newRoundedBox(Error)
)

// FormatSuccess formats a success message with icon
func FormatSuccess(msg string) string {
	return SuccessStyle.Render(IconSuccess) + " " + Normal.Render(msg)
}

// FormatError formats an error message with icon
func FormatError(msg string) string {
	return ErrorStyle.Render(IconError) + " " + Normal.Render(msg)
}

// FormatWarning formats a warning message with icon
func FormatWarning(msg string) string {
	return WarningStyle.Render(IconWarning) + " " + Normal.Render(msg)
}

// FormatInfo formats an info message with icon
func FormatInfo(msg string) string {
	return InfoStyle.Render(IconInfo) + " " + Normal.Render(msg)
}

// FormatKeyValue formats a key-value pair
func FormatKeyValue(key, value string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(20)
	return keyStyle.Render(key+":") + " " + Highlight.Render(value)
}

// RenderSagaStatus renders a saga status with its color.
func RenderSagaStatus(status adapters.SagaStatus) string {
	switch status {
	case adapters.SagaStatusCompleted:
		return SuccessStyle.Render(string(status))
	case adapters.SagaStatusFailed:
		return ErrorStyle.Render(string(status))
	case adapters.SagaStatusWaitingApproval:
		return WarningStyle.Render(string(status))
	case adapters.SagaStatusCompensating:
		return WarningStyle.Render(string(status))
	default:
		return InfoStyle.Render(string(status))
	}
}

// RenderStepStatus renders a step status with its icon and color.
func RenderStepStatus(status adapters.StepStatus) string {
	switch status {
	case adapters.StepCompleted, adapters.StepApproved:
		return SuccessStyle.Render(IconSuccess + " " + string(status))
	case adapters.StepFailed, adapters.StepRejected:
		return ErrorStyle.Render(IconError + " " + string(status))
	case adapters.StepWaitingApproval:
		return WarningStyle.Render(IconPending + " " + string(status))
	default:
		return Muted.Render(string(status))
	}
}

// DisableColors disables all colors for terminals that don't support them
func DisableColors() {
	Primary = lipgloss.Color("")
	PrimaryLight = lipgloss.Color("")
	Success = lipgloss.Color("")
	Warning = lipgloss.Color("")
	Error = lipgloss.Color("")
	Info = lipgloss.Color("")
	Text = lipgloss.Color("")
	TextMuted = lipgloss.Color("")
	TextDim = lipgloss.Color("")
	Border = lipgloss.Color("")
}
