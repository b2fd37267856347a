package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Status icons.
const (
	IconSuccess = "✓"
	IconInfo    = "•"
	IconWarning = "!"
	IconError   = "✗"
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates colored styles bound to w's color profile.
func NewStyles(w io.Writer) *Styles {
	lr := lipgloss.NewRenderer(w)
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header2: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("14")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		Header1: plain,
		Header2: plain,
		Bold:    plain,
		Muted:   plain,
		Success: plain,
		Info:    plain,
		Warning: plain,
		Error:   plain,
	}
}

// Status returns the icon and style for a status or level name.
func (s *Styles) Status(status string) (string, lipgloss.Style) {
	switch status {
	case "success", "ok":
		return IconSuccess, s.Success
	case "warning", "warn", "rejected":
		return IconWarning, s.Warning
	case "error", "failed":
		return IconError, s.Error
	default:
		return IconInfo, s.Info
	}
}
