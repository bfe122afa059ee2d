// SPDX-License-Identifier: MPL-2.0

package cli

import "github.com/charmbracelet/lipgloss"

// Color palette - shared hex colors for consistent theming across CLI output.
const (
	// ColorPrimary is purple - used for titles and primary emphasis.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for secondary, de-emphasized text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorHighlight is blue - used for commands and image references.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for the banner headline.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// CmdStyle is for command and image names within messages.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)
