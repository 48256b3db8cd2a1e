package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	Header lipgloss.Style

	Sidebar       lipgloss.Style
	Session       lipgloss.Style
	ActiveSession lipgloss.Style
	SessionDate   lipgloss.Style

	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	NoticeMessage    lipgloss.Style
	ErrorMessage     lipgloss.Style
	Role             lipgloss.Style
	Sources          lipgloss.Style

	FocusedInput   lipgloss.Style
	UnfocusedInput lipgloss.Style
	Status         lipgloss.Style
	Welcome        lipgloss.Style
}

type BorderColors struct {
	Unselected string
	Selected   string
	Focused    string
	Error      string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		Unselected: "#CCCCCC",
		Selected:   "#FFB6C1", // Light pink
		Focused:    "#FFFF99", // Light yellow
		Error:      "#E06C75",
	}

	darkModeColors := BorderColors{
		Unselected: "#444444",
		Selected:   "#DD7090", // Desaturated pink for dark mode
		Focused:    "#DDDD77", // Desaturated yellow for dark mode
		Error:      "#BE5046",
	}

	color := func(pick func(BorderColors) string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: pick(lightModeColors), Dark: pick(darkModeColors)}
	}
	unselected := color(func(c BorderColors) string { return c.Unselected })
	selected := color(func(c BorderColors) string { return c.Selected })
	focused := color(func(c BorderColors) string { return c.Focused })
	errorColor := color(func(c BorderColors) string { return c.Error })

	return &Style{
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),

		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(unselected).
			Padding(0, 1),
		Session: lipgloss.NewStyle().Padding(0, 1),
		ActiveSession: lipgloss.NewStyle().Padding(0, 1).
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(selected).
			Bold(true),
		SessionDate: lipgloss.NewStyle().Faint(true),

		UserMessage: lipgloss.NewStyle().Padding(0, 1),
		AssistantMessage: lipgloss.NewStyle().Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(unselected),
		NoticeMessage: lipgloss.NewStyle().Padding(0, 1).Italic(true).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(focused),
		ErrorMessage: lipgloss.NewStyle().Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(errorColor).
			Foreground(errorColor),
		Role:    lipgloss.NewStyle().Bold(true),
		Sources: lipgloss.NewStyle().Faint(true),

		FocusedInput: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(focused),
		UnfocusedInput: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(unselected),
		Status:  lipgloss.NewStyle().Faint(true).Padding(0, 1),
		Welcome: lipgloss.NewStyle().Padding(1, 2),
	}
}
