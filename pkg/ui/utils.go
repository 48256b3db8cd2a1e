package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
)

// SessionDateFormat is how session creation times are shown in the sidebar.
const SessionDateFormat = "Jan 2, 03:04 PM"

func wrapWords(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

func truncateWithTail(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

// markdownRenderer renders assistant answers. A nil renderer falls back to
// plain word wrapping.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(style string, width int) *markdownRenderer {
	if style == "" || width <= 0 {
		return &markdownRenderer{}
	}

	styleOption := glamour.WithStandardStyle(style)
	if style == "auto" {
		styleOption = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(width))
	if err != nil {
		log.Warn().Err(err).Str("style", style).Msg("could not create markdown renderer")
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

func (m *markdownRenderer) Render(s string, width int) string {
	if m == nil || m.renderer == nil {
		return wrapWords(s, width)
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		log.Debug().Err(err).Msg("markdown rendering failed")
		return wrapWords(s, width)
	}
	return strings.Trim(out, "\n")
}
