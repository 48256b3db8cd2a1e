package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/kbchat/pkg/conversation"
)

const sidebarWidth = 30

const welcomeText = `Personal Knowledge Assistant

Ask me anything from your knowledge base.
Type /upload <file.pdf> to add new documents.`

func (m Model) sidebarView(height int) string {
	var b strings.Builder
	b.WriteString(m.style.Header.Render("Chats"))
	b.WriteString("\n\n")

	inner := sidebarWidth - 4
	for _, s := range m.backend.Projector.SessionList() {
		title := truncateWithTail(s.Title, inner)
		date := m.style.SessionDate.Render(s.CreatedAt.Format(SessionDateFormat))
		entry := title + "\n" + date
		if s.Active {
			b.WriteString(m.style.ActiveSession.Render(entry))
		} else {
			b.WriteString(m.style.Session.Render(entry))
		}
		b.WriteString("\n")
	}

	return m.style.Sidebar.
		Width(sidebarWidth).
		Height(height).
		Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) transcriptView(width int) string {
	msgs := m.backend.Projector.ActiveTranscript()
	if len(msgs) == 0 {
		return m.style.Welcome.Render(wrapWords(welcomeText, width-4))
	}

	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.messageView(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) messageView(msg conversation.Message, width int) string {
	var style lipgloss.Style
	switch {
	case msg.Role == conversation.RoleUser:
		style = m.style.UserMessage
	case msg.Kind == conversation.KindNotice:
		style = m.style.NoticeMessage
	case msg.Kind == conversation.KindError:
		style = m.style.ErrorMessage
	default:
		style = m.style.AssistantMessage
	}
	contentWidth := width - style.GetHorizontalFrameSize()

	role := "You"
	body := wrapWords(msg.Content, contentWidth)
	if msg.Role == conversation.RoleAssistant {
		role = "Assistant"
		if msg.Kind == conversation.KindChat {
			body = m.markdown.Render(msg.Content, contentWidth)
		}
	}

	var b strings.Builder
	b.WriteString(m.style.Role.Render(role))
	b.WriteString("\n")
	b.WriteString(body)
	if len(msg.Sources) > 0 {
		b.WriteString("\n\n")
		var sources strings.Builder
		sources.WriteString("Sources:")
		for _, s := range msg.Sources {
			sources.WriteString(fmt.Sprintf("\n  • %s", s))
		}
		b.WriteString(m.style.Sources.Render(wrapWords(sources.String(), contentWidth)))
	}

	return style.Width(width).Render(b.String())
}
