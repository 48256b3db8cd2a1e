package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/exchange"
)

const uploadCommand = "/upload"

// Model is the chat screen: a session sidebar, the active transcript and an
// input box. It keeps no transcript state of its own and re-reads the
// registry on every refresh.
type Model struct {
	ctx     context.Context
	backend *Backend

	viewport viewport.Model
	textArea textarea.Model
	spinner  spinner.Model
	help     help.Model

	keyMap   KeyMap
	style    *Style
	markdown *markdownRenderer
	mdStyle  string

	width  int
	height int

	busy   bool
	status string
}

type ModelOption func(*Model)

// WithMarkdownStyle picks the glamour style for answers ("auto", "dark",
// "light", "notty"). An empty style renders plain text.
func WithMarkdownStyle(style string) ModelOption {
	return func(m *Model) {
		m.mdStyle = style
	}
}

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		m.ctx = ctx
	}
}

func NewModel(backend *Backend, options ...ModelOption) Model {
	ret := Model{
		ctx:      context.Background(),
		backend:  backend,
		keyMap:   DefaultKeyMap,
		style:    DefaultStyles(),
		viewport: viewport.New(0, 0),
		help:     help.New(),
		mdStyle:  "auto",
	}
	for _, option := range options {
		option(&ret)
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask to Brain..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.Focus()

	ret.spinner = spinner.New()
	ret.spinner.Spinner = spinner.Dot
	ret.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	ret.markdown = &markdownRenderer{}

	return ret
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, refresh(true))
}

func refresh(goToBottom bool) tea.Cmd {
	return func() tea.Msg {
		return RefreshMsg{GoToBottom: goToBottom}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.SubmitMessage):
			cmds = append(cmds, m.submit())

		case key.Matches(msg, m.keyMap.NewSession):
			m.backend.Registry.CreateSession()
			m.status = ""
			cmds = append(cmds, refresh(true))

		case key.Matches(msg, m.keyMap.PrevSession):
			m.moveActive(-1)
			cmds = append(cmds, refresh(true))

		case key.Matches(msg, m.keyMap.NextSession):
			m.moveActive(1)
			cmds = append(cmds, refresh(true))

		case key.Matches(msg, m.keyMap.DeleteSession):
			m.backend.Registry.DeleteSession(m.backend.Registry.ActiveID())
			cmds = append(cmds, refresh(true))

		case key.Matches(msg, m.keyMap.SaveToFile):
			cmds = append(cmds, m.backend.Export())

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		default:
			m.textArea, cmd = m.textArea.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.markdown = newMarkdownRenderer(m.mdStyle, m.mainWidth()-4)
		m.recomputeSize()

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case ExchangeFinishedMsg:
		m.busy = false
		m.status = outcomeStatus(msg.Outcome)
		cmds = append(cmds, refresh(true))

	case UploadFinishedMsg:
		if msg.Err != nil {
			m.status = "Upload failed: " + msg.Err.Error()
		} else {
			m.status = msg.Message
		}
		cmds = append(cmds, refresh(true))

	case ExportFinishedMsg:
		if msg.Err != nil {
			m.status = "Export failed: " + msg.Err.Error()
		} else {
			m.status = "Saved chat to " + msg.Filename
		}

	case RefreshMsg:
		m.viewport.SetContent(m.transcriptView(m.mainWidth()))
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	input := strings.TrimSpace(m.textArea.Value())
	if input == "" {
		return nil
	}

	if input == uploadCommand || strings.HasPrefix(input, uploadCommand+" ") {
		paths := strings.Fields(strings.TrimPrefix(input, uploadCommand))
		if len(paths) == 0 {
			m.status = "Usage: /upload <file.pdf> ..."
			return nil
		}
		m.textArea.Reset()
		m.status = fmt.Sprintf("Uploading %d file(s)...", len(paths))
		return m.backend.Upload(m.ctx, paths)
	}

	if m.busy || m.backend.Controller.Busy() {
		m.status = "Still waiting for the previous answer."
		return nil
	}

	m.busy = true
	m.status = ""
	m.textArea.Reset()
	sessionID := m.backend.Registry.ActiveID()

	return tea.Batch(
		m.backend.Submit(m.ctx, sessionID, input),
		m.spinner.Tick,
	)
}

// moveActive switches to the session delta positions away in display order.
func (m *Model) moveActive(delta int) {
	list := m.backend.Projector.SessionList()
	for i, s := range list {
		if !s.Active {
			continue
		}
		next := i + delta
		if next >= 0 && next < len(list) {
			m.backend.Registry.SwitchActive(list[next].ID)
		}
		return
	}
}

func outcomeStatus(o exchange.Outcome) string {
	if !o.Accepted {
		switch o.Reason {
		case exchange.RejectBusy:
			return "Still waiting for the previous answer."
		case exchange.RejectUnknownSession:
			return "That chat no longer exists."
		default:
			return ""
		}
	}
	if o.Dropped {
		return "The chat was deleted before the answer arrived."
	}
	return ""
}

func (m Model) mainWidth() int {
	w := m.width - sidebarWidth - 1
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	inputHeight := lipgloss.Height(m.inputView())
	statusHeight := lipgloss.Height(m.statusView())
	helpHeight := lipgloss.Height(m.help.View(m.keyMap))

	newHeight := m.height - headerHeight - inputHeight - statusHeight - helpHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	m.textArea.SetWidth(m.mainWidth() - m.style.FocusedInput.GetHorizontalFrameSize())
	m.help.Width = m.width

	m.viewport.SetContent(m.transcriptView(m.mainWidth()))
	m.viewport.GotoBottom()
}

func (m Model) headerView() string {
	title := conversation.UntitledTitle
	if s, ok := m.backend.Projector.ActiveSession(); ok {
		title = s.Title
	}
	return m.style.Header.Render(truncateWithTail(title, m.mainWidth()-2))
}

func (m Model) inputView() string {
	if m.busy {
		return m.style.UnfocusedInput.
			Width(m.mainWidth() - m.style.UnfocusedInput.GetHorizontalFrameSize()).
			Render(m.spinner.View() + " Thinking...")
	}
	return m.style.FocusedInput.Render(m.textArea.View())
}

func (m Model) statusView() string {
	return m.style.Status.Render(truncateWithTail(m.status, m.width-2))
}

func (m Model) View() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.inputView(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarView(lipgloss.Height(main)),
		main,
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.statusView(),
		m.help.View(m.keyMap),
	)
}
