package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage key.Binding

	NewSession    key.Binding
	PrevSession   key.Binding
	NextSession   key.Binding
	DeleteSession key.Binding

	ScrollUp   key.Binding
	ScrollDown key.Binding

	SaveToFile key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "send")),
	NewSession:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
	PrevSession:   key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "previous chat")),
	NextSession:   key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "next chat")),
	DeleteSession: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "delete chat")),
	ScrollUp:      key.NewBinding(key.WithKeys("pgup", "shift+pgup"), key.WithHelp("pgup", "scroll up")),
	ScrollDown:    key.NewBinding(key.WithKeys("pgdown", "shift+pgdown"), key.WithHelp("pgdn", "scroll down")),
	SaveToFile:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "export chat")),
	Help:          key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "more keys")),
	Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.NewSession, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.ScrollUp, k.ScrollDown},
		{k.NewSession, k.PrevSession, k.NextSession, k.DeleteSession},
		{k.SaveToFile, k.Help, k.Quit},
	}
}
