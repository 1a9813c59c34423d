package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Demo   key.Binding
	Pause  key.Binding
	Stop   key.Binding
	Phase  key.Binding
	Reset  key.Binding
	Switch key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Demo: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "start demo"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Phase: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6"),
			key.WithHelp("0-6", "set phase"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset scene"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "map/script"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Demo, k.Pause, k.Stop, k.Switch, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Demo, k.Pause, k.Stop},
		{k.Phase, k.Reset, k.Switch},
		{k.Help, k.Quit},
	}
}
