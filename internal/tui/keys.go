package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Submit   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Accept   key.Binding
	Dismiss  key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Recenter key.Binding
	SaveView key.Binding
	Yes      key.Binding
	No       key.Binding
	New      key.Binding
	Refresh  key.Binding
	Leave    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Submit:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "confirm")),
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		Accept:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Dismiss:  key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter/esc", "dismiss")),
		Up:       key.NewBinding(key.WithKeys("up", "k")),
		Down:     key.NewBinding(key.WithKeys("down", "j")),
		Left:     key.NewBinding(key.WithKeys("left", "h")),
		Right:    key.NewBinding(key.WithKeys("right", "l")),
		ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "zoom")),
		ZoomOut:  key.NewBinding(key.WithKeys("-")),
		Recenter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "recenter")),
		SaveView: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save map view")),
		Yes:      key.NewBinding(key.WithKeys("y", "left", "h"), key.WithHelp("y", "yes")),
		No:       key.NewBinding(key.WithKeys("n", "right", "l"), key.WithHelp("n", "no")),
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new registration")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Leave:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

// helpLine renders "key desc" pairs for the given bindings.
func helpLine(bindings ...key.Binding) string {
	out := ""
	for i, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if i > 0 && out != "" {
			out += "  "
		}
		out += keyStyle.Render(h.Key) + " " + hintStyle.Render(h.Desc)
	}
	return out
}
