package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
)

type keyMap struct {
	Quit     key.Binding
	Submit   key.Binding
	Complete key.Binding
	Older    key.Binding
	Newer    key.Binding
	Scroll   key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c")),
	Submit:   key.NewBinding(key.WithKeys("enter")),
	Complete: key.NewBinding(key.WithKeys("tab")),
	Older:    key.NewBinding(key.WithKeys("up")),
	Newer:    key.NewBinding(key.WithKeys("down")),
	Scroll:   key.NewBinding(key.WithKeys("pgup", "pgdown", "ctrl+u", "ctrl+d")),
}

// scrollKeys leaves Up/Down to the input history.
func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
