package session

import (
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/oklog/ulid/v2"
)

// View is one named, precomputed render payload.
type View struct {
	Key   string
	Label string
	Text  string
}

// ViewSwitch drives a single-select control whose chosen value swaps between
// precomputed views. The selected option is marked default on every
// re-render.
type ViewSwitch struct {
	prefix   string
	views    []View
	selected int
}

func NewViewSwitch(views []View) *ViewSwitch {
	return &ViewSwitch{
		prefix: ulid.Make().String(),
		views:  views,
	}
}

// Selected returns the key of the active view.
func (v *ViewSwitch) Selected() string {
	return v.views[v.selected].Key
}

func (v *ViewSwitch) selectID() string {
	return v.prefix + ":view"
}

func (v *ViewSwitch) Render() transport.Render {
	options := make([]transport.SelectOption, len(v.views))
	for i, view := range v.views {
		options[i] = transport.SelectOption{
			Value:   view.Key,
			Label:   view.Label,
			Default: i == v.selected,
		}
	}

	return transport.Render{
		Text: v.views[v.selected].Text,
		Rows: []transport.Row{{
			Select: &transport.Select{
				ID:          v.selectID(),
				Placeholder: "View",
				Options:     options,
			},
		}},
	}
}

func (v *ViewSwitch) Handle(componentID, value string) bool {
	if componentID != v.selectID() {
		return false
	}
	for i, view := range v.views {
		if view.Key == value {
			if i == v.selected {
				return false
			}
			v.selected = i
			return true
		}
	}
	return false
}
