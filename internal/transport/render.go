package transport

// Render is the platform-neutral payload for one message: text plus rows of
// interactive components. Adapters map it onto inline keyboards / block kit.
type Render struct {
	Text string
	Rows []Row
}

// Row holds either buttons or a single select.
type Row struct {
	Buttons []Button
	Select  *Select
}

type Button struct {
	ID       string
	Label    string
	Disabled bool
}

type SelectOption struct {
	Value   string
	Label   string
	Default bool
}

type Select struct {
	ID          string
	Placeholder string
	Options     []SelectOption
	Disabled    bool
}

// Disabled returns a copy of the render with every component disabled.
func (r Render) Disabled() Render {
	out := Render{Text: r.Text, Rows: make([]Row, len(r.Rows))}
	for i, row := range r.Rows {
		nr := Row{}
		if len(row.Buttons) > 0 {
			nr.Buttons = make([]Button, len(row.Buttons))
			copy(nr.Buttons, row.Buttons)
			for j := range nr.Buttons {
				nr.Buttons[j].Disabled = true
			}
		}
		if row.Select != nil {
			sel := *row.Select
			sel.Options = make([]SelectOption, len(row.Select.Options))
			copy(sel.Options, row.Select.Options)
			sel.Disabled = true
			nr.Select = &sel
		}
		out.Rows[i] = nr
	}
	return out
}

// ComponentIDs returns the ids of every component in the render.
func (r Render) ComponentIDs() []string {
	var ids []string
	for _, row := range r.Rows {
		for _, b := range row.Buttons {
			ids = append(ids, b.ID)
		}
		if row.Select != nil {
			ids = append(ids, row.Select.ID)
		}
	}
	return ids
}
