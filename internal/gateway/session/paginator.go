package session

import (
	"fmt"

	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/oklog/ulid/v2"
)

const defaultLargeStep = 10

// Paginator walks an ordered, precomputed sequence of pages with relative
// jumps of one and largeStep, clamped at the first and last page. A control
// whose jump would be a no-op renders disabled.
type Paginator struct {
	prefix    string
	pages     []string
	cursor    int
	largeStep int
}

func NewPaginator(pages []string) *Paginator {
	return &Paginator{
		prefix:    ulid.Make().String(),
		pages:     pages,
		largeStep: defaultLargeStep,
	}
}

// WithLargeStep overrides the big-jump size.
func (p *Paginator) WithLargeStep(step int) *Paginator {
	if step > 0 {
		p.largeStep = step
	}
	return p
}

// Page returns the zero-based cursor.
func (p *Paginator) Page() int {
	return p.cursor
}

func (p *Paginator) id(suffix string) string {
	return p.prefix + ":" + suffix
}

func (p *Paginator) Render() transport.Render {
	last := len(p.pages) - 1
	return transport.Render{
		Text: p.pages[p.cursor],
		Rows: []transport.Row{{
			Buttons: []transport.Button{
				{ID: p.id("back"), Label: fmt.Sprintf("«%d", p.largeStep), Disabled: p.cursor == 0},
				{ID: p.id("prev"), Label: "‹", Disabled: p.cursor == 0},
				{ID: p.id("page"), Label: fmt.Sprintf("%d/%d", p.cursor+1, len(p.pages)), Disabled: true},
				{ID: p.id("next"), Label: "›", Disabled: p.cursor == last},
				{ID: p.id("fwd"), Label: fmt.Sprintf("%d»", p.largeStep), Disabled: p.cursor == last},
			},
		}},
	}
}

func (p *Paginator) Handle(componentID, value string) bool {
	target := p.cursor
	switch componentID {
	case p.id("back"):
		target -= p.largeStep
	case p.id("prev"):
		target--
	case p.id("next"):
		target++
	case p.id("fwd"):
		target += p.largeStep
	default:
		return false
	}

	if target < 0 {
		target = 0
	}
	if last := len(p.pages) - 1; target > last {
		target = last
	}

	if target == p.cursor {
		return false
	}
	p.cursor = target
	return true
}
