package session

import (
	"testing"

	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func buttonByIndex(t *testing.T, r transport.Render, i int) transport.Button {
	t.Helper()
	require.Len(t, r.Rows, 1)
	require.Len(t, r.Rows[0].Buttons, 5)
	return r.Rows[0].Buttons[i]
}

func TestPaginatorFirstPageDisablesBackward(t *testing.T) {
	p := NewPaginator(pages(20))

	r := p.Render()
	assert.Equal(t, "a", r.Text)
	assert.True(t, buttonByIndex(t, r, 0).Disabled, "large back disabled on first page")
	assert.True(t, buttonByIndex(t, r, 1).Disabled, "prev disabled on first page")
	assert.False(t, buttonByIndex(t, r, 3).Disabled, "next enabled")
	assert.False(t, buttonByIndex(t, r, 4).Disabled, "large forward enabled")
}

func TestPaginatorSteps(t *testing.T) {
	p := NewPaginator(pages(20))

	ids := p.Render().ComponentIDs()
	next, fwd, prev := ids[3], ids[4], ids[1]

	assert.True(t, p.Handle(next, ""))
	assert.Equal(t, 1, p.Page())

	assert.True(t, p.Handle(fwd, ""))
	assert.Equal(t, 11, p.Page())

	assert.True(t, p.Handle(prev, ""))
	assert.Equal(t, 10, p.Page())
}

func TestPaginatorClampsAtEdges(t *testing.T) {
	p := NewPaginator(pages(5))
	ids := p.Render().ComponentIDs()
	back, fwd := ids[0], ids[4]

	// Large forward overshoots; clamp to the last page.
	assert.True(t, p.Handle(fwd, ""))
	assert.Equal(t, 4, p.Page())

	// Already at the end; a further jump is a no-op, no re-render.
	assert.False(t, p.Handle(fwd, ""))

	assert.True(t, p.Handle(back, ""))
	assert.Equal(t, 0, p.Page())
	assert.False(t, p.Handle(back, ""))
}

func TestPaginatorLastPageDisablesForward(t *testing.T) {
	p := NewPaginator(pages(3))
	ids := p.Render().ComponentIDs()

	p.Handle(ids[4], "")
	require.Equal(t, 2, p.Page())

	r := p.Render()
	assert.True(t, buttonByIndex(t, r, 3).Disabled)
	assert.True(t, buttonByIndex(t, r, 4).Disabled)
	assert.False(t, buttonByIndex(t, r, 1).Disabled)
}

func TestPaginatorIndicatorAlwaysDisabled(t *testing.T) {
	p := NewPaginator(pages(3))

	r := p.Render()
	indicator := buttonByIndex(t, r, 2)
	assert.True(t, indicator.Disabled)
	assert.Equal(t, "1/3", indicator.Label)

	assert.False(t, p.Handle(indicator.ID, ""), "pressing the indicator is a no-op")
}

func TestPaginatorUnknownComponent(t *testing.T) {
	p := NewPaginator(pages(3))
	assert.False(t, p.Handle("other:next", ""))
	assert.Equal(t, 0, p.Page())
}

func TestPaginatorWithLargeStep(t *testing.T) {
	p := NewPaginator(pages(20)).WithLargeStep(5)
	ids := p.Render().ComponentIDs()

	assert.True(t, p.Handle(ids[4], ""))
	assert.Equal(t, 5, p.Page())
}
