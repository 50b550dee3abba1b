package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViews() []View {
	return []View{
		{Key: "usage", Label: "Usage", Text: "usage body"},
		{Key: "standing", Label: "Standing", Text: "standing body"},
	}
}

func TestViewSwitchDefaults(t *testing.T) {
	v := NewViewSwitch(testViews())

	r := v.Render()
	assert.Equal(t, "usage body", r.Text)
	assert.Equal(t, "usage", v.Selected())

	require.Len(t, r.Rows, 1)
	sel := r.Rows[0].Select
	require.NotNil(t, sel)
	require.Len(t, sel.Options, 2)
	assert.True(t, sel.Options[0].Default)
	assert.False(t, sel.Options[1].Default)
}

func TestViewSwitchSelect(t *testing.T) {
	v := NewViewSwitch(testViews())
	id := v.Render().Rows[0].Select.ID

	assert.True(t, v.Handle(id, "standing"))
	assert.Equal(t, "standing", v.Selected())

	r := v.Render()
	assert.Equal(t, "standing body", r.Text)
	assert.True(t, r.Rows[0].Select.Options[1].Default, "selected option is re-marked default")
}

func TestViewSwitchNoOps(t *testing.T) {
	v := NewViewSwitch(testViews())
	id := v.Render().Rows[0].Select.ID

	assert.False(t, v.Handle(id, "usage"), "re-selecting the active view is a no-op")
	assert.False(t, v.Handle(id, "bogus"), "unknown value is a no-op")
	assert.False(t, v.Handle("other", "standing"), "foreign component id is a no-op")
}
