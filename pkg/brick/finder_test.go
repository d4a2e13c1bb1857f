package brick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brick/pkg/dom"
)

func newListBrick(t *testing.T) (*Registry, Component) {
	t.Helper()

	reg, doc := newTestRegistry(t, `<body>
		<ul is="list">
			<li (title)>head</li>
			<li is="item">one</li>
			<li is="item">two</li>
			<li><span (title)>nested</span></li>
		</ul>
	</body>`)
	reg.MustRegister(NewDescriptor("item", nil, CleanOnConstruct(false)))
	reg.MustRegister(NewDescriptor("list", nil, CleanOnConstruct(false)))
	require.NoError(t, reg.Initialize(context.Background()))

	comp, ok := reg.Controller(query(t, doc.Body(), `[is="list"]`))
	require.True(t, ok)
	return reg, comp
}

func TestFind_EmptySelectorReturnsChildren(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().Find("", nil)
	require.NoError(t, f.Err())
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, "head", f.First().TextContent())
}

func TestFind_Selector(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().Find(`[is="item"]`, nil)
	require.NoError(t, f.Err())
	assert.Equal(t, `[is="item"]`, f.Selector())

	var texts []string
	f.Each(func(i int, el *dom.Element) { texts = append(texts, el.TextContent()) })
	assert.Equal(t, []string{"one", "two"}, texts)
}

func TestFind_NoMatch(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().Find("table", nil)
	assert.Zero(t, f.Len())
	assert.Nil(t, f.First())
	assert.Empty(t, f.Controllers())
}

func TestFind_InvalidSelector(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().Find("li[", nil)
	assert.Error(t, f.Err())
	assert.Zero(t, f.Len())
}

func TestFindRole(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().FindRole("title", nil)
	require.NoError(t, f.Err())
	require.Equal(t, 2, f.Len())
	assert.Equal(t, "head", f.Elements()[0].TextContent())
	assert.Equal(t, "nested", f.Elements()[1].TextContent())
}

func TestFind_BindReceivesController(t *testing.T) {
	reg, comp := newListBrick(t)

	type bound struct {
		text string
		ctrl Component
	}
	var got []bound
	comp.Base().Find("li", func(el *dom.Element, ctrl Component, owner Component) {
		assert.Same(t, comp, owner)
		got = append(got, bound{el.TextContent(), ctrl})
	})

	require.Len(t, got, 4)
	assert.Nil(t, got[0].ctrl)
	assert.NotNil(t, got[1].ctrl)
	assert.NotNil(t, got[2].ctrl)
	assert.Nil(t, got[3].ctrl)

	ctrl, _ := reg.Controller(comp.Base().Find(`[is="item"]`, nil).First())
	assert.Same(t, ctrl, got[1].ctrl)
}

func TestFinder_ControllersSkipsPlainElements(t *testing.T) {
	_, comp := newListBrick(t)

	ctrls := comp.Base().Find("li", nil).Controllers()
	require.Len(t, ctrls, 2)
	for _, c := range ctrls {
		assert.Equal(t, "item", c.Base().Tag())
	}
}

func TestFinder_Listen(t *testing.T) {
	_, comp := newListBrick(t)

	f := comp.Base().Find(`[is="item"]`, nil)
	count := 0
	remove := f.Listen("tap", func(*dom.Event) { count++ })

	for _, el := range f.Elements() {
		el.DispatchEvent(dom.NewEvent("tap", nil, dom.EventInit{}))
	}
	assert.Equal(t, 2, count)

	remove()
	f.First().DispatchEvent(dom.NewEvent("tap", nil, dom.EventInit{}))
	assert.Equal(t, 2, count)
}
