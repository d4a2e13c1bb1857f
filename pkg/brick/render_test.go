package brick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brickerrors "github.com/conneroisu/brick/internal/errors"
)

type greeting struct{ *Brick }

func (g *greeting) CreateViewModel(ctx context.Context, args any) (any, error) {
	return map[string]any{"name": "Ada"}, nil
}

func TestRender_Greeting(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(&Descriptor{
		Tag:      "greeting",
		Template: Text("Hello {{name}}"),
		New:      func(b *Brick) Component { return &greeting{Brick: b} },
	})

	comp, err := class.Create(context.Background(), "div", true)
	require.NoError(t, err)

	root := comp.Base().Root()
	assert.Equal(t, "Hello Ada", root.TextContent())
	assert.Equal(t, "greeting", root.GetAttribute("is"))
	assert.Equal(t, `[is="greeting"]`, class.Selector())
}

func TestRender_Identity(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(&Descriptor{Tag: "greeting", Template: Text("hi"), New: func(b *Brick) Component { return &greeting{Brick: b} }})

	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)

	got, err := comp.Base().Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, comp, got)
}

func TestRender_ArgsFlowIntoTemplate(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(&Descriptor{Tag: "echo", Template: Text("{{x}}"), New: newEcho})

	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)

	_, err = comp.Base().Render(context.Background(), map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "1", comp.Base().Root().TextContent())
}

func TestRender_BackToBackLastWins(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(&Descriptor{Tag: "echo", Template: Text("{{x}}"), New: newEcho})

	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)
	b := comp.Base()

	_, err = b.Render(context.Background(), map[string]any{"x": "first"})
	require.NoError(t, err)
	_, err = b.Render(context.Background(), map[string]any{"x": ""})
	require.NoError(t, err)

	assert.False(t, b.Root().HasChildNodes())
}

func TestRender_ScriptsStayInert(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(NewDescriptor("s", Text(`<script>alert(1)</script><p>ok</p>`)))

	comp, err := class.Create(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, `<script>alert(1)</script><p>ok</p>`, comp.Base().Root().InnerHTML())
}

func TestRender_FuncAndTemplTemplates(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)

	fn := reg.MustRegister(&Descriptor{
		Tag: "fn",
		Template: Func(func(vm any) (string, error) {
			return fmt.Sprintf("<i>%v</i>", vm.(map[string]any)["x"]), nil
		}),
		New: newEcho,
	})
	tc := reg.MustRegister(&Descriptor{
		Tag: "tc",
		Template: Templ(func(vm any) templ.Component {
			return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				_, err := io.WriteString(w, "<u>"+vm.(map[string]any)["x"].(string)+"</u>")
				return err
			})
		}),
		New: newEcho,
	})

	for _, class := range []*Class{fn, tc} {
		comp, err := class.Create(context.Background(), "", false)
		require.NoError(t, err)
		_, err = comp.Base().Render(context.Background(), map[string]any{"x": "v"})
		require.NoError(t, err)
		assert.Equal(t, "v", comp.Base().Root().TextContent(), class.Tag())
	}
}

type failing struct {
	*Brick
	stage RenderState
}

func (f *failing) BeforeRender(ctx context.Context, args any) (any, error) {
	if f.stage == StatePreRender {
		return nil, errors.New("before")
	}
	return args, nil
}

func (f *failing) CreateViewModel(ctx context.Context, args any) (any, error) {
	if f.stage == StateViewModel {
		panic("view model exploded")
	}
	return map[string]any{}, nil
}

func (f *failing) OnRender(ctx context.Context) error {
	if f.stage == StatePostRender {
		return errors.New("after")
	}
	return nil
}

func TestRender_FailuresCarryStage(t *testing.T) {
	for _, stage := range []RenderState{StatePreRender, StateViewModel, StatePostRender} {
		t.Run(stage.String(), func(t *testing.T) {
			reg, _ := newTestRegistry(t, `<body></body>`)
			class := reg.MustRegister(&Descriptor{
				Tag:      "failing",
				Template: Text("x"),
				New:      func(b *Brick) Component { return &failing{Brick: b, stage: stage} },
			})
			comp, err := class.Create(context.Background(), "", false)
			require.NoError(t, err)

			_, err = comp.Base().Render(context.Background(), nil)
			require.Error(t, err)

			var be *brickerrors.BrickError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, brickerrors.ErrorTypeRender, be.Type)
			assert.Equal(t, stage.String(), be.Stage)
			assert.Equal(t, "failing", be.Tag)
		})
	}
}

func TestRender_TemplateErrorFailsMaterializing(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(NewDescriptor("bad", Text("{{unclosed")))
	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)

	_, err = comp.Base().Render(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, brickerrors.IsRenderError(err))
	assert.True(t, brickerrors.IsTemplateError(err))
	assert.Contains(t, err.Error(), StateMaterializing.String())
}

func TestRender_CanceledContextStopsBeforeNextStage(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(NewDescriptor("c", Text("x")))
	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = comp.Base().Render(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, comp.Base().Root().HasChildNodes())
}

func TestRenderAsync_States(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	class := reg.MustRegister(NewDescriptor("a", Text("<b>done</b>")))
	comp, err := class.Create(context.Background(), "", false)
	require.NoError(t, err)

	task := comp.Base().RenderAsync(context.Background(), nil)
	assert.NotEmpty(t, task.ID())

	got, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, comp, got)
	assert.Equal(t, StateDone, task.State())
	assert.True(t, task.State().Terminal())
	assert.NoError(t, task.Err())
	assert.Equal(t, "<b>done</b>", comp.Base().Root().InnerHTML())
}

type parentBrick struct{ *Brick }

func (p *parentBrick) CreateViewModel(ctx context.Context, args any) (any, error) {
	return map[string]any{"n": 2}, nil
}

func TestRender_SubComponentUpgrade(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	reg.MustRegister(NewDescriptor("child", Text("<em>child</em>")))
	parent := reg.MustRegister(NewDescriptor("parent",
		Text(`<div is="child"></div><span is="child"></span><p>{{n}}</p>`),
		RegisterSubBricksOnRender(true),
	).Apply(func(d *Descriptor) {
		d.New = func(b *Brick) Component { return &parentBrick{Brick: b} }
	}))

	comp, err := parent.Create(context.Background(), "", true)
	require.NoError(t, err)

	children := comp.Base().Find(`[is="child"]`, nil)
	require.Equal(t, 2, children.Len())
	for _, el := range children.Elements() {
		_, ok := reg.Controller(el)
		assert.True(t, ok)
		assert.Equal(t, "<em>child</em>", el.InnerHTML(), "child renders finish before the parent settles")
	}
	assert.Len(t, children.Controllers(), 2)
}

func TestRender_WithoutSubComponentUpgrade(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body></body>`)
	reg.MustRegister(NewDescriptor("child", Text("<em>child</em>")))
	parent := reg.MustRegister(NewDescriptor("parent", Text(`<div is="child"></div>`)))

	comp, err := parent.Create(context.Background(), "", true)
	require.NoError(t, err)

	el := query(t, comp.Base().Root(), `[is="child"]`)
	_, ok := reg.Controller(el)
	assert.False(t, ok)
	assert.False(t, el.HasAttribute(MarkerAttribute))
}

func TestRender_ConstructionFailureIsUnhandled(t *testing.T) {
	reg, _ := newTestRegistry(t, `<body><div is="bad"></div></body>`)
	reg.MustRegister(NewDescriptor("bad", Text("{{oops")))

	require.NoError(t, reg.Initialize(context.Background()), "construction-time render failures do not reach the scan caller")

	// The failure is recorded before the scan returns.
	require.True(t, reg.Errors().HasErrors())
	failures := reg.Errors().GetErrorsByComponent("bad")
	require.Len(t, failures, 1)
	assert.Equal(t, StateMaterializing.String(), failures[0].Stage)
}

func TestRender_CustomUnhandledHandler(t *testing.T) {
	got := make(chan error, 1)
	reg, _ := newTestRegistry(t, `<body><div is="bad"></div></body>`,
		WithUnhandledErrorHandler(func(ctx context.Context, err error) { got <- err }))
	reg.MustRegister(NewDescriptor("bad", Text("{{oops")))

	require.NoError(t, reg.Initialize(context.Background()))

	select {
	case err := <-got:
		assert.True(t, strings.Contains(err.Error(), "component:bad"))
	default:
		t.Fatal("handler not called before Initialize returned")
	}
	assert.False(t, reg.Errors().HasErrors())
}

func TestRenderState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sub-component-upgrade", StateSubComponentUpgrade.String())
	assert.Equal(t, "unknown", RenderState(99).String())
	assert.False(t, StatePostRender.Terminal())
	assert.True(t, StateFailed.Terminal())
}
