// Package brick binds component controllers to elements of a dom.Document
// and drives their lifecycle.
//
// A component kind is declared with a Descriptor (tag, template, options,
// constructor) and frozen into a Class by Registry.Register. The registry
// upgrades elements whose "is" attribute names a registered tag:
//
//	reg := brick.NewRegistry(doc)
//	reg.MustRegister(brick.NewDescriptor("greeting", brick.Text("Hello {{name}}")))
//	err := reg.Initialize(ctx)
//
// Construction applies root classes, installs attribute observation, marks
// the element with brick-initialized="yes", calls OnInitialize, optionally
// clears the root, and optionally starts the first render.
//
// A render runs BeforeRender, CreateViewModel, template materialization,
// sub-component upgrade, and OnRender in that order. Render runs it on the
// calling goroutine; RenderAsync returns a RenderTask. The hooks of one
// instance never run in parallel, whichever goroutine calls them.
//
// Component types embed *Brick and override hooks by declaring them:
//
//	type Greeting struct{ *brick.Brick }
//
//	func (g *Greeting) CreateViewModel(ctx context.Context, args any) (any, error) {
//		return map[string]any{"name": "Ada"}, nil
//	}
package brick
