package brick

import (
	"context"
	"sync"

	"github.com/google/uuid"

	brickerrors "github.com/conneroisu/brick/internal/errors"
	"github.com/conneroisu/brick/pkg/dom"
)

// RenderState is the position of one render call in the pipeline.
type RenderState int

const (
	StateIdle RenderState = iota
	StatePreRender
	StateViewModel
	StateMaterializing
	StateSubComponentUpgrade
	StatePostRender
	StateDone
	StateFailed
)

// String returns the stage name used in logs and errors.
func (s RenderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreRender:
		return "pre-render"
	case StateViewModel:
		return "view-model"
	case StateMaterializing:
		return "materializing"
	case StateSubComponentUpgrade:
		return "sub-component-upgrade"
	case StatePostRender:
		return "post-render"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s RenderState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// RenderTask tracks a single render call. Calls are independent: two tasks
// on one instance may overlap, and the later DOM swap wins.
type RenderTask struct {
	id    string
	brick *Brick

	mu    sync.Mutex
	state RenderState
	err   error
	done  chan struct{}

	// unhandled receives the failure before done closes, for tasks nobody
	// waits on.
	unhandled UnhandledErrorFunc
}

func newRenderTask(b *Brick) *RenderTask {
	return &RenderTask{
		id:    uuid.NewString(),
		brick: b,
		done:  make(chan struct{}),
	}
}

// ID returns the task identifier.
func (t *RenderTask) ID() string { return t.id }

// State returns the current stage.
func (t *RenderTask) State() RenderState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when the task reaches StateDone or StateFailed.
func (t *RenderTask) Done() <-chan struct{} { return t.done }

// Err returns the failure, or nil while running or after success.
func (t *RenderTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task settles or ctx is done. On success it returns
// the component the render was called on.
func (t *RenderTask) Wait(ctx context.Context) (Component, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return t.brick.self, nil
}

func (t *RenderTask) transition(ctx context.Context, s RenderState) {
	t.mu.Lock()
	from := t.state
	t.state = s
	t.mu.Unlock()

	t.brick.logger.Debug(ctx, "render state",
		"task", t.id,
		"from", from.String(),
		"to", s.String())
}

func (t *RenderTask) fail(ctx context.Context, stage RenderState, err error) {
	t.mu.Lock()
	t.err = brickerrors.NewRenderError(t.brick.class.tag, stage.String(), err)
	t.mu.Unlock()
	t.transition(ctx, StateFailed)
}

// run drives the stages in order, stopping at the first failure. ctx is
// checked before every stage.
func (t *RenderTask) run(ctx context.Context, args any) {
	defer close(t.done)
	defer func() {
		if err := t.Err(); err != nil && t.unhandled != nil {
			t.unhandled(ctx, err)
		}
	}()

	b := t.brick
	comp := b.self
	var vm any

	stages := []struct {
		state RenderState
		fn    func() error
	}{
		{StatePreRender, func() error {
			return b.callHook(ctx, func(ctx context.Context) (err error) {
				args, err = comp.BeforeRender(ctx, args)
				return err
			})
		}},
		{StateViewModel, func() error {
			return b.callHook(ctx, func(ctx context.Context) (err error) {
				vm, err = comp.CreateViewModel(ctx, args)
				return err
			})
		}},
		{StateMaterializing, func() error {
			return b.renderTemplate(ctx, vm)
		}},
		{StateSubComponentUpgrade, func() error {
			if !b.class.options.RegisterSubBricksOnRender {
				return nil
			}
			return b.registry.InitializeElements(ctx, b.root)
		}},
		{StatePostRender, func() error {
			return b.callHook(ctx, comp.OnRender)
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			t.fail(ctx, stage.state, err)
			return
		}
		t.transition(ctx, stage.state)
		if err := safeCall(stage.state.String(), stage.fn); err != nil {
			t.fail(ctx, stage.state, err)
			return
		}
	}
	t.transition(ctx, StateDone)
}

// Render runs the pipeline on the calling goroutine and returns the
// instance it was called on.
func (b *Brick) Render(ctx context.Context, args any) (Component, error) {
	t := newRenderTask(b)
	t.run(ctx, args)
	return t.Wait(context.WithoutCancel(ctx))
}

// RenderAsync starts the pipeline on a new goroutine.
func (b *Brick) RenderAsync(ctx context.Context, args any) *RenderTask {
	t := newRenderTask(b)
	go t.run(detachHooks(ctx), args)
	return t
}

// renderTemplate materializes the class template into the root. The markup
// is parsed inert, then a deep clone replaces the root's children in one
// step.
func (b *Brick) renderTemplate(ctx context.Context, vm any) error {
	markup := ""
	if b.class.HasTemplate() {
		var err error
		markup, err = b.class.template.Markup(ctx, b.registry.engine, vm)
		if err != nil {
			return err
		}
	}

	doc := b.root.Document()
	fragment, err := doc.ParseFragment(markup)
	if err != nil {
		return err
	}

	content := make([]*dom.Element, 0, len(fragment))
	for _, n := range fragment {
		content = append(content, n.CloneNode(true))
	}
	b.root.ReplaceChildren(content...)
	return nil
}
