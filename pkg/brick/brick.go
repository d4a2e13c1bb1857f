package brick

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/pkg/dom"
)

// frameInterval approximates one display refresh.
const frameInterval = 16 * time.Millisecond

// Component is implemented by every controller. Embedding *Brick provides
// the default hooks; a type overrides a hook by declaring the method itself.
//
// Hooks of one instance never run in parallel: attribute changes are
// delivered on the document's goroutine and wait for a running render hook
// to return, and the other way round. A hook may call Render on its own
// instance with the ctx it was given. Waiting inside a hook on a
// RenderAsync task of the same instance deadlocks.
type Component interface {
	// Base returns the embedded *Brick.
	Base() *Brick

	// OnInitialize runs once during construction, before the first render.
	OnInitialize(ctx context.Context)
	// OnAttributeChange reports an observed attribute change. value is read
	// when the change is delivered; a removed attribute reports "".
	OnAttributeChange(ctx context.Context, name, value, oldValue string)
	// BeforeRender returns the arguments handed to CreateViewModel.
	BeforeRender(ctx context.Context, args any) (any, error)
	// CreateViewModel returns the data the template renders.
	CreateViewModel(ctx context.Context, args any) (any, error)
	// OnRender runs after the new content and sub-components are in place.
	OnRender(ctx context.Context) error
}

// Brick is the base controller bound to one element for its whole life.
type Brick struct {
	id       string
	class    *Class
	registry *Registry
	self     Component

	root        *dom.Element
	eventSource *dom.Element
	dataset     dom.Dataset

	observer *dom.MutationObserver
	logger   logging.Logger

	// hookMu serializes the hooks of this instance.
	hookMu sync.Mutex

	// initial is the render prepared by construction, if any. The registry
	// starts it.
	initial *RenderTask
}

type hookScopeKey struct{}

// hookScope lists the instances whose hook lock the calling goroutine holds.
type hookScope struct {
	brick  *Brick
	parent *hookScope
}

func (s *hookScope) holds(b *Brick) bool {
	for ; s != nil; s = s.parent {
		if s.brick == b {
			return true
		}
	}
	return false
}

// callHook runs fn holding the hook lock, unless ctx shows the caller is
// already inside a hook of b.
func (b *Brick) callHook(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, _ := ctx.Value(hookScopeKey{}).(*hookScope)
	if !scope.holds(b) {
		b.hookMu.Lock()
		defer b.hookMu.Unlock()
		ctx = context.WithValue(ctx, hookScopeKey{}, &hookScope{brick: b, parent: scope})
	}
	return fn(ctx)
}

// detachHooks drops the hook scope from ctx for work handed to another
// goroutine.
func detachHooks(ctx context.Context) context.Context {
	return context.WithValue(ctx, hookScopeKey{}, (*hookScope)(nil))
}

// ID returns the instance identifier used in logs and render tasks.
func (b *Brick) ID() string { return b.id }

// Class returns the class the instance was built from.
func (b *Brick) Class() *Class { return b.class }

// Tag returns the class tag.
func (b *Brick) Tag() string { return b.class.tag }

// Registry returns the owning registry.
func (b *Brick) Registry() *Registry { return b.registry }

// Root returns the controlled element.
func (b *Brick) Root() *dom.Element { return b.root }

// Dataset is a live view of the root's data-* attributes.
func (b *Brick) Dataset() dom.Dataset { return b.dataset }

// Logger returns the instance logger.
func (b *Brick) Logger() logging.Logger { return b.logger }

// Self returns the component wrapping this base.
func (b *Brick) Self() Component { return b.self }

// EventSource returns the element Fire dispatches from.
func (b *Brick) EventSource() *dom.Element { return b.eventSource }

// SetEventSource makes Fire dispatch from el. Nil restores the root.
func (b *Brick) SetEventSource(el *dom.Element) {
	if el == nil {
		el = b.root
	}
	b.eventSource = el
}

// Base implements Component.
func (b *Brick) Base() *Brick { return b }

// OnInitialize does nothing by default.
func (b *Brick) OnInitialize(ctx context.Context) {}

// OnAttributeChange logs a warning: components that observe attributes are
// expected to override it.
func (b *Brick) OnAttributeChange(ctx context.Context, name, value, oldValue string) {
	b.logger.Warn(ctx, nil, "OnAttributeChange not implemented",
		"attribute", name,
		"old", oldValue,
		"new", value)
}

// BeforeRender passes args through unchanged.
func (b *Brick) BeforeRender(ctx context.Context, args any) (any, error) {
	return args, nil
}

// CreateViewModel returns an empty view model.
func (b *Brick) CreateViewModel(ctx context.Context, args any) (any, error) {
	return map[string]any{}, nil
}

// OnRender does nothing by default.
func (b *Brick) OnRender(ctx context.Context) error { return nil }

// ClearContent removes every child of the root.
func (b *Brick) ClearContent() {
	b.root.Clear()
}

// Wait sleeps for d or until ctx is done, and returns d.
func (b *Brick) Wait(ctx context.Context, d time.Duration) (time.Duration, error) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return d, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// NextFrame waits for the next frame tick.
func (b *Brick) NextFrame(ctx context.Context) error {
	_, err := b.Wait(ctx, frameInterval)
	return err
}

// Find queries the root's subtree. An empty selector selects the direct
// children. bind, when non-nil, is called once per match.
func (b *Brick) Find(selector string, bind BindFunc) *Finder {
	return newFinder(b.self, b.root, selector, bind)
}

// FindRole selects descendants carrying the role attribute "(role)".
func (b *Brick) FindRole(role string, bind BindFunc) *Finder {
	return newFinder(b.self, b.root, `[\(`+role+`\)]`, bind)
}

// construct wires a new instance to el. The caller has already bound el in
// the registry's side table.
func (b *Brick) construct(ctx context.Context, renderOnConstruct bool) error {
	opts := b.class.options

	// Root classes are additive.
	b.root.ClassList().Add(opts.RootCSSClasses...)

	if opts.ObserveAttributes {
		b.observe(detachHooks(context.WithoutCancel(ctx)), opts.ObservedAttributes)
	}

	b.root.SetAttribute(MarkerAttribute, MarkerValue)

	if err := safeCall("OnInitialize", func() error {
		return b.callHook(ctx, func(ctx context.Context) error {
			b.self.OnInitialize(ctx)
			return nil
		})
	}); err != nil {
		return err
	}

	if opts.CleanOnConstruct {
		b.ClearContent()
	}

	if opts.RenderOnConstruct && renderOnConstruct && b.class.HasTemplate() {
		b.initial = newRenderTask(b)
		b.initial.unhandled = b.registry.unhandled
	}
	return nil
}

// runInitial runs the render prepared by construct on the calling
// goroutine. Cancelling ctx does not stop it.
func (b *Brick) runInitial(ctx context.Context) {
	b.initial.run(detachHooks(context.WithoutCancel(ctx)), nil)
}

func (b *Brick) observe(ctx context.Context, filter []string) {
	b.observer = dom.NewMutationObserver(func(records []dom.MutationRecord, _ *dom.MutationObserver) {
		for _, rec := range records {
			if rec.Type != dom.MutationAttributes {
				continue
			}
			value := b.root.GetAttribute(rec.AttributeName)
			err := safeCall("OnAttributeChange", func() error {
				return b.callHook(ctx, func(ctx context.Context) error {
					b.self.OnAttributeChange(ctx, rec.AttributeName, value, rec.OldValue)
					return nil
				})
			})
			if err != nil {
				b.registry.unhandled(ctx, err)
			}
		}
	})
	b.observer.Observe(b.root, dom.ObserveOptions{
		Attributes:        true,
		AttributeOldValue: true,
		AttributeFilter:   filter,
	})
}

// release stops attribute observation.
func (b *Brick) release() {
	if b.observer != nil {
		b.observer.Disconnect()
	}
}

func newBrick(r *Registry, class *Class, el *dom.Element) *Brick {
	id := uuid.NewString()
	b := &Brick{
		id:          id,
		class:       class,
		registry:    r,
		root:        el,
		eventSource: el,
		dataset:     el.Dataset(),
		logger:      r.logger.WithComponent("brick").With("tag", class.tag, "id", id),
	}
	b.self = class.newComponent(b)
	return b
}
