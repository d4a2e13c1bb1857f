package brick

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	brickerrors "github.com/conneroisu/brick/internal/errors"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/template"
	"github.com/conneroisu/brick/pkg/dom"
)

// EventType represents the type of registry event
type EventType int

const (
	EventRegistered EventType = iota
	EventUnregistered
	EventUpgraded
	EventReleased
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventUnregistered:
		return "unregistered"
	case EventUpgraded:
		return "upgraded"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a change in the registry
type Event struct {
	Type      EventType
	Tag       string
	Element   *dom.Element
	Timestamp time.Time
}

// UnhandledErrorFunc receives failures nobody waits on: renders started by
// construction and panicking attribute hooks.
type UnhandledErrorFunc func(ctx context.Context, err error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry and instance logger.
func WithLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithTemplateEngine replaces the string template engine.
func WithTemplateEngine(e TemplateEngine) RegistryOption {
	return func(r *Registry) { r.engine = e }
}

// WithMaxConcurrency bounds how many initial renders one subtree scan runs
// at once. Upgrades wait for a free slot.
func WithMaxConcurrency(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithUnhandledErrorHandler replaces the default handler, which logs at
// ERROR and records the failure in Errors().
func WithUnhandledErrorHandler(fn UnhandledErrorFunc) RegistryOption {
	return func(r *Registry) { r.onUnhandled = fn }
}

// Registry maps tags to classes and upgrades elements into components. It
// owns the element to controller side table.
type Registry struct {
	doc    *dom.Document
	logger logging.Logger
	engine TemplateEngine

	mutex    sync.RWMutex
	classes  map[string]*Class
	order    []string
	watchers []chan Event

	cmu         sync.Mutex
	controllers map[*dom.Element]*Brick

	errors         *brickerrors.ErrorCollector
	onUnhandled    UnhandledErrorFunc
	maxConcurrency int
	stopDetach     func()
	closeOnce      sync.Once
}

// NewRegistry creates a registry for doc.
func NewRegistry(doc *dom.Document, opts ...RegistryOption) *Registry {
	r := &Registry{
		doc:            doc,
		classes:        make(map[string]*Class),
		watchers:       make([]chan Event, 0),
		controllers:    make(map[*dom.Element]*Brick),
		errors:         brickerrors.NewErrorCollector(),
		maxConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewLogger(logging.DefaultConfig())
	}
	r.logger = r.logger.WithComponent("registry")
	if r.engine == nil {
		r.engine = template.NewEngine()
	}
	if r.onUnhandled == nil {
		r.onUnhandled = brickerrors.NewErrorHandler(r.logger, r.errors).Handle
	}

	r.stopDetach = doc.OnDetach(func(el *dom.Element) {
		r.Release(el)
	})
	return r
}

// Document returns the document the registry upgrades elements in.
func (r *Registry) Document() *dom.Document { return r.doc }

// Errors returns the collector fed by the default unhandled error handler.
func (r *Registry) Errors() *brickerrors.ErrorCollector { return r.errors }

// Register freezes d into a class and makes its tag upgradable.
func (r *Registry) Register(d *Descriptor) (*Class, error) {
	tag := strings.TrimSpace(d.Tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}

	class := &Class{
		tag:      tag,
		template: d.Template,
		options:  d.resolve(),
		newFn:    d.New,
		parent:   d.Extends,
		registry: r,
	}
	if class.template == nil && d.Extends != nil {
		class.template = d.Extends.template
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.classes[tag]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
	}
	r.classes[tag] = class
	r.order = append(r.order, tag)

	r.notify(Event{Type: EventRegistered, Tag: tag})
	return class, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d *Descriptor) *Class {
	class, err := r.Register(d)
	if err != nil {
		panic(err)
	}
	return class
}

// Unregister removes a tag. Existing instances keep working.
func (r *Registry) Unregister(tag string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.classes[tag]; !exists {
		return fmt.Errorf("%w: %q", ErrNotRegistered, tag)
	}
	delete(r.classes, tag)
	for i, t := range r.order {
		if t == tag {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.notify(Event{Type: EventUnregistered, Tag: tag})
	return nil
}

// Class retrieves a class by tag.
func (r *Registry) Class(tag string) (*Class, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	class, exists := r.classes[tag]
	return class, exists
}

// Classes returns all classes in registration order.
func (r *Registry) Classes() []*Class {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Class, 0, len(r.order))
	for _, tag := range r.order {
		result = append(result, r.classes[tag])
	}
	return result
}

// Count returns the number of registered classes.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.classes)
}

// Initialize upgrades every tagged element in the document.
func (r *Registry) Initialize(ctx context.Context) error {
	return r.InitializeElements(ctx, r.doc.DocumentElement())
}

// InitializeElements upgrades the tagged, not yet initialized descendants of
// root in document order. The initial renders those upgrades prepare run on
// a pool of at most WithMaxConcurrency goroutines, and InitializeElements
// returns once they settle or ctx is done. Failures of those renders go to
// the unhandled error handler, not to the caller.
func (r *Registry) InitializeElements(ctx context.Context, root *dom.Element) error {
	candidates, err := root.QuerySelectorAll("[" + KindAttribute + "]")
	if err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(r.maxConcurrency)
	var errs []error
	for _, el := range candidates {
		if ctx.Err() != nil {
			break
		}
		// Earlier upgrades may have cleaned this element out of the tree.
		if !root.Contains(el) || el.HasAttribute(MarkerAttribute) {
			continue
		}
		class, ok := r.Class(el.GetAttribute(KindAttribute))
		if !ok {
			continue
		}

		comp, err := r.construct(ctx, class, el, true)
		if errors.Is(err, ErrAlreadyInitialized) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if b := comp.Base(); b.initial != nil {
			p.Go(func() { b.runInitial(ctx) })
		}
	}

	settled := make(chan struct{})
	go func() {
		p.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-ctx.Done():
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Upgrade constructs the component named by el's kind attribute. Its
// initial render, if any, starts on a new goroutine.
func (r *Registry) Upgrade(ctx context.Context, el *dom.Element) (Component, error) {
	tag := el.GetAttribute(KindAttribute)
	class, ok := r.Class(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	comp, err := r.construct(ctx, class, el, true)
	if err != nil {
		return nil, err
	}
	if b := comp.Base(); b.initial != nil {
		go b.runInitial(ctx)
	}
	return comp, nil
}

// Controller returns the component controlling el.
func (r *Registry) Controller(el *dom.Element) (Component, bool) {
	r.cmu.Lock()
	defer r.cmu.Unlock()

	b, ok := r.controllers[el]
	if !ok {
		return nil, false
	}
	return b.self, true
}

// Release drops el's controller and stops its attribute observation. It
// reports whether el had one. The marker attribute stays.
func (r *Registry) Release(el *dom.Element) bool {
	r.cmu.Lock()
	b, ok := r.controllers[el]
	delete(r.controllers, el)
	r.cmu.Unlock()

	if !ok {
		return false
	}
	b.release()

	r.mutex.RLock()
	r.notify(Event{Type: EventReleased, Tag: b.class.tag, Element: el})
	r.mutex.RUnlock()
	return true
}

// Live returns the number of elements with a controller.
func (r *Registry) Live() int {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	return len(r.controllers)
}

// construct binds a new instance to el and runs the construction steps.
func (r *Registry) construct(ctx context.Context, class *Class, el *dom.Element, renderOnConstruct bool) (Component, error) {
	b := newBrick(r, class, el)

	r.cmu.Lock()
	if _, exists := r.controllers[el]; exists {
		r.cmu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	r.controllers[el] = b
	r.cmu.Unlock()

	if err := b.construct(ctx, renderOnConstruct); err != nil {
		r.Release(el)
		return nil, brickerrors.NewRegistryError(brickerrors.ErrCodeHookPanic, "constructing component", err).WithTag(class.tag)
	}

	r.mutex.RLock()
	r.notify(Event{Type: EventUpgraded, Tag: class.tag, Element: el})
	r.mutex.RUnlock()
	return b.self, nil
}

func (r *Registry) unhandled(ctx context.Context, err error) {
	r.onUnhandled(ctx, err)
}

// Watch returns a channel that receives registry events
func (r *Registry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, w := range r.watchers {
		if w == ch {
			close(w)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			return
		}
	}
}

// notify sends ev to every watcher without blocking. Caller holds mutex.
func (r *Registry) notify(ev Event) {
	ev.Timestamp = time.Now()
	for _, watcher := range r.watchers {
		select {
		case watcher <- ev:
		default:
			// Skip if channel is full
		}
	}
}

// Close releases every controller and closes all watchers.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.stopDetach()

		r.cmu.Lock()
		live := make([]*Brick, 0, len(r.controllers))
		for _, b := range r.controllers {
			live = append(live, b)
		}
		r.controllers = make(map[*dom.Element]*Brick)
		r.cmu.Unlock()

		for _, b := range live {
			b.release()
		}

		r.mutex.Lock()
		for _, w := range r.watchers {
			close(w)
		}
		r.watchers = nil
		r.mutex.Unlock()
	})
}
