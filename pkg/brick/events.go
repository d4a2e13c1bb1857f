package brick

import (
	"github.com/conneroisu/brick/pkg/dom"
)

// FireOptions configures a dispatched event.
type FireOptions struct {
	Bubbles    bool
	Cancelable bool
}

// DefaultFireOptions bubbles and is cancelable.
func DefaultFireOptions() FireOptions {
	return FireOptions{Bubbles: true, Cancelable: true}
}

// listen registers h on el for every name and returns one function that
// removes them all.
func listen(el *dom.Element, events []string, h dom.Handler) func() {
	removers := make([]func(), 0, len(events))
	for _, name := range events {
		removers = append(removers, el.AddEventListener(name, h))
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

func fire(el *dom.Element, name string, data any, opts FireOptions) bool {
	return el.DispatchEvent(dom.NewEvent(name, data, dom.EventInit{
		Bubbles:    opts.Bubbles,
		Cancelable: opts.Cancelable,
	}))
}

// Listen handles events named event as they reach the root, including ones
// bubbling up from descendants.
func (b *Brick) Listen(event string, h dom.Handler) func() {
	return listen(b.root, []string{event}, h)
}

// ListenMany registers h for several event names at once.
func (b *Brick) ListenMany(events []string, h dom.Handler) func() {
	return listen(b.root, events, h)
}

// Fire dispatches a bubbling, cancelable event carrying data from the event
// source. It returns false when a listener canceled it.
func (b *Brick) Fire(name string, data any) bool {
	return fire(b.eventSource, name, data, DefaultFireOptions())
}

// FireWith dispatches with explicit options.
func (b *Brick) FireWith(name string, data any, opts FireOptions) bool {
	return fire(b.eventSource, name, data, opts)
}
