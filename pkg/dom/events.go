package dom

import (
	"time"

	"golang.org/x/net/html"
)

// EventInit configures a new event.
type EventInit struct {
	Bubbles    bool
	Cancelable bool
}

// Event is a custom event carrying an arbitrary detail payload.
type Event struct {
	Type       string
	Detail     any
	Bubbles    bool
	Cancelable bool
	Timestamp  time.Time

	target             *Element
	currentTarget      *Element
	defaultPrevented   bool
	propagationStopped bool
	immediateStopped   bool
}

// NewEvent returns an undispatched event.
func NewEvent(eventType string, detail any, init EventInit) *Event {
	return &Event{
		Type:       eventType,
		Detail:     detail,
		Bubbles:    init.Bubbles,
		Cancelable: init.Cancelable,
		Timestamp:  time.Now(),
	}
}

// Target returns the element the event was dispatched on.
func (ev *Event) Target() *Element {
	return ev.target
}

// CurrentTarget returns the element whose listener is running.
func (ev *Event) CurrentTarget() *Element {
	return ev.currentTarget
}

// PreventDefault marks a cancelable event as canceled.
func (ev *Event) PreventDefault() {
	if ev.Cancelable {
		ev.defaultPrevented = true
	}
}

// DefaultPrevented reports whether a listener canceled the event.
func (ev *Event) DefaultPrevented() bool {
	return ev.defaultPrevented
}

// StopPropagation prevents the event from reaching further ancestors.
func (ev *Event) StopPropagation() {
	ev.propagationStopped = true
}

// StopImmediatePropagation also skips the remaining listeners on the current
// element.
func (ev *Event) StopImmediatePropagation() {
	ev.propagationStopped = true
	ev.immediateStopped = true
}

// Handler handles a dispatched event.
type Handler func(ev *Event)

type listener struct {
	id      int
	handler Handler
}

// AddEventListener registers h for events of the given type that reach e,
// either targeted at e or bubbling through it. The returned function removes
// the listener.
func (e *Element) AddEventListener(eventType string, h Handler) func() {
	e.lmu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[eventType] = append(e.listeners[eventType], &listener{id: id, handler: h})
	e.lmu.Unlock()

	e.doc.retain([]*html.Node{e.node}, false)

	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()

		list := e.listeners[eventType]
		for i, l := range list {
			if l.id == id {
				e.listeners[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// DispatchEvent delivers ev to listeners on e and, when the event bubbles, on
// each ancestor up to the document node. Listeners run synchronously on the
// calling goroutine. It returns false when a listener canceled the event.
func (e *Element) DispatchEvent(ev *Event) bool {
	ev.target = e
	ev.defaultPrevented = false
	ev.propagationStopped = false
	ev.immediateStopped = false

	path := []*Element{e}
	if ev.Bubbles {
		e.doc.mu.RLock()
		for n := e.node.Parent; n != nil; n = n.Parent {
			path = append(path, e.doc.wrap(n))
		}
		e.doc.mu.RUnlock()
	}

	for _, el := range path {
		ev.currentTarget = el
		for _, h := range el.handlersFor(ev.Type) {
			h(ev)
			if ev.immediateStopped {
				break
			}
		}
		if ev.propagationStopped {
			break
		}
	}
	ev.currentTarget = nil

	return !ev.defaultPrevented
}

func (e *Element) handlersFor(eventType string) []Handler {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	list := e.listeners[eventType]
	out := make([]Handler, 0, len(list))
	for _, l := range list {
		out = append(out, l.handler)
	}
	return out
}
