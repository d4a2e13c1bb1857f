package brick

import (
	"github.com/conneroisu/brick/pkg/dom"
)

// BindFunc is called once per element a Finder discovers. controller is the
// element's component, or nil when it has none.
type BindFunc func(el *dom.Element, controller Component, owner Component)

// Finder holds the result of a query scoped to one component's root.
type Finder struct {
	owner    Component
	root     *dom.Element
	selector string
	elements []*dom.Element
	err      error
}

func newFinder(owner Component, root *dom.Element, selector string, bind BindFunc) *Finder {
	f := &Finder{owner: owner, root: root, selector: selector}
	if selector == "" {
		f.elements = root.Children()
	} else {
		f.elements, f.err = root.QuerySelectorAll(selector)
	}

	if bind != nil {
		reg := owner.Base().registry
		for _, el := range f.elements {
			ctrl, _ := reg.Controller(el)
			bind(el, ctrl, owner)
		}
	}
	return f
}

// Selector returns the query the finder ran.
func (f *Finder) Selector() string { return f.selector }

// Err returns the selector parse error, if any.
func (f *Finder) Err() error { return f.err }

// Elements returns the matches in document order.
func (f *Finder) Elements() []*dom.Element { return f.elements }

// Len returns the number of matches.
func (f *Finder) Len() int { return len(f.elements) }

// First returns the first match, or nil.
func (f *Finder) First() *dom.Element {
	if len(f.elements) == 0 {
		return nil
	}
	return f.elements[0]
}

// Each calls fn for every match.
func (f *Finder) Each(fn func(i int, el *dom.Element)) *Finder {
	for i, el := range f.elements {
		fn(i, el)
	}
	return f
}

// Controllers returns the components controlling the matches, skipping
// elements that have none.
func (f *Finder) Controllers() []Component {
	reg := f.owner.Base().registry
	var out []Component
	for _, el := range f.elements {
		if ctrl, ok := reg.Controller(el); ok {
			out = append(out, ctrl)
		}
	}
	return out
}

// Listen registers h on every match.
func (f *Finder) Listen(event string, h dom.Handler) func() {
	removers := make([]func(), 0, len(f.elements))
	for _, el := range f.elements {
		removers = append(removers, el.AddEventListener(event, h))
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
