package brick

import (
	"context"
	"fmt"

	"github.com/conneroisu/brick/pkg/dom"
)

const (
	// KindAttribute names the component kind on an element.
	KindAttribute = "is"
	// MarkerAttribute is set on every element that has been upgraded.
	MarkerAttribute = "brick-initialized"
	// MarkerValue is the value of MarkerAttribute.
	MarkerValue = "yes"
)

// Constructor wraps the base of a new instance in the component type that
// overrides its hooks. The returned value must report base from Base().
type Constructor func(base *Brick) Component

// Class is the immutable, registered form of a descriptor.
type Class struct {
	tag      string
	template Template
	options  Options
	newFn    Constructor
	parent   *Class
	registry *Registry
}

// Tag returns the unique component kind.
func (c *Class) Tag() string {
	return c.tag
}

// Options returns a copy of the resolved option record.
func (c *Class) Options() Options {
	return c.options.Clone()
}

// Template returns the template reference, or nil.
func (c *Class) Template() Template {
	return c.template
}

// HasTemplate reports whether the class declares a template.
func (c *Class) HasTemplate() bool {
	return declared(c.template)
}

// Parent returns the class this one extends, or nil.
func (c *Class) Parent() *Class {
	return c.parent
}

// Registry returns the registry the class belongs to.
func (c *Class) Registry() *Registry {
	return c.registry
}

// Selector matches elements of this kind.
func (c *Class) Selector() string {
	return fmt.Sprintf(`[%s=%q]`, KindAttribute, c.tag)
}

// CreateElement returns a new detached element marked with this kind.
// An empty tagName means div.
func (c *Class) CreateElement(tagName string) *dom.Element {
	if tagName == "" {
		tagName = "div"
	}
	el := c.registry.doc.CreateElement(tagName)
	el.SetAttribute(KindAttribute, c.tag)
	return el
}

// Create builds a new element and instance without the automatic render.
// When render is set the first render runs before Create returns.
func (c *Class) Create(ctx context.Context, tagName string, render bool) (Component, error) {
	comp, err := c.registry.construct(ctx, c, c.CreateElement(tagName), false)
	if err != nil {
		return nil, err
	}
	if !render {
		return comp, nil
	}
	return comp.Base().Render(ctx, nil)
}

func (c *Class) newComponent(base *Brick) Component {
	for cls := c; cls != nil; cls = cls.parent {
		if cls.newFn != nil {
			return cls.newFn(base)
		}
	}
	return base
}
