// Package components turns the component declarations of a configuration
// file into registered classes.
package components

import (
	"context"
	"fmt"
	"maps"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/pkg/brick"
)

// Declared is a component built from configuration. Its view model merges
// the declared data, the root's dataset and map render arguments, later
// sources winning. Any observed attribute change re-renders it.
type Declared struct {
	*brick.Brick
	data map[string]any
}

// Data returns a copy of the declared view-model data.
func (d *Declared) Data() map[string]any {
	return maps.Clone(d.data)
}

func (d *Declared) CreateViewModel(ctx context.Context, args any) (any, error) {
	dataset := d.Dataset().All()
	vm := make(map[string]any, len(d.data)+len(dataset))

	maps.Copy(vm, d.data)
	for k, v := range dataset {
		vm[k] = v
	}

	switch a := args.(type) {
	case nil:
	case map[string]any:
		maps.Copy(vm, a)
	default:
		vm["args"] = a
	}
	return vm, nil
}

func (d *Declared) OnAttributeChange(ctx context.Context, name, value, oldValue string) {
	d.Logger().Debug(ctx, "attribute changed, re-rendering",
		"attribute", name,
		"old", oldValue,
		"new", value)

	if _, err := d.Render(ctx, nil); err != nil {
		d.Logger().Error(ctx, err, "re-render failed", "attribute", name)
	}
}

// Register declares every component in cfgs on reg, in order, and returns
// the classes. Extends must name a class registered earlier, either on reg
// already or earlier in cfgs. Registration stops at the first failure.
func Register(reg *brick.Registry, cfgs []config.ComponentConfig, baseDir string) ([]*brick.Class, error) {
	data := make(map[string]map[string]any, len(cfgs))
	classes := make([]*brick.Class, 0, len(cfgs))

	for _, c := range cfgs {
		d, err := Descriptor(reg, c, baseDir)
		if err != nil {
			return classes, err
		}

		// Inherited data sits under the declared data.
		merged := make(map[string]any)
		if c.Extends != "" {
			maps.Copy(merged, data[c.Extends])
		}
		maps.Copy(merged, c.Data)
		data[c.Tag] = merged

		d.New = func(b *brick.Brick) brick.Component {
			return &Declared{Brick: b, data: merged}
		}

		class, err := reg.Register(d)
		if err != nil {
			return classes, fmt.Errorf("registering %q: %w", c.Tag, err)
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// Descriptor builds the descriptor for c without a constructor.
func Descriptor(reg *brick.Registry, c config.ComponentConfig, baseDir string) (*brick.Descriptor, error) {
	source, err := c.ReadTemplate(baseDir)
	if err != nil {
		return nil, err
	}

	// A nil template lets an extending component inherit its parent's.
	var tpl brick.Template
	if source != "" {
		tpl = brick.Text(source)
	}

	d := brick.NewDescriptor(c.Tag, tpl, Options(c.Options)...)
	if c.Extends != "" {
		parent, ok := reg.Class(c.Extends)
		if !ok {
			return nil, fmt.Errorf("%q extends %q: %w", c.Tag, c.Extends, brick.ErrUnknownTag)
		}
		d.Extends = parent
	}
	return d, nil
}

// Options converts configured overrides into descriptor options. Only
// fields present in the configuration become options.
func Options(o config.ComponentOptions) []brick.Option {
	var opts []brick.Option

	if o.RenderOnConstruct != nil {
		opts = append(opts, brick.RenderOnConstruct(*o.RenderOnConstruct))
	}
	if o.CleanOnConstruct != nil {
		opts = append(opts, brick.CleanOnConstruct(*o.CleanOnConstruct))
	}
	if o.RegisterSubBricksOnRender != nil {
		opts = append(opts, brick.RegisterSubBricksOnRender(*o.RegisterSubBricksOnRender))
	}
	switch {
	case o.ObserveAttributes != nil:
		opts = append(opts, brick.ObserveAttributes(*o.ObserveAttributes, o.ObservedAttributes...))
	case len(o.ObservedAttributes) > 0:
		// Listing attributes implies observing them.
		opts = append(opts, brick.ObserveAttributes(true, o.ObservedAttributes...))
	}
	if len(o.RootCSSClasses) > 0 {
		opts = append(opts, brick.AddClass(o.RootCSSClasses...))
	}
	return opts
}
