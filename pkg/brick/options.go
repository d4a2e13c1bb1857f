package brick

import (
	"reflect"
	"slices"
)

// OptionKey names one field of the option record.
type OptionKey string

const (
	OptionRenderOnConstruct         OptionKey = "renderOnConstruct"
	OptionCleanOnConstruct          OptionKey = "cleanOnConstruct"
	OptionObserveAttributes         OptionKey = "observeAttributes"
	OptionObservedAttributes        OptionKey = "observedAttributes"
	OptionRegisterSubBricksOnRender OptionKey = "registerSubBricksOnRender"
	OptionRootCSSClasses            OptionKey = "rootCssClasses"
)

// Options is the per-class behavior record.
type Options struct {
	RenderOnConstruct bool
	CleanOnConstruct  bool
	ObserveAttributes bool
	// ObservedAttributes restricts observation to the listed names. Nil
	// observes every attribute.
	ObservedAttributes        []string
	RegisterSubBricksOnRender bool
	RootCSSClasses            []string

	// Custom holds keys the record has no field for, and values whose type
	// did not fit the named field. They are kept, not validated.
	Custom map[OptionKey]any
}

// DefaultOptions returns the framework defaults.
func DefaultOptions() Options {
	return Options{
		RenderOnConstruct: true,
		CleanOnConstruct:  true,
	}
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	out := o
	out.ObservedAttributes = slices.Clone(o.ObservedAttributes)
	out.RootCSSClasses = slices.Clone(o.RootCSSClasses)
	if o.Custom != nil {
		out.Custom = make(map[OptionKey]any, len(o.Custom))
		for k, v := range o.Custom {
			out.Custom[k] = v
		}
	}
	return out
}

// Equal reports whether two records hold the same values.
func (o Options) Equal(other Options) bool {
	if o.RenderOnConstruct != other.RenderOnConstruct ||
		o.CleanOnConstruct != other.CleanOnConstruct ||
		o.ObserveAttributes != other.ObserveAttributes ||
		o.RegisterSubBricksOnRender != other.RegisterSubBricksOnRender {
		return false
	}
	if (o.ObservedAttributes == nil) != (other.ObservedAttributes == nil) ||
		!slices.Equal(o.ObservedAttributes, other.ObservedAttributes) ||
		!slices.Equal(o.RootCSSClasses, other.RootCSSClasses) {
		return false
	}
	if len(o.Custom) != len(other.Custom) {
		return false
	}
	for k, v := range o.Custom {
		ov, ok := other.Custom[k]
		if !ok || !reflect.DeepEqual(ov, v) {
			return false
		}
	}
	return true
}

// set writes one key. Values of the wrong type land in Custom.
func (o *Options) set(key OptionKey, value any) {
	flag, isBool := value.(bool)
	ok := true
	switch key {
	case OptionRenderOnConstruct:
		if ok = isBool; ok {
			o.RenderOnConstruct = flag
		}
	case OptionCleanOnConstruct:
		if ok = isBool; ok {
			o.CleanOnConstruct = flag
		}
	case OptionObserveAttributes:
		if ok = isBool; ok {
			o.ObserveAttributes = flag
		}
	case OptionRegisterSubBricksOnRender:
		if ok = isBool; ok {
			o.RegisterSubBricksOnRender = flag
		}
	case OptionObservedAttributes:
		switch v := value.(type) {
		case nil:
			o.ObservedAttributes = nil
		case bool:
			// false means observe everything
			ok = !v
			if ok {
				o.ObservedAttributes = nil
			}
		case []string:
			o.ObservedAttributes = slices.Clone(v)
		case string:
			o.ObservedAttributes = []string{v}
		default:
			ok = false
		}
	case OptionRootCSSClasses:
		switch v := value.(type) {
		case []string:
			o.RootCSSClasses = slices.Clone(v)
		case string:
			o.RootCSSClasses = []string{v}
		default:
			ok = false
		}
	default:
		ok = false
	}

	if ok {
		delete(o.Custom, key)
		return
	}
	if o.Custom == nil {
		o.Custom = make(map[OptionKey]any)
	}
	o.Custom[key] = value
}

// get reads one key back in the form set accepts.
func (o Options) get(key OptionKey) any {
	if v, ok := o.Custom[key]; ok {
		return v
	}
	switch key {
	case OptionRenderOnConstruct:
		return o.RenderOnConstruct
	case OptionCleanOnConstruct:
		return o.CleanOnConstruct
	case OptionObserveAttributes:
		return o.ObserveAttributes
	case OptionRegisterSubBricksOnRender:
		return o.RegisterSubBricksOnRender
	case OptionObservedAttributes:
		if o.ObservedAttributes == nil {
			return nil
		}
		return slices.Clone(o.ObservedAttributes)
	case OptionRootCSSClasses:
		return slices.Clone(o.RootCSSClasses)
	default:
		return o.Custom[key]
	}
}

// Option configures a Descriptor at definition time.
type Option func(d *Descriptor)

// CleanOnConstruct controls whether construction empties the root.
func CleanOnConstruct(v bool) Option {
	return func(d *Descriptor) { d.SetOption(OptionCleanOnConstruct, v) }
}

// RenderOnConstruct controls whether construction starts the first render.
func RenderOnConstruct(v bool) Option {
	return func(d *Descriptor) { d.SetOption(OptionRenderOnConstruct, v) }
}

// RegisterSubBricksOnRender makes every render upgrade tagged descendants.
func RegisterSubBricksOnRender(v bool) Option {
	return func(d *Descriptor) { d.SetOption(OptionRegisterSubBricksOnRender, v) }
}

// AddClass sets the CSS classes applied to the root at construction.
func AddClass(classes ...string) Option {
	return func(d *Descriptor) { d.SetOption(OptionRootCSSClasses, classes) }
}

// ObserveAttributes turns attribute observation on or off. When attrs are
// given, only those names are reported.
func ObserveAttributes(v bool, attrs ...string) Option {
	return func(d *Descriptor) {
		d.SetOption(OptionObserveAttributes, v)
		if len(attrs) > 0 {
			d.SetOption(OptionObservedAttributes, attrs)
		}
	}
}

// Descriptor is the mutable definition of a component kind. Registering it
// freezes a copy into a Class; later changes to the descriptor do not affect
// classes already registered.
type Descriptor struct {
	Tag      string
	Template Template
	// New builds the component around its base. Nil yields a plain *Brick.
	New Constructor
	// Extends names the class this one inherits options, template, and
	// constructor from. Only keys set on this descriptor override the parent.
	Extends *Class

	options *Options
	set     map[OptionKey]bool
}

// NewDescriptor returns a descriptor with opts applied in order.
func NewDescriptor(tag string, tpl Template, opts ...Option) *Descriptor {
	d := &Descriptor{Tag: tag, Template: tpl}
	d.SetDefaultOptions()
	d.Apply(opts...)
	return d
}

// Apply runs opts against d in order.
func (d *Descriptor) Apply(opts ...Option) *Descriptor {
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetDefaultOptions installs the default record unless one exists.
func (d *Descriptor) SetDefaultOptions() {
	if d.options != nil {
		return
	}
	o := DefaultOptions()
	d.options = &o
}

// SetOption overwrites exactly one key, installing defaults first.
func (d *Descriptor) SetOption(key OptionKey, value any) {
	d.SetDefaultOptions()
	d.options.set(key, value)
	if d.set == nil {
		d.set = make(map[OptionKey]bool)
	}
	d.set[key] = true
}

// Options returns a copy of the current record, or the defaults when none
// has been installed.
func (d *Descriptor) Options() Options {
	if d.options == nil {
		return DefaultOptions()
	}
	return d.options.Clone()
}

// resolve merges the parent's record with the keys set on d.
func (d *Descriptor) resolve() Options {
	if d.Extends == nil {
		return d.Options()
	}

	merged := d.Extends.Options()
	own := d.Options()
	for key := range d.set {
		merged.set(key, own.get(key))
	}
	return merged
}
