//go:build property
// +build property

package brick

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var boolKeys = []OptionKey{
	OptionRenderOnConstruct,
	OptionCleanOnConstruct,
	OptionObserveAttributes,
	OptionRegisterSubBricksOnRender,
}

// TestOptionProperties tests the configuration resolver laws
func TestOptionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: installing defaults n times equals installing them once
	properties.Property("default installation is idempotent", prop.ForAll(
		func(n int) bool {
			once := &Descriptor{}
			once.SetDefaultOptions()

			many := &Descriptor{}
			for i := 0; i < n; i++ {
				many.SetDefaultOptions()
			}
			return once.Options().Equal(many.Options())
		},
		gen.IntRange(1, 10),
	))

	// Property: setting k2 never disturbs a previously set k1
	properties.Property("cross-key non-interference", prop.ForAll(
		func(i, j int, v1, v2 bool) bool {
			k1, k2 := boolKeys[i], boolKeys[j]
			if k1 == k2 {
				return true
			}
			d := &Descriptor{}
			d.SetOption(k1, v1)
			d.SetOption(k2, v2)

			o := d.Options()
			return o.get(k1) == v1 && o.get(k2) == v2
		},
		gen.IntRange(0, len(boolKeys)-1),
		gen.IntRange(0, len(boolKeys)-1),
		gen.Bool(),
		gen.Bool(),
	))

	// Property: repeated writes to one key are last-write-wins
	properties.Property("per-key last write wins", prop.ForAll(
		func(i int, writes []bool) bool {
			if len(writes) == 0 {
				return true
			}
			key := boolKeys[i]
			d := &Descriptor{}
			for _, w := range writes {
				d.SetOption(key, w)
			}
			return d.Options().get(key) == writes[len(writes)-1]
		},
		gen.IntRange(0, len(boolKeys)-1),
		gen.SliceOf(gen.Bool()),
	))

	// Property: stacking different keys commutes
	properties.Property("stacking order commutes across keys", prop.ForAll(
		func(classes []string, observe bool) bool {
			a := NewDescriptor("x", nil, AddClass(classes...), ObserveAttributes(observe))
			b := NewDescriptor("x", nil, ObserveAttributes(observe), AddClass(classes...))
			return a.Options().Equal(b.Options())
		},
		gen.SliceOfN(3, gen.RegexMatch(`^[a-z]{1,6}$`)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
