package dom

import (
	"strings"
)

// ClassList is a view over an element's class attribute.
type ClassList struct {
	el *Element
}

// Values returns the classes in attribute order.
func (c ClassList) Values() []string {
	return strings.Fields(c.el.GetAttribute("class"))
}

// Contains reports whether the class is present.
func (c ClassList) Contains(class string) bool {
	for _, v := range c.Values() {
		if v == class {
			return true
		}
	}
	return false
}

// Add appends classes that are not already present. Existing classes are kept.
func (c ClassList) Add(classes ...string) {
	current := c.Values()
	changed := false
	for _, class := range classes {
		class = strings.TrimSpace(class)
		if class == "" || contains(current, class) {
			continue
		}
		current = append(current, class)
		changed = true
	}
	if changed {
		c.el.SetAttribute("class", strings.Join(current, " "))
	}
}

// Remove deletes classes that are present.
func (c ClassList) Remove(classes ...string) {
	current := c.Values()
	kept := current[:0]
	for _, v := range current {
		if !contains(classes, v) {
			kept = append(kept, v)
		}
	}
	if len(kept) != len(c.Values()) {
		c.el.SetAttribute("class", strings.Join(kept, " "))
	}
}

// Dataset is a live view over an element's data-* attributes. Keys use the
// camelCase form: data-user-id is exposed as userId.
type Dataset struct {
	el *Element
}

// Get returns the value stored under key and whether it exists.
func (d Dataset) Get(key string) (string, bool) {
	return d.el.Attribute(DataAttributeName(key))
}

// Set writes key through to the element's data-* attribute.
func (d Dataset) Set(key, value string) {
	d.el.SetAttribute(DataAttributeName(key), value)
}

// Delete removes the data-* attribute for key.
func (d Dataset) Delete(key string) {
	d.el.RemoveAttribute(DataAttributeName(key))
}

// All returns a snapshot of every data-* attribute keyed by camelCase name.
func (d Dataset) All() map[string]string {
	out := make(map[string]string)
	for _, a := range d.el.Attributes() {
		if key, ok := DatasetKey(a.Key); ok {
			out[key] = a.Val
		}
	}
	return out
}

// DataAttributeName converts a camelCase dataset key into its data-* attribute
// name.
func DataAttributeName(key string) string {
	var sb strings.Builder
	sb.WriteString("data-")
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// DatasetKey converts a data-* attribute name into its camelCase dataset key.
// It reports false for attributes outside the data-* namespace.
func DatasetKey(attribute string) (string, bool) {
	rest, ok := strings.CutPrefix(attribute, "data-")
	if !ok {
		return "", false
	}

	var sb strings.Builder
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if ch == '-' && i+1 < len(rest) && rest[i+1] >= 'a' && rest[i+1] <= 'z' {
			sb.WriteByte(rest[i+1] - ('a' - 'A'))
			i++
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String(), true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
