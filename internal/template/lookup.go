package template

import (
	"reflect"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path against vm. Each segment selects a map key,
// a struct field (exact name, then case-insensitive, then json tag), or a
// slice index. An empty path or "." yields vm itself.
func Lookup(vm any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return vm, vm != nil
	}

	cur := reflect.ValueOf(vm)
	for _, seg := range strings.Split(strings.TrimPrefix(path, "."), ".") {
		var ok bool
		cur, ok = step(cur, seg)
		if !ok {
			return nil, false
		}
	}

	cur = indirect(cur)
	if !cur.IsValid() || !cur.CanInterface() {
		return nil, false
	}
	return cur.Interface(), true
}

func step(v reflect.Value, seg string) (reflect.Value, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		key := reflect.ValueOf(seg).Convert(v.Type().Key())
		out := v.MapIndex(key)
		return out, out.IsValid()
	case reflect.Struct:
		return field(v, seg)
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(i), true
	default:
		return reflect.Value{}, false
	}
}

func field(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	if sf, ok := t.FieldByName(name); ok && sf.IsExported() {
		// Promoted fields behind a nil embedded pointer are absent.
		f, err := v.FieldByIndexErr(sf.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		return f, true
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if strings.EqualFold(sf.Name, name) || (tag != "" && tag == name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// indirect follows pointers and interfaces down to a concrete value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
