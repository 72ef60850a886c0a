// Package accessor reads and writes named properties on arbitrary objects.
// Paths support dotted and indexed navigation (a.b[2].c). Structs resolve
// segments by Go field name with a case-insensitive fallback; maps resolve
// by key. Per-type reflection metadata is computed once and cached.
package accessor

import (
	"fmt"
	"reflect"
)

var byteSliceType = reflect.TypeOf([]byte(nil))

// Get resolves a property path against an object. A nil anywhere along the
// path yields (nil, nil): absence is not an error at the accessor level.
func Get(obj any, path string) (any, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(obj)
	for _, step := range steps {
		v = indirect(v)
		if !v.IsValid() {
			return nil, nil
		}
		v, err = stepValue(v, step)
		if err != nil {
			return nil, err
		}
		if !v.IsValid() {
			return nil, nil
		}
	}
	v = indirect(v)
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Set assigns a value at a property path, instantiating nil pointers and
// nil maps along the way. The target object must be addressable (a pointer
// to struct, or a map).
func Set(obj any, path string, value any) error {
	steps, err := parsePath(path)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(obj)
	for i, step := range steps {
		last := i == len(steps)-1
		v = materialize(v)
		if !v.IsValid() {
			return fmt.Errorf("accessor: nil encountered setting %q", path)
		}
		if last && len(step.indexes) == 0 {
			return setOn(v, step.name, value, path)
		}
		next, err := stepForWrite(v, step)
		if err != nil {
			return fmt.Errorf("accessor: setting %q: %w", path, err)
		}
		if last {
			return assign(next, reflect.ValueOf(value))
		}
		v = next
	}
	return nil
}

// HasProperty reports whether a path statically resolves on a type.
// Map types accept any path.
func HasProperty(t reflect.Type, path string) bool {
	_, ok := TypeOfProperty(t, path)
	return ok
}

// TypeOfProperty statically walks a property path over a type and returns
// the terminal value type. Map and interface segments yield their element
// type when known, else fail.
func TypeOfProperty(t reflect.Type, path string) (reflect.Type, bool) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	for _, step := range steps {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Struct:
			meta, err := MetaOf(t)
			if err != nil {
				return nil, false
			}
			fm, ok := meta.FieldMap[step.name]
			if !ok {
				name, found := meta.FindProperty(step.name, false)
				if !found {
					return nil, false
				}
				fm = meta.FieldMap[name]
			}
			t = fm.Type
		case reflect.Map:
			t = t.Elem()
		default:
			return nil, false
		}
		for range step.indexes {
			for t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
				return nil, false
			}
			t = t.Elem()
		}
	}
	return t, true
}

// IsCollection reports whether a type is treated as a collection property
// (slices, except raw byte payloads).
func IsCollection(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Slice && t != byteSliceType
}

// AppendElement appends a value to a slice-typed property, instantiating
// the slice when nil, and writes the grown slice back.
func AppendElement(obj any, path string, value any) error {
	current, err := Get(obj, path)
	if err != nil {
		return err
	}
	sliceType, ok := TypeOfProperty(baseType(obj), path)
	if !ok {
		return fmt.Errorf("accessor: no slice property %q on %T", path, obj)
	}
	if !IsCollection(sliceType) {
		return fmt.Errorf("accessor: property %q of %T is not a collection", path, obj)
	}
	var slice reflect.Value
	if current == nil {
		slice = reflect.MakeSlice(sliceType, 0, 4)
	} else {
		slice = reflect.ValueOf(current)
	}
	ev := reflect.ValueOf(value)
	et := sliceType.Elem()
	if ev.IsValid() && ev.Kind() == reflect.Ptr && et.Kind() != reflect.Ptr && !ev.IsNil() {
		ev = ev.Elem()
	}
	if !ev.IsValid() {
		ev = reflect.Zero(et)
	} else if !ev.Type().AssignableTo(et) {
		if ev.Type().ConvertibleTo(et) {
			ev = ev.Convert(et)
		} else {
			return fmt.Errorf("accessor: cannot append %T to %s property %q", value, sliceType, path)
		}
	}
	return Set(obj, path, reflect.Append(slice, ev).Interface())
}

// Instantiate builds a fresh, settable instance of a mapping target type:
// a pointer for structs, an empty map for map types.
func Instantiate(t reflect.Type) (any, error) {
	switch t.Kind() {
	case reflect.Ptr:
		inner, err := Instantiate(t.Elem())
		if err != nil {
			return nil, err
		}
		return inner, nil
	case reflect.Struct:
		return reflect.New(t).Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(t).Interface(), nil
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 4).Interface(), nil
	default:
		return nil, fmt.Errorf("accessor: cannot instantiate %s", t)
	}
}

// IsMapTarget reports whether a target type is a generic bag (map) rather
// than a struct.
func IsMapTarget(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Map
}

func baseType(obj any) reflect.Type {
	return reflect.TypeOf(obj)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// materialize dereferences pointers, allocating nil ones when addressable.
func materialize(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			if !v.CanSet() {
				return reflect.Value{}
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		if v.Kind() == reflect.Interface && v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func stepValue(v reflect.Value, step pathStep) (reflect.Value, error) {
	var next reflect.Value
	switch v.Kind() {
	case reflect.Struct:
		next = fieldByName(v, step.name)
		if !next.IsValid() {
			return reflect.Value{}, fmt.Errorf("accessor: no property %q on %s", step.name, v.Type())
		}
	case reflect.Map:
		next = v.MapIndex(reflect.ValueOf(step.name))
		if !next.IsValid() {
			return reflect.Value{}, nil
		}
	default:
		return reflect.Value{}, fmt.Errorf("accessor: cannot navigate %q on %s", step.name, v.Kind())
	}
	for _, idx := range step.indexes {
		next = indirect(next)
		if !next.IsValid() {
			return reflect.Value{}, nil
		}
		if next.Kind() != reflect.Slice && next.Kind() != reflect.Array {
			return reflect.Value{}, fmt.Errorf("accessor: cannot index %q on %s", step.name, next.Kind())
		}
		if idx < 0 || idx >= next.Len() {
			return reflect.Value{}, fmt.Errorf("accessor: index %d out of range for %q (len %d)", idx, step.name, next.Len())
		}
		next = next.Index(idx)
	}
	return next, nil
}

// stepForWrite resolves one intermediate step during Set, allocating as
// needed so the returned value is settable.
func stepForWrite(v reflect.Value, step pathStep) (reflect.Value, error) {
	next, err := stepValue(v, step)
	if err != nil {
		return reflect.Value{}, err
	}
	if !next.IsValid() {
		return reflect.Value{}, fmt.Errorf("nil intermediate at %q", step.name)
	}
	next = materialize(next)
	if !next.IsValid() {
		return reflect.Value{}, fmt.Errorf("unaddressable intermediate at %q", step.name)
	}
	return next, nil
}

func setOn(v reflect.Value, name string, value any, path string) error {
	switch v.Kind() {
	case reflect.Struct:
		field := fieldByName(v, name)
		if !field.IsValid() {
			return fmt.Errorf("accessor: no property %q on %s", name, v.Type())
		}
		if !field.CanSet() {
			return fmt.Errorf("accessor: property %q on %s is not settable (pass a pointer)", name, v.Type())
		}
		return assign(field, reflect.ValueOf(value))
	case reflect.Map:
		kv := reflect.ValueOf(name)
		if value == nil {
			v.SetMapIndex(kv, reflect.Zero(v.Type().Elem()))
			return nil
		}
		ev := reflect.ValueOf(value)
		if !ev.Type().AssignableTo(v.Type().Elem()) {
			if !ev.Type().ConvertibleTo(v.Type().Elem()) {
				return fmt.Errorf("accessor: cannot store %T under key %q in %s", value, name, v.Type())
			}
			ev = ev.Convert(v.Type().Elem())
		}
		v.SetMapIndex(kv, ev)
		return nil
	default:
		return fmt.Errorf("accessor: cannot set %q on %s (path %q)", name, v.Kind(), path)
	}
}

func assign(dst reflect.Value, src reflect.Value) error {
	if !dst.CanSet() {
		return fmt.Errorf("accessor: target is not settable")
	}
	if !src.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	// Unwrap pointer sources onto value targets and vice versa.
	if dst.Kind() == reflect.Ptr && src.Kind() != reflect.Ptr {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), src); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if src.Kind() == reflect.Ptr && dst.Kind() != reflect.Ptr {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return assign(dst, src.Elem())
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("accessor: cannot assign %s to %s", src.Type(), dst.Type())
}

func fieldByName(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	meta, err := MetaOf(t)
	if err != nil {
		return reflect.Value{}
	}
	fm, ok := meta.FieldMap[name]
	if !ok {
		goName, found := meta.FindProperty(name, false)
		if !found {
			return reflect.Value{}
		}
		fm = meta.FieldMap[goName]
	}
	return v.FieldByIndex(fm.Index)
}
