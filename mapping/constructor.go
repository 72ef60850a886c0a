package mapping

import (
	"fmt"
	"reflect"
)

// Constructor is a registered factory function for a target type. The
// function takes the constructor-argument values positionally and returns
// the constructed value.
type Constructor struct {
	fn   reflect.Value
	auto bool
}

// Auto reports whether the constructor was marked for automatic
// positional matching against row columns.
func (c *Constructor) Auto() bool { return c.auto }

// ParamTypes returns the function's parameter types in order.
func (c *Constructor) ParamTypes() []reflect.Type {
	t := c.fn.Type()
	params := make([]reflect.Type, t.NumIn())
	for i := range params {
		params[i] = t.In(i)
	}
	return params
}

// Call invokes the factory. A nil argument becomes the parameter's zero
// value; other arguments must be assignable or convertible.
func (c *Constructor) Call(args []any) (any, error) {
	t := c.fn.Type()
	if len(args) != t.NumIn() {
		return nil, fmt.Errorf("mapping: constructor for %s takes %d arguments, got %d", t.Out(0), t.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := t.In(i)
		if arg == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(arg)
		switch {
		case av.Type().AssignableTo(pt):
			in[i] = av
		case av.Type().ConvertibleTo(pt):
			in[i] = av.Convert(pt)
		default:
			return nil, fmt.Errorf("mapping: constructor for %s: argument %d is %s, want %s", t.Out(0), i, av.Type(), pt)
		}
	}
	out := c.fn.Call(in)
	return out[0].Interface(), nil
}

// RegisterConstructor registers a factory function for its return type.
// The function must return exactly one value; auto marks it as the
// candidate for positional column matching.
func (r *Registry) RegisterConstructor(fn any, auto bool) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("mapping: constructor must be a function, got %T", fn)
	}
	t := v.Type()
	if t.NumOut() != 1 {
		return fmt.Errorf("mapping: constructor must return exactly one value")
	}
	if t.IsVariadic() {
		return fmt.Errorf("mapping: variadic constructors are not supported")
	}
	target := t.Out(0)
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	r.constructors[target] = append(r.constructors[target], &Constructor{fn: v, auto: auto})
	return nil
}

// Constructors returns the factories registered for a type, pointer
// indirection stripped.
func (r *Registry) Constructors(t reflect.Type) []*Constructor {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return r.constructors[t]
}
