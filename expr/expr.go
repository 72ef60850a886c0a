// Package expr evaluates the small expression language used inside
// statement templates: ${} substitutions, conditional guards, bind values,
// and repeat collection expressions. Expressions combine property paths,
// literals, comparisons, and boolean connectives; property paths resolve
// against a Binding (synthetic bindings first, then the argument object).
package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/remap/accessor"
)

// Binding resolves a top-level name during evaluation.
type Binding interface {
	Resolve(name string) (value any, ok bool)
}

// MapBinding is the simplest Binding: a bag of named values.
type MapBinding map[string]any

func (m MapBinding) Resolve(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// ObjectBinding resolves names as properties of a root argument object,
// after consulting an overlay of synthetic bindings.
type ObjectBinding struct {
	Root    any
	Overlay map[string]any
}

func (b ObjectBinding) Resolve(name string) (any, bool) {
	if v, ok := b.Overlay[name]; ok {
		return v, true
	}
	if b.Root == nil {
		return nil, false
	}
	if m, ok := b.Root.(map[string]any); ok {
		v, found := m[name]
		return v, found
	}
	t := reflect.TypeOf(b.Root)
	if !accessor.HasProperty(t, name) {
		return nil, false
	}
	v, err := accessor.Get(b.Root, name)
	if err != nil {
		return nil, false
	}
	return v, true
}

// EvalError reports a failed evaluation with its source position. Nil is
// not an error; see ErrNilValue for call sites that require one.
type EvalError struct {
	Expr string
	Pos  int
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expr: %v in %q at position %d", e.Err, e.Expr, e.Pos)
}

func (e *EvalError) Unwrap() error { return e.Err }

// NilValueError distinguishes "evaluated to nil" from "evaluation failed".
type NilValueError struct {
	Expr string
}

func (e *NilValueError) Error() string {
	return fmt.Sprintf("expr: %q evaluated to a nil value", e.Expr)
}

// Eval evaluates an expression to its value.
func Eval(input string, binding Binding) (any, error) {
	node, err := parse(input)
	if err != nil {
		return nil, err
	}
	return evalNode(input, node, binding)
}

// EvalBool evaluates an expression and applies truthiness: booleans pass
// through, numbers are true when non-zero, nil is false, anything else is
// true.
func EvalBool(input string, binding Binding) (bool, error) {
	v, err := Eval(input, binding)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Item is one element of an iterated collection. Key holds the index for
// slices and arrays, the key for maps.
type Item struct {
	Key   any
	Value any
}

// EvalIterable evaluates a collection expression. The value must be a
// slice, array, or map; nil yields a NilValueError.
func EvalIterable(input string, binding Binding) ([]Item, error) {
	v, err := Eval(input, binding)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &NilValueError{Expr: input}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, &NilValueError{Expr: input}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Item, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = Item{Key: i, Value: rv.Index(i).Interface()}
		}
		return items, nil
	case reflect.Map:
		items := make([]Item, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			items = append(items, Item{Key: iter.Key().Interface(), Value: iter.Value().Interface()})
		}
		return items, nil
	default:
		return nil, &EvalError{Expr: input, Err: fmt.Errorf("value of type %T is not iterable", v)}
	}
}

// Truthy implements the guard-condition semantics.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch n := v.(type) {
	case bool:
		return n
	case int:
		return n != 0
	case int8:
		return n != 0
	case int16:
		return n != 0
	case int32:
		return n != 0
	case int64:
		return n != 0
	case uint:
		return n != 0
	case uint8:
		return n != 0
	case uint16:
		return n != 0
	case uint32:
		return n != 0
	case uint64:
		return n != 0
	case float32:
		return n != 0
	case float64:
		return n != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

func evalNode(input string, n *exprNode, binding Binding) (any, error) {
	switch n.kind {
	case nodeLiteral:
		return n.literal, nil
	case nodePath:
		return resolvePath(input, n.path, binding)
	case nodeNot:
		v, err := evalNode(input, n.left, binding)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	case nodeAnd:
		l, err := evalNode(input, n.left, binding)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return false, nil
		}
		r, err := evalNode(input, n.right, binding)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	case nodeOr:
		l, err := evalNode(input, n.left, binding)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return true, nil
		}
		r, err := evalNode(input, n.right, binding)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	case nodeCompare:
		l, err := evalNode(input, n.left, binding)
		if err != nil {
			return nil, err
		}
		r, err := evalNode(input, n.right, binding)
		if err != nil {
			return nil, err
		}
		return compare(input, n.op, l, r)
	default:
		return nil, &EvalError{Expr: input, Err: fmt.Errorf("unknown node kind %d", n.kind)}
	}
}

func resolvePath(input, path string, binding Binding) (any, error) {
	head := path
	rest := ""
	if cut := strings.IndexAny(path, ".["); cut >= 0 {
		head = path[:cut]
		rest = path[cut:]
		rest = strings.TrimPrefix(rest, ".")
	}
	root, ok := binding.Resolve(head)
	if !ok {
		// Absent names evaluate to nil, so "name != nil" guards hold for
		// arguments that lack the property.
		return nil, nil
	}
	if rest == "" {
		return root, nil
	}
	if root == nil {
		return nil, nil
	}
	// Re-attach index accessors that belonged to the head segment.
	if strings.HasPrefix(rest, "[") {
		v, err := accessor.Get(map[string]any{head: root}, head+rest)
		if err != nil {
			return nil, &EvalError{Expr: input, Err: err}
		}
		return v, nil
	}
	v, err := accessor.Get(root, rest)
	if err != nil {
		return nil, &EvalError{Expr: input, Err: err}
	}
	return v, nil
}

func compare(input, op string, l, r any) (any, error) {
	if op == "==" || op == "!=" {
		eq := looseEqual(l, r)
		if op == "==" {
			return eq, nil
		}
		return !eq, nil
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, &EvalError{Expr: input, Err: fmt.Errorf("cannot order %T against %T", l, r)}
}

func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
	}
	if ls, ok := stringish(l); ok {
		if rs, ok := stringish(r); ok {
			return ls == rs
		}
	}
	return reflect.DeepEqual(l, r)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringish(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
