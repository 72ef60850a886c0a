package graph

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/remap/accessor"
)

// QueryRunner executes a nested statement on behalf of the materializer.
// Implementations are expected to consult their result cache before
// hitting the driver.
type QueryRunner interface {
	RunNested(ctx context.Context, statementID string, arg any, target reflect.Type) (any, error)
}

// Loader is one deferred property resolution. First access settles the
// value onto the target and subsequent calls are no-ops.
type Loader struct {
	target      any
	property    string
	statementID string
	arg         any
	valueType   reflect.Type
	runner      QueryRunner
	done        bool
}

// Property names the target property this loader fills.
func (l *Loader) Property() string { return l.property }

// Load resolves the deferred value if it has not been resolved yet.
func (l *Loader) Load(ctx context.Context) error {
	if l.done {
		return nil
	}
	value, err := l.runner.RunNested(ctx, l.statementID, l.arg, l.valueType)
	if err != nil {
		return fmt.Errorf("graph: lazy load of %q via %q: %w", l.property, l.statementID, err)
	}
	if err := setOrAppend(l.target, l.property, value); err != nil {
		return err
	}
	l.done = true
	return nil
}

// LoaderSet indexes pending loaders by target object identity. Callers
// trigger resolution on first access of a deferred property.
type LoaderSet struct {
	loaders []*Loader
	byKey   map[loaderKey]*Loader
}

type loaderKey struct {
	target   uintptr
	property string
}

// handleOf reduces a target to a comparable per-object handle. Targets
// are pointer or map values, both carrying a stable pointer identity;
// anything else cannot be looked up and yields the zero handle.
func handleOf(target any) uintptr {
	v := reflect.ValueOf(target)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return v.Pointer()
	}
	return 0
}

func newLoaderSet() *LoaderSet {
	return &LoaderSet{byKey: make(map[loaderKey]*Loader)}
}

func (s *LoaderSet) add(l *Loader) {
	s.loaders = append(s.loaders, l)
	if h := handleOf(l.target); h != 0 {
		s.byKey[loaderKey{target: h, property: l.property}] = l
	}
}

// Empty reports whether no deferred work remains registered.
func (s *LoaderSet) Empty() bool { return len(s.loaders) == 0 }

// Load resolves the loader registered for one property of one object.
// Unknown pairs are a no-op.
func (s *LoaderSet) Load(ctx context.Context, target any, property string) error {
	if l, ok := s.byKey[loaderKey{target: handleOf(target), property: property}]; ok {
		return l.Load(ctx)
	}
	return nil
}

// LoadAll resolves every pending loader.
func (s *LoaderSet) LoadAll(ctx context.Context) error {
	for _, l := range s.loaders {
		if err := l.Load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// setOrAppend links a value into a property, appending when the property
// is collection-typed.
func setOrAppend(target any, property string, value any) error {
	t := reflect.TypeOf(target)
	pt, ok := accessor.TypeOfProperty(t, property)
	if ok && accessor.IsCollection(pt) {
		if value == nil {
			return nil
		}
		// A slice-valued result merges element by element.
		vv := reflect.ValueOf(value)
		if vv.Kind() == reflect.Slice {
			for i := 0; i < vv.Len(); i++ {
				if err := accessor.AppendElement(target, property, vv.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return accessor.AppendElement(target, property, value)
	}
	return accessor.Set(target, property, value)
}
