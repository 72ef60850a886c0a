// Package typeconv converts between wire-level column values and target
// value types. Converters are registered per (value type, wire type) pair;
// WireUnknown registrations act as the fallback for their value type.
package typeconv

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Row is the read side of a cursor positioned on one row.
type Row interface {
	GetRaw(column string) (any, error)
}

// Converter moves one value across the driver boundary.
type Converter interface {
	FromWire(row Row, column string) (any, error)
	ToWire(value any) (any, error)
}

// ConvertError wraps a conversion failure with the offending column.
type ConvertError struct {
	Column string
	Err    error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("typeconv: column %q: %v", e.Column, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Registry holds converters keyed by value type and wire type. Construct
// with NewRegistry and pass explicitly into both pipelines; there is no
// process-wide instance.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]map[WireType]Converter
	byName map[string]Converter
}

func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]map[WireType]Converter, 32),
		byName: make(map[string]Converter, 8),
	}
	r.registerBuiltins()
	return r
}

// RegisterNamed registers a converter under an alias for use by the
// typeConverter marker attribute.
func (r *Registry) RegisterNamed(name string, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = c
}

// Named resolves a converter alias.
func (r *Registry) Named(name string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *Registry) Register(t reflect.Type, wt WireType, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byType[t]
	if !ok {
		m = make(map[WireType]Converter, 4)
		r.byType[t] = m
	}
	m[wt] = c
}

// Has reports whether any converter exists for a value type.
func (r *Registry) Has(t reflect.Type) bool {
	return r.Lookup(t, WireUnknown) != nil
}

// HasWire reports whether a converter exists for a (value, wire) pair,
// falling back to the type's WireUnknown registration.
func (r *Registry) HasWire(t reflect.Type, wt WireType) bool {
	return r.Lookup(t, wt) != nil
}

// Lookup returns the converter for a (value, wire) pair or nil. Pointer
// value types resolve through their element type.
func (r *Registry) Lookup(t reflect.Type, wt WireType) Converter {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byType[t]
	if !ok {
		return nil
	}
	if c, ok := m[wt]; ok {
		return c
	}
	return m[WireUnknown]
}

// Unknown returns the fallback converter used when no type information is
// available: raw values pass through unchanged.
func (r *Registry) Unknown() Converter { return unknownConverter{} }

type unknownConverter struct{}

func (unknownConverter) FromWire(row Row, column string) (any, error) {
	return row.GetRaw(column)
}

func (unknownConverter) ToWire(value any) (any, error) { return value, nil }

// funcConverter adapts a plain coercion function to the Converter
// interface; nil raw values stay nil.
type funcConverter struct {
	from func(raw any) (any, error)
	to   func(value any) (any, error)
}

func (c funcConverter) FromWire(row Row, column string) (any, error) {
	raw, err := row.GetRaw(column)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	v, err := c.from(raw)
	if err != nil {
		return nil, &ConvertError{Column: column, Err: err}
	}
	return v, nil
}

func (c funcConverter) ToWire(value any) (any, error) {
	if value == nil || c.to == nil {
		return value, nil
	}
	return c.to(value)
}

func (r *Registry) registerBuiltins() {
	register[string](r, coerceString)
	register[bool](r, coerceBool)
	register[float64](r, func(raw any) (float64, error) { return coerceFloat(raw) })
	register[float32](r, func(raw any) (float32, error) {
		f, err := coerceFloat(raw)
		return float32(f), err
	})
	registerInt[int](r)
	registerInt[int8](r)
	registerInt[int16](r)
	registerInt[int32](r)
	registerInt[int64](r)
	registerUint[uint](r)
	registerUint[uint8](r)
	registerUint[uint16](r)
	registerUint[uint32](r)
	registerUint[uint64](r)
	register[time.Time](r, coerceTime)
	register[[]byte](r, coerceBytes)
	// UUIDs travel as text so database/sql can bind them.
	r.Register(reflect.TypeOf(uuid.UUID{}), WireUnknown, funcConverter{
		from: func(raw any) (any, error) { return coerceUUID(raw) },
		to: func(value any) (any, error) {
			u, err := coerceUUID(value)
			if err != nil {
				return nil, err
			}
			return u.String(), nil
		},
	})
}

func register[T any](r *Registry, from func(raw any) (T, error)) {
	var zero T
	r.Register(reflect.TypeOf(zero), WireUnknown, funcConverter{
		from: func(raw any) (any, error) { return from(raw) },
	})
}

func registerInt[T ~int | ~int8 | ~int16 | ~int32 | ~int64](r *Registry) {
	register[T](r, func(raw any) (T, error) {
		n, err := coerceInt(raw)
		return T(n), err
	})
}

func registerUint[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](r *Registry) {
	register[T](r, func(raw any) (T, error) {
		n, err := coerceInt(raw)
		return T(n), err
	})
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	case []byte:
		return strconv.ParseBool(string(v))
	default:
		return false, fmt.Errorf("cannot convert %T to bool", raw)
	}
}

func coerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", raw)
	}
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", raw)
	}
}

func coerceTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTimeString(v)
	case []byte:
		return parseTimeString(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", raw)
	}
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time literal %q", s)
}

func coerceBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", raw)
	}
}

func coerceUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.Parse(string(v))
	default:
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid.UUID", raw)
	}
}
