// Package statement turns rendered template text into an executable bound
// statement: each #{} parameter marker becomes one ordered bind descriptor
// and one positional placeholder in the final SQL.
package statement

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/typeconv"
)

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	cursorType = reflect.TypeOf((*typeconv.Row)(nil)).Elem()
)

// valueTypeNames resolves the valueType marker attribute. Go has no
// runtime class lookup, so the attribute supports a fixed vocabulary.
var valueTypeNames = map[string]reflect.Type{
	"string":    reflect.TypeOf(""),
	"int":       reflect.TypeOf(int(0)),
	"int32":     reflect.TypeOf(int32(0)),
	"int64":     reflect.TypeOf(int64(0)),
	"float32":   reflect.TypeOf(float32(0)),
	"float64":   reflect.TypeOf(float64(0)),
	"bool":      reflect.TypeOf(false),
	"time.Time": reflect.TypeOf(time.Time{}),
	"[]byte":    reflect.TypeOf([]byte(nil)),
	"uuid.UUID": reflect.TypeOf(uuid.UUID{}),
	"any":       anyType,
}

// Placeholder emits the driver's positional placeholder for the n-th
// parameter (0-based).
type Placeholder func(n int) string

// QuestionPlaceholder is the database/sql default style.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is the Postgres numbered style used by pgx.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n+1) }

// Builder resolves #{} markers against an argument type and a converter
// registry. Safe for reuse across statements.
type Builder struct {
	registry    *typeconv.Registry
	placeholder Placeholder
}

func NewBuilder(registry *typeconv.Registry, placeholder Placeholder) *Builder {
	if placeholder == nil {
		placeholder = QuestionPlaceholder
	}
	return &Builder{registry: registry, placeholder: placeholder}
}

// Build scans rendered text for #{} markers, emits descriptors in order of
// appearance, and replaces each marker with a positional placeholder.
// extra holds the synthetic bindings produced during rendering.
func (b *Builder) Build(sql string, arg any, extra map[string]any) (*BoundStatement, error) {
	bound := &BoundStatement{Arg: arg, Extra: extra}
	argType := anyType
	if arg != nil {
		argType = reflect.TypeOf(arg)
	}
	parser := NewTokenParser("#{", "}", func(content string) (string, error) {
		desc, err := b.buildDescriptor(content, argType, extra)
		if err != nil {
			return "", err
		}
		bound.Params = append(bound.Params, *desc)
		return b.placeholder(len(bound.Params) - 1), nil
	})
	text, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	bound.SQL = text
	return bound, nil
}

func (b *Builder) buildDescriptor(content string, argType reflect.Type, extra map[string]any) (*ParamDescriptor, error) {
	attrs, err := parseParamExpression(content)
	if err != nil {
		return nil, err
	}
	if _, has := attrs["expression"]; has {
		return nil, fmt.Errorf("expression-based parameters are not supported; use a property path in #{%s}", content)
	}
	property := attrs["property"]

	desc := &ParamDescriptor{Property: property}
	desc.ValueType = b.resolveValueType(property, argType, extra, attrs)

	var converterName string
	for name, value := range attrs {
		switch name {
		case "property":
		case "valueType":
			t, ok := valueTypeNames[value]
			if !ok {
				return nil, fmt.Errorf("unknown valueType %q in #{%s}", value, content)
			}
			desc.ValueType = t
		case "wireType":
			wt, err := typeconv.ParseWireType(value)
			if err != nil {
				return nil, fmt.Errorf("in #{%s}: %w", content, err)
			}
			desc.WireType = wt
		case "wireTypeName":
			desc.WireTypeName = value
		case "mode":
			mode, err := parseParamMode(value)
			if err != nil {
				return nil, fmt.Errorf("in #{%s}: %w", content, err)
			}
			desc.Mode = mode
		case "numericScale":
			scale, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("bad numericScale %q in #{%s}", value, content)
			}
			desc.NumericScale = scale
			desc.HasScale = true
		case "resultMap":
			desc.ResultMapID = value
		case "typeConverter":
			converterName = value
		default:
			return nil, fmt.Errorf("invalid attribute %q in #{%s}; valid attributes are valueType, wireType, mode, numericScale, resultMap, typeConverter, wireTypeName", name, content)
		}
	}
	if converterName != "" {
		c, ok := b.registry.Named(converterName)
		if !ok {
			return nil, fmt.Errorf("unknown typeConverter %q in #{%s}", converterName, content)
		}
		desc.Converter = c
	} else {
		desc.Converter = b.registry.Lookup(desc.ValueType, desc.WireType)
		if desc.Converter == nil {
			desc.Converter = b.registry.Unknown()
		}
	}
	return desc, nil
}

// resolveValueType applies the spec's priority order for a marker's value
// type: synthetic binding runtime type, whole-argument converter type,
// cursor indicator, generic bag fallback, declared property type.
func (b *Builder) resolveValueType(property string, argType reflect.Type, extra map[string]any, attrs map[string]string) reflect.Type {
	if v, ok := extra[property]; ok && property != "" {
		if v == nil {
			return anyType
		}
		return reflect.TypeOf(v)
	}
	// A path rooted at a synthetic binding resolves against the bound
	// value, not the argument.
	if head, rest, dotted := strings.Cut(property, "."); dotted {
		if root, ok := extra[head]; ok {
			if root == nil {
				return anyType
			}
			if t, ok := accessor.TypeOfProperty(reflect.TypeOf(root), rest); ok {
				return t
			}
			return anyType
		}
	}
	if b.registry.Has(argType) {
		return argType
	}
	if wt, err := typeconv.ParseWireType(attrs["wireType"]); err == nil && wt == typeconv.WireCursor {
		return cursorType
	}
	if property == "" || argType == anyType || accessor.IsMapTarget(argType) {
		return anyType
	}
	if t, ok := accessor.TypeOfProperty(argType, property); ok {
		return t
	}
	return anyType
}

// Values resolves the runtime value of every in-bound parameter, in
// descriptor order, converting each through its resolved converter.
func (s *BoundStatement) Values() ([]any, error) {
	out := make([]any, 0, len(s.Params))
	for i, p := range s.Params {
		if p.Mode == ModeOut {
			out = append(out, nil)
			continue
		}
		value, err := s.resolve(p.Property)
		if err != nil {
			return nil, fmt.Errorf("statement: parameter %d (%s): %w", i, p.Property, err)
		}
		if p.Converter != nil && value != nil {
			converted, err := p.Converter.ToWire(value)
			if err != nil {
				return nil, fmt.Errorf("statement: parameter %d (%s): %w", i, p.Property, err)
			}
			value = converted
		}
		out = append(out, value)
	}
	return out, nil
}

// resolve looks a parameter's property up: synthetic bindings win, first
// by full path, then by the path's head with the remainder navigated on
// the bound value. Everything else navigates the statement argument.
func (s *BoundStatement) resolve(property string) (any, error) {
	if v, ok := s.Extra[property]; ok {
		return v, nil
	}
	if head, rest, dotted := strings.Cut(property, "."); dotted {
		if root, ok := s.Extra[head]; ok {
			if root == nil {
				return nil, nil
			}
			return accessor.Get(root, rest)
		}
	}
	if property == "" {
		return s.Arg, nil
	}
	if s.Arg == nil {
		return nil, nil
	}
	return accessor.Get(s.Arg, property)
}
