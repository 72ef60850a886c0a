package graph

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/mapping"
)

// createResultObject picks the instantiation path for one row of one row
// map, in order: whole-type converter, declared constructor mappings,
// registered-constructor matching, default instantiation. viaConverter
// reports the scalar-wrapper case where property application is skipped;
// viaCtor reports that constructor mappings consumed values.
func (p *pass) createResultObject(rm *mapping.RowMap, prefix string) (obj any, viaConverter, viaCtor bool, err error) {
	reg := p.m.reg

	if reg.Converters().Has(rm.Type) {
		obj, err = p.createScalarResult(rm, prefix)
		return obj, true, false, err
	}

	if len(rm.CtorProps) > 0 {
		obj, err = p.createByConstructorMappings(rm, prefix)
		return obj, false, true, err
	}

	ctors := reg.Constructors(rm.Type)
	if len(ctors) > 0 {
		obj, err = p.createByConstructorSignature(rm, ctors)
		return obj, false, true, err
	}

	obj, err = accessor.Instantiate(rm.Type)
	if err != nil {
		return nil, false, false, fmt.Errorf("graph: row map %q: %w", rm.ID, err)
	}
	return obj, false, false, nil
}

// createScalarResult converts a single column into the target value
// directly. The column is the first mapped one, else the cursor's first.
func (p *pass) createScalarResult(rm *mapping.RowMap, prefix string) (any, error) {
	column := ""
	for _, prop := range rm.MappedProps() {
		if prop.Simple() && prop.Column != "" {
			column = prefixed(prefix, prop.Column)
			break
		}
	}
	if column == "" && len(p.reader.columns) > 0 {
		column = p.reader.columns[0].Name
	}
	if column == "" {
		return nil, fmt.Errorf("graph: row map %q: no column to convert", rm.ID)
	}
	conv := p.m.reg.Converters().Lookup(rm.Type, p.reader.wireType(column))
	return p.reader.value(column, conv)
}

// createByConstructorMappings evaluates the declared constructor
// arguments and calls the matching registered constructor. All-null
// arguments yield no object.
func (p *pass) createByConstructorMappings(rm *mapping.RowMap, prefix string) (any, error) {
	args := make([]any, len(rm.CtorProps))
	found := false
	for i, prop := range rm.CtorProps {
		var value any
		var err error
		switch {
		case prop.Nested():
			nested, nerr := p.m.reg.RowMap(prop.NestedMapID)
			if nerr != nil {
				return nil, nerr
			}
			value, err = p.getRowValueSimple(nested, prefix+prop.ColumnPrefix)
		case prop.Query():
			var arg any
			arg, err = p.nestedQueryArg(prop, prefix)
			if err == nil && arg != nil {
				value, err = p.m.runner.RunNested(p.ctx, prop.NestedQueryID, arg, nil)
			}
		default:
			column := prefixed(prefix, prop.Column)
			if p.reader.has(column) {
				value, err = p.reader.value(column, p.m.converterFor(rm, prop, column, p.reader))
			}
		}
		if err != nil {
			return nil, fmt.Errorf("graph: row map %q constructor argument %d: %w", rm.ID, i, err)
		}
		if value != nil {
			found = true
		}
		args[i] = value
	}
	if !found {
		return nil, nil
	}
	ctor := p.pickConstructor(rm, len(rm.CtorProps))
	if ctor == nil {
		return nil, fmt.Errorf("graph: row map %q: no registered constructor for %s taking %d arguments", rm.ID, rm.Type, len(rm.CtorProps))
	}
	obj, err := ctor.Call(args)
	if err != nil {
		return nil, err
	}
	return addressable(obj), nil
}

// createByConstructorSignature matches row columns positionally against
// an eligible registered constructor: the sole one, else the one marked
// for automapping, else the first whose parameter count and types line up
// with the cursor's columns.
func (p *pass) createByConstructorSignature(rm *mapping.RowMap, ctors []*mapping.Constructor) (any, error) {
	var candidates []*mapping.Constructor
	switch {
	case len(ctors) == 1:
		candidates = ctors
	default:
		for _, c := range ctors {
			if c.Auto() {
				candidates = []*mapping.Constructor{c}
				break
			}
		}
		if candidates == nil {
			candidates = ctors
		}
	}
	for _, ctor := range candidates {
		params := ctor.ParamTypes()
		if len(params) != len(p.reader.columns) {
			continue
		}
		usable := true
		for _, pt := range params {
			if !p.m.reg.Converters().Has(pt) {
				usable = false
				break
			}
		}
		if !usable {
			continue
		}
		args := make([]any, len(params))
		found := false
		for i, pt := range params {
			col := p.reader.columns[i]
			conv := p.m.reg.Converters().Lookup(pt, col.WireType)
			value, err := p.reader.value(col.Name, conv)
			if err != nil {
				return nil, err
			}
			if value != nil {
				found = true
			}
			args[i] = value
		}
		if !found && !p.m.reg.Settings().MaterializeEmptyRows {
			return nil, nil
		}
		obj, err := ctor.Call(args)
		if err != nil {
			return nil, err
		}
		return addressable(obj), nil
	}
	return nil, fmt.Errorf("graph: row map %q: no constructor for %s matches the row's %d columns", rm.ID, rm.Type, len(p.reader.columns))
}

func (p *pass) pickConstructor(rm *mapping.RowMap, argc int) *mapping.Constructor {
	for _, c := range p.m.reg.Constructors(rm.Type) {
		if len(c.ParamTypes()) == argc {
			return c
		}
	}
	return nil
}

// addressable guarantees struct results are pointer handles so later
// property writes land on the same instance.
func addressable(obj any) any {
	if obj == nil {
		return nil
	}
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Struct {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.Interface()
	}
	return obj
}

// nilableType reports whether a nil assignment is meaningful for the
// type, used by the call-setters-on-nulls behavior.
func nilableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	default:
		return false
	}
}
