package accessor

import (
	"fmt"
	"reflect"
	"sync"
)

// metaCache holds one Meta per struct type. Built lazily, never evicted:
// the set of mapped types is small and fixed for the life of a process.
var metaCache = sync.Map{} // map[reflect.Type]*Meta

// Meta is the pre-computed reflection metadata for one struct type.
type Meta struct {
	Type           reflect.Type
	Name           string
	DefaultMapName string
	Fields         []*FieldMeta
	FieldMap       map[string]*FieldMeta // Go field name -> FieldMeta
	ColumnMap      map[string]*FieldMeta // normalized column name -> FieldMeta
}

// FieldMeta describes one exported struct field.
type FieldMeta struct {
	Name   string
	Column string // explicit db tag or snake_case of the field name
	Type   reflect.Type
	Index  []int
}

// MetaOf returns cached metadata for a struct type, dereferencing pointers.
func MetaOf(t reflect.Type) (*Meta, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("accessor: invalid target type %s (expected struct)", t.Kind())
	}
	if cached, ok := metaCache.Load(t); ok {
		return cached.(*Meta), nil
	}
	meta, err := buildMeta(t)
	if err != nil {
		return nil, err
	}
	metaCache.Store(t, meta)
	return meta, nil
}

func buildMeta(t reflect.Type) (*Meta, error) {
	numFields := t.NumField()
	meta := &Meta{
		Type:           t,
		Name:           t.Name(),
		DefaultMapName: DefaultMapName(t.Name()),
		Fields:         make([]*FieldMeta, 0, numFields),
		FieldMap:       make(map[string]*FieldMeta, numFields),
		ColumnMap:      make(map[string]*FieldMeta, numFields),
	}
	for i := 0; i < numFields; i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			// Embedded structs contribute their fields at this level, even
			// when the embedded type itself is unexported.
			embedded, err := buildMeta(f.Type)
			if err != nil {
				return nil, err
			}
			for _, ef := range embedded.Fields {
				fm := &FieldMeta{
					Name:   ef.Name,
					Column: ef.Column,
					Type:   ef.Type,
					Index:  append([]int{i}, ef.Index...),
				}
				addField(meta, fm)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		column := f.Tag.Get("db")
		if column == "-" {
			continue
		}
		if column == "" {
			column = ToSnakeCase(f.Name)
		}
		addField(meta, &FieldMeta{
			Name:   f.Name,
			Column: column,
			Type:   f.Type,
			Index:  f.Index,
		})
	}
	return meta, nil
}

func addField(meta *Meta, fm *FieldMeta) {
	if _, dup := meta.FieldMap[fm.Name]; dup {
		// Outer fields shadow embedded ones.
		return
	}
	meta.Fields = append(meta.Fields, fm)
	meta.FieldMap[fm.Name] = fm
	meta.ColumnMap[NormalizeName(fm.Column, false)] = fm
}

// FindProperty matches a column name to a Go field name, case-insensitively
// and optionally underscore-insensitively. Returns the field name.
func (m *Meta) FindProperty(columnName string, underscoreInsensitive bool) (string, bool) {
	want := NormalizeName(columnName, underscoreInsensitive)
	for _, fm := range m.Fields {
		if NormalizeName(fm.Column, underscoreInsensitive) == want {
			return fm.Name, true
		}
		if NormalizeName(fm.Name, underscoreInsensitive) == want {
			return fm.Name, true
		}
	}
	return "", false
}
