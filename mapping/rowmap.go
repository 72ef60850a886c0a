package mapping

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/remap/typeconv"
)

// AutoOverride adjusts the engine-wide automapping behavior for one row
// map.
type AutoOverride int

const (
	// AutoDefault defers to the engine setting.
	AutoDefault AutoOverride = iota
	// AutoAlways automaps this row map even when the engine setting
	// would skip it.
	AutoAlways
	// AutoNever disables automapping for this row map.
	AutoNever
)

// PropertyMap routes one column (or one correlated source) to one target
// property. Exactly one of the source forms applies: a plain column, a
// composite column list, a nested row map, a nested statement, or a
// foreign cursor.
type PropertyMap struct {
	Property      string
	Column        string
	WireType      typeconv.WireType
	ConverterName string

	// Composites carries column sub-mappings handed to a nested row map
	// or nested statement as its argument.
	Composites []*PropertyMap

	// NestedMapID joins this property to another row map over the same
	// row, reading its columns through ColumnPrefix.
	NestedMapID  string
	ColumnPrefix string

	// NestedQueryID executes another statement to produce the value,
	// eagerly or deferred behind Lazy.
	NestedQueryID string
	Lazy          bool

	// ForeignResultSet names a later cursor of the same execution;
	// Columns and ForeignColumns pair up positionally to correlate
	// parent and child rows.
	ForeignResultSet string
	ForeignColumns   []string
	Columns          []string

	// NotNullColumns gates nested instantiation: the nested object is
	// only built when at least one of these columns is non-null.
	NotNullColumns []string
}

// Nested reports whether the property joins to another row map over the
// same row.
func (p *PropertyMap) Nested() bool { return p.NestedMapID != "" }

// Query reports whether the property is produced by a separate statement.
func (p *PropertyMap) Query() bool { return p.NestedQueryID != "" }

// Foreign reports whether the property is filled from a later cursor.
func (p *PropertyMap) Foreign() bool { return p.ForeignResultSet != "" }

// Simple reports whether the property reads a plain column of this row.
func (p *PropertyMap) Simple() bool {
	return !p.Nested() && !p.Query() && !p.Foreign()
}

// equivalent compares the routing-relevant fields of two property maps.
func (p *PropertyMap) equivalent(o *PropertyMap) bool {
	return p.Property == o.Property &&
		p.Column == o.Column &&
		p.NestedMapID == o.NestedMapID &&
		p.NestedQueryID == o.NestedQueryID &&
		p.ForeignResultSet == o.ForeignResultSet
}

// Discriminator dispatches a row to an alternate row map based on one
// column's value.
type Discriminator struct {
	Column   string
	WireType typeconv.WireType
	Cases    map[string]string
}

// Target resolves a column value to a row map id. Values compare by their
// string form.
func (d *Discriminator) Target(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	id, ok := d.Cases[fmt.Sprintf("%v", value)]
	return id, ok
}

// RowMap declares how one row becomes one object of Type.
type RowMap struct {
	ID   string
	Type reflect.Type

	// IDProps are the identity columns; when present they alone decide
	// row identity.
	IDProps []*PropertyMap

	// CtorProps feed the target's constructor positionally instead of
	// being set after instantiation.
	CtorProps []*PropertyMap

	Props []*PropertyMap

	Discriminator *Discriminator
	Auto          AutoOverride
}

// Validate checks structural consistency at registration time.
func (m *RowMap) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("mapping: row map without id")
	}
	if m.Type == nil {
		return fmt.Errorf("mapping: row map %q has no target type", m.ID)
	}
	for _, p := range m.allProps() {
		if p.Foreign() {
			if len(p.Columns) != len(p.ForeignColumns) {
				return fmt.Errorf("mapping: row map %q property %q: column list and foreign column list differ in length", m.ID, p.Property)
			}
			// A foreign property names the child cursor's row map through
			// NestedMapID and correlates through Columns/ForeignColumns.
			if p.Query() || p.Column != "" || len(p.Composites) > 0 {
				return fmt.Errorf("mapping: row map %q property %q declares conflicting sources", m.ID, p.Property)
			}
		}
		// Column and Composites pair with a nested query or nested map:
		// they name the correlation values handed over as its argument.
		if p.Query() && p.Nested() {
			return fmt.Errorf("mapping: row map %q property %q declares conflicting sources", m.ID, p.Property)
		}
	}
	return nil
}

// HasNested reports whether any property joins to another row map on the
// same row. It decides between the flat and graph materialization paths.
func (m *RowMap) HasNested() bool {
	for _, p := range m.allProps() {
		if p.Nested() {
			return true
		}
	}
	return false
}

func (m *RowMap) allProps() []*PropertyMap {
	all := make([]*PropertyMap, 0, len(m.IDProps)+len(m.CtorProps)+len(m.Props))
	all = append(all, m.IDProps...)
	all = append(all, m.CtorProps...)
	all = append(all, m.Props...)
	return all
}

// MappedProps returns identity and plain properties, identity first.
// Constructor properties are excluded since they are consumed at
// instantiation time.
func (m *RowMap) MappedProps() []*PropertyMap {
	all := make([]*PropertyMap, 0, len(m.IDProps)+len(m.Props))
	all = append(all, m.IDProps...)
	all = append(all, m.Props...)
	return all
}

// MappedColumns collects the explicitly claimed column names, uppercased,
// under the given prefix. Automapping consults it to skip claimed
// columns.
func (m *RowMap) MappedColumns(prefix string) map[string]struct{} {
	out := make(map[string]struct{})
	add := func(col string) {
		if col != "" {
			out[upper(prefix+col)] = struct{}{}
		}
	}
	for _, p := range m.allProps() {
		add(p.Column)
		for _, c := range p.Composites {
			add(c.Column)
		}
		for _, c := range p.Columns {
			add(c)
		}
	}
	if m.Discriminator != nil {
		add(m.Discriminator.Column)
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
