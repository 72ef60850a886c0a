package graph

import (
	"strings"

	"github.com/Konsultn-Engineering/remap/database"
	"github.com/Konsultn-Engineering/remap/typeconv"
)

// rowReader wraps one cursor with column metadata lookups. Column names
// compare case-insensitively throughout.
type rowReader struct {
	rows    database.Rows
	columns []database.Column
	byName  map[string]database.Column
}

func newRowReader(rows database.Rows) (*rowReader, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	r := &rowReader{
		rows:    rows,
		columns: columns,
		byName:  make(map[string]database.Column, len(columns)),
	}
	for _, c := range columns {
		r.byName[strings.ToUpper(c.Name)] = c
	}
	return r, nil
}

func (r *rowReader) has(column string) bool {
	_, ok := r.byName[strings.ToUpper(column)]
	return ok
}

func (r *rowReader) wireType(column string) typeconv.WireType {
	if c, ok := r.byName[strings.ToUpper(column)]; ok {
		return c.WireType
	}
	return typeconv.WireUnknown
}

func (r *rowReader) raw(column string) (any, error) {
	return r.rows.GetRaw(column)
}

// value fetches and converts one column of the current row.
func (r *rowReader) value(column string, conv typeconv.Converter) (any, error) {
	v, err := conv.FromWire(r.rows, column)
	if err != nil {
		return nil, &typeconv.ConvertError{Column: column, Err: err}
	}
	return v, nil
}

// prefixed returns the physical column name for a logical name under a
// column prefix. An empty logical name stays empty.
func prefixed(prefix, column string) string {
	if column == "" || prefix == "" {
		return column
	}
	return prefix + column
}
