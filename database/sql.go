package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SqlDatabase adapts *sql.DB to the Database boundary.
type SqlDatabase struct {
	db *sql.DB
}

func NewSqlDatabase(db *sql.DB) *SqlDatabase {
	return &SqlDatabase{db: db}
}

func (s *SqlDatabase) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newSqlRows(rows)
}

func (s *SqlDatabase) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SqlDatabase) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SqlDatabase) Close() error { return s.db.Close() }

// SqlRows adapts *sql.Rows. Each advance scans the full row into a
// per-column buffer so values can be fetched by name in any order.
type SqlRows struct {
	rows    *sql.Rows
	columns []Column
	index   map[string]int
	values  []any
	scanned bool
}

func newSqlRows(rows *sql.Rows) (*SqlRows, error) {
	r := &SqlRows{rows: rows}
	if err := r.loadColumns(); err != nil {
		rows.Close()
		return nil, err
	}
	return r, nil
}

func (r *SqlRows) loadColumns() error {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return err
	}
	r.columns = make([]Column, len(types))
	r.index = make(map[string]int, len(types))
	r.values = make([]any, len(types))
	for i, ct := range types {
		r.columns[i] = Column{
			Name:     ct.Name(),
			WireType: wireTypeOf(ct.DatabaseTypeName()),
			TypeName: ct.DatabaseTypeName(),
		}
		r.index[strings.ToUpper(ct.Name())] = i
	}
	return nil
}

func (r *SqlRows) Columns() ([]Column, error) { return r.columns, nil }

func (r *SqlRows) Next() bool {
	if !r.rows.Next() {
		return false
	}
	targets := make([]any, len(r.values))
	for i := range r.values {
		targets[i] = &r.values[i]
	}
	if err := r.rows.Scan(targets...); err != nil {
		return false
	}
	r.scanned = true
	return true
}

func (r *SqlRows) GetRaw(column string) (any, error) {
	if !r.scanned {
		return nil, fmt.Errorf("database: GetRaw before Next")
	}
	i, ok := r.index[strings.ToUpper(column)]
	if !ok {
		return nil, fmt.Errorf("database: no column %q", column)
	}
	return r.values[i], nil
}

func (r *SqlRows) NextResultSet() bool {
	if !r.rows.NextResultSet() {
		return false
	}
	r.scanned = false
	if err := r.loadColumns(); err != nil {
		return false
	}
	return true
}

func (r *SqlRows) Err() error { return r.rows.Err() }

func (r *SqlRows) Close() error { return r.rows.Close() }

var _ Database = (*SqlDatabase)(nil)
var _ Rows = (*SqlRows)(nil)
