package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxDatabase adapts a pgxpool.Pool to the Database boundary.
type PgxDatabase struct {
	pool *pgxpool.Pool
	// typeMap resolves OIDs when the rows carry no live connection.
	typeMap *pgtype.Map
}

func NewPgxDatabase(pool *pgxpool.Pool) *PgxDatabase {
	return &PgxDatabase{pool: pool, typeMap: pgtype.NewMap()}
}

func (p *PgxDatabase) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	typeMap := p.typeMap
	if conn := rows.Conn(); conn != nil {
		typeMap = conn.TypeMap()
	}
	return newPgxRows(rows, typeMap), nil
}

func (p *PgxDatabase) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &PgxResult{tag: tag}, nil
}

func (p *PgxDatabase) PingContext(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PgxDatabase) Close() error {
	p.pool.Close()
	return nil
}

// PgxRows adapts pgx.Rows. Values are decoded once per advance and served
// by name.
type PgxRows struct {
	rows    pgx.Rows
	typeMap *pgtype.Map
	columns []Column
	index   map[string]int
	values  []any
	scanned bool
}

func newPgxRows(rows pgx.Rows, typeMap *pgtype.Map) *PgxRows {
	fds := rows.FieldDescriptions()
	r := &PgxRows{
		rows:    rows,
		typeMap: typeMap,
		columns: make([]Column, len(fds)),
		index:   make(map[string]int, len(fds)),
	}
	for i, fd := range fds {
		typeName := ""
		if typeMap != nil {
			if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
				typeName = t.Name
			}
		}
		r.columns[i] = Column{
			Name:     fd.Name,
			WireType: wireTypeOf(typeName),
			TypeName: typeName,
		}
		r.index[strings.ToUpper(fd.Name)] = i
	}
	return r
}

func (r *PgxRows) Columns() ([]Column, error) { return r.columns, nil }

func (r *PgxRows) Next() bool {
	if !r.rows.Next() {
		return false
	}
	values, err := r.rows.Values()
	if err != nil {
		return false
	}
	r.values = values
	r.scanned = true
	return true
}

func (r *PgxRows) GetRaw(column string) (any, error) {
	if !r.scanned {
		return nil, fmt.Errorf("database: GetRaw before Next")
	}
	i, ok := r.index[strings.ToUpper(column)]
	if !ok {
		return nil, fmt.Errorf("database: no column %q", column)
	}
	return r.values[i], nil
}

// NextResultSet always reports false: the pgx query path yields a single
// result set per call.
func (r *PgxRows) NextResultSet() bool { return false }

func (r *PgxRows) Err() error { return r.rows.Err() }

func (r *PgxRows) Close() error {
	r.rows.Close()
	return nil
}

// PgxResult adapts a command tag.
type PgxResult struct {
	tag pgconn.CommandTag
}

func (r *PgxResult) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("database: LastInsertId is not supported by the postgres wire protocol")
}

func (r *PgxResult) RowsAffected() (int64, error) { return r.tag.RowsAffected(), nil }

var _ Database = (*PgxDatabase)(nil)
var _ Rows = (*PgxRows)(nil)
