package database

import (
	"context"
	"strings"

	"github.com/Konsultn-Engineering/remap/typeconv"
)

// Column describes one column of a cursor.
type Column struct {
	Name     string
	WireType typeconv.WireType
	TypeName string
}

// Rows is a pull-based cursor over one or more result sets. GetRaw
// addresses the current row by column name, case-insensitively.
type Rows interface {
	Columns() ([]Column, error)
	Next() bool
	GetRaw(column string) (any, error)
	NextResultSet() bool
	Err() error
	Close() error
}

// Result reports the outcome of a statement that returns no rows.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Database is the driver boundary: execute text with positional values.
type Database interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	PingContext(ctx context.Context) error
	Close() error
}

// wireTypeOf maps a driver-reported type name to a wire type. Unknown
// names fall through to WireUnknown so converters get the raw value.
func wireTypeOf(typeName string) typeconv.WireType {
	switch strings.ToUpper(typeName) {
	case "VARCHAR", "TEXT", "CHAR", "BPCHAR", "NVARCHAR", "NAME":
		return typeconv.WireVarchar
	case "INT2", "INT4", "INT", "INTEGER", "SERIAL", "SMALLINT", "MEDIUMINT", "TINYINT":
		return typeconv.WireInteger
	case "INT8", "BIGINT", "BIGSERIAL":
		return typeconv.WireBigint
	case "FLOAT4", "FLOAT8", "FLOAT", "DOUBLE", "REAL", "DOUBLE PRECISION":
		return typeconv.WireDouble
	case "NUMERIC", "DECIMAL", "MONEY":
		return typeconv.WireNumeric
	case "BOOL", "BOOLEAN", "BIT":
		return typeconv.WireBoolean
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "TIME", "TIMETZ":
		return typeconv.WireTimestamp
	case "DATE":
		return typeconv.WireDate
	case "BYTEA", "BLOB", "BINARY", "VARBINARY":
		return typeconv.WireBytea
	case "UUID":
		return typeconv.WireUUID
	case "REFCURSOR":
		return typeconv.WireCursor
	default:
		return typeconv.WireUnknown
	}
}
