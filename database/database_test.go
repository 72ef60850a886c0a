package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/remap/typeconv"
)

// ============================================================================
// Wire type resolution
// ============================================================================

func TestWireTypeOf(t *testing.T) {
	tests := []struct {
		typeName string
		want     typeconv.WireType
	}{
		{"VARCHAR", typeconv.WireVarchar},
		{"text", typeconv.WireVarchar},
		{"INT4", typeconv.WireInteger},
		{"int8", typeconv.WireBigint},
		{"FLOAT8", typeconv.WireDouble},
		{"NUMERIC", typeconv.WireNumeric},
		{"bool", typeconv.WireBoolean},
		{"TIMESTAMPTZ", typeconv.WireTimestamp},
		{"geometry", typeconv.WireUnknown},
		{"", typeconv.WireUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wireTypeOf(tt.typeName), tt.typeName)
	}
}

// ============================================================================
// database/sql adapter
// ============================================================================

func TestSqlRowsByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"))

	d := NewSqlDatabase(db)
	rows, err := d.Query(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)

	// Fetching before the first advance is an error.
	_, err = rows.GetRaw("id")
	assert.Error(t, err)

	require.True(t, rows.Next())
	name, err := rows.GetRaw("NAME")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)
	id, err := rows.GetRaw("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = rows.GetRaw("missing")
	assert.Error(t, err)

	assert.False(t, rows.Next())
	assert.NoError(t, rows.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// pgx adapter
// ============================================================================

func TestPgxDatabaseFallbackTypeMap(t *testing.T) {
	d := NewPgxDatabase(nil)
	require.NotNil(t, d.typeMap)
	typ, ok := d.typeMap.TypeForOID(pgtype.TextOID)
	require.True(t, ok)
	assert.Equal(t, "text", typ.Name)
}
