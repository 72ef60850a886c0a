package typeconv

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow map[string]any

func (r fakeRow) GetRaw(column string) (any, error) { return r[column], nil }

func fromWire(t *testing.T, r *Registry, target any, row fakeRow, column string) any {
	t.Helper()
	conv := r.Lookup(reflect.TypeOf(target), WireUnknown)
	require.NotNil(t, conv)
	v, err := conv.FromWire(row, column)
	require.NoError(t, err)
	return v
}

// ============================================================================
// Lookup
// ============================================================================

func TestLookup(t *testing.T) {
	r := NewRegistry()

	assert.NotNil(t, r.Lookup(reflect.TypeOf(""), WireVarchar), "wire-specific lookup falls back to the unknown registration")
	assert.NotNil(t, r.Lookup(reflect.TypeOf((*int)(nil)), WireUnknown), "pointer types resolve through their element")
	assert.Nil(t, r.Lookup(reflect.TypeOf(struct{}{}), WireUnknown))
	assert.Nil(t, r.Lookup(nil, WireUnknown))

	assert.True(t, r.Has(reflect.TypeOf(time.Time{})))
	assert.False(t, r.Has(reflect.TypeOf(struct{}{})))
}

func TestRegisterWireSpecific(t *testing.T) {
	r := NewRegistry()
	special := funcConverter{from: func(raw any) (any, error) { return "wired", nil }}
	r.Register(reflect.TypeOf(""), WireBytea, special)

	v, err := r.Lookup(reflect.TypeOf(""), WireBytea).FromWire(fakeRow{"c": "x"}, "c")
	require.NoError(t, err)
	assert.Equal(t, "wired", v)

	// Other wire types still use the general registration.
	v, err = r.Lookup(reflect.TypeOf(""), WireVarchar).FromWire(fakeRow{"c": "x"}, "c")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestNamed(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Named("shout")
	assert.False(t, ok)

	r.RegisterNamed("shout", funcConverter{from: func(raw any) (any, error) { return "HI", nil }})
	c, ok := r.Named("shout")
	require.True(t, ok)
	v, err := c.FromWire(fakeRow{"c": "hi"}, "c")
	require.NoError(t, err)
	assert.Equal(t, "HI", v)
}

// ============================================================================
// Builtin coercions
// ============================================================================

func TestBuiltinConversions(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	when := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		target any
		raw    any
		want   any
	}{
		{"string from string", "", "hello", "hello"},
		{"string from bytes", "", []byte("hello"), "hello"},
		{"int from int64", int(0), int64(9), int(9)},
		{"int64 from string", int64(0), "12", int64(12)},
		{"int32 narrows", int32(0), int64(7), int32(7)},
		{"float from int", float64(0), int64(3), 3.0},
		{"bool from int64", false, int64(1), true},
		{"bool from string", false, "true", true},
		{"time passthrough", time.Time{}, when, when},
		{"time from unix", time.Time{}, when.Unix(), when},
		{"bytes from string", []byte(nil), "raw", []byte("raw")},
		{"uuid from string", uuid.UUID{}, id.String(), id},
		{"uuid from bytes", uuid.UUID{}, id[:], id},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromWire(t, r, tt.target, fakeRow{"c": tt.raw}, "c")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeFromString(t *testing.T) {
	r := NewRegistry()
	got := fromWire(t, r, time.Time{}, fakeRow{"c": "2024-05-01 12:30:00"}, "c")
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), got)

	got = fromWire(t, r, time.Time{}, fakeRow{"c": "2024-05-01"}, "c")
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNullStaysNil(t *testing.T) {
	r := NewRegistry()
	conv := r.Lookup(reflect.TypeOf(0), WireUnknown)
	v, err := conv.FromWire(fakeRow{}, "c")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestConvertError(t *testing.T) {
	r := NewRegistry()
	conv := r.Lookup(reflect.TypeOf(0), WireUnknown)
	_, err := conv.FromWire(fakeRow{"age": "not a number"}, "age")
	require.Error(t, err)

	var convErr *ConvertError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "age", convErr.Column)
}

func TestUUIDToWire(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	conv := r.Lookup(reflect.TypeOf(uuid.UUID{}), WireUnknown)

	v, err := conv.ToWire(id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), v, "uuids bind as text")

	v, err = conv.ToWire(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

// ============================================================================
// Wire types
// ============================================================================

func TestParseWireType(t *testing.T) {
	wt, err := ParseWireType("integer")
	require.NoError(t, err)
	assert.Equal(t, WireInteger, wt)

	wt, err = ParseWireType(" BIGINT ")
	require.NoError(t, err)
	assert.Equal(t, WireBigint, wt)

	_, err = ParseWireType("BLURB")
	require.Error(t, err)
}

func TestWireTypeString(t *testing.T) {
	assert.Equal(t, "NUMERIC", WireNumeric.String())
	assert.Equal(t, "WireType(99)", WireType(99).String())
}
