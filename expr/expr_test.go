package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Age  int
	Tags []string
}

type account struct {
	Name    string
	Active  bool
	Profile *profile
}

func testBinding() ObjectBinding {
	return ObjectBinding{
		Root: &account{
			Name:    "ada",
			Active:  true,
			Profile: &profile{Age: 36, Tags: []string{"admin", "ops"}},
		},
		Overlay: map[string]any{"limit": 10},
	}
}

// ============================================================================
// Evaluation
// ============================================================================

func TestEval(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"string literal", "'hello'", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"int literal", "42", int64(42)},
		{"negative int", "-7", int64(-7)},
		{"float literal", "2.5", 2.5},
		{"bool literal", "true", true},
		{"nil literal", "nil", nil},
		{"property", "Name", "ada"},
		{"nested property", "Profile.Age", 36},
		{"indexed property", "Profile.Tags[1]", "ops"},
		{"overlay wins", "limit", 10},
		{"equality", "Name == 'ada'", true},
		{"inequality", "Name != 'ada'", false},
		{"nil comparison", "Profile != nil", true},
		{"numeric order", "Profile.Age >= 18", true},
		{"mixed numeric widths", "limit < 10.5", true},
		{"string order", "Name < 'bob'", true},
		{"and", "Active && Profile.Age > 30", true},
		{"and words", "Active and Profile.Age > 30", true},
		{"or short circuit", "Active || missing > 1", true},
		{"not", "!Active", false},
		{"not word", "not Active", false},
		{"parens", "(Profile.Age > 40 || Active) && true", true},
		{"absent name is nil", "missing", nil},
		{"absent name nil guard", "missing != nil", false},
		{"absent name equals nil", "missing == nil", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.input, testBinding())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", "'oops"},
		{"trailing input", "1 2"},
		{"bad operator", "a = b"},
		{"unclosed paren", "(Active"},
		{"incomparable order", "Name < 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.input, testBinding())
			require.Error(t, err)
			var evalErr *EvalError
			assert.True(t, errors.As(err, &evalErr))
		})
	}
}

func TestEvalBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Profile.Age", true},
		{"0", false},
		{"''", true},
		{"nil", false},
		{"Profile", true},
	}
	for _, tt := range tests {
		got, err := EvalBool(tt.input, testBinding())
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

// ============================================================================
// Iteration
// ============================================================================

func TestEvalIterable(t *testing.T) {
	items, err := EvalIterable("Profile.Tags", testBinding())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Key)
	assert.Equal(t, "admin", items[0].Value)
	assert.Equal(t, 1, items[1].Key)
	assert.Equal(t, "ops", items[1].Value)
}

func TestEvalIterableMap(t *testing.T) {
	binding := MapBinding{"scores": map[string]int{"a": 1}}
	items, err := EvalIterable("scores", binding)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Key)
	assert.Equal(t, 1, items[0].Value)
}

func TestEvalIterableNil(t *testing.T) {
	binding := MapBinding{"ids": nil}
	_, err := EvalIterable("ids", binding)
	var nilErr *NilValueError
	require.True(t, errors.As(err, &nilErr), "nil collection must be distinguishable from failure")
}

func TestEvalIterableScalar(t *testing.T) {
	_, err := EvalIterable("Profile.Age", testBinding())
	require.Error(t, err)
	var nilErr *NilValueError
	assert.False(t, errors.As(err, &nilErr))
}

// ============================================================================
// Truthiness
// ============================================================================

func TestTruthy(t *testing.T) {
	var nilSlice []int
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"zero int", 0, false},
		{"non-zero int", -1, true},
		{"zero float", 0.0, false},
		{"empty string", "", true},
		{"nil slice", nilSlice, false},
		{"populated slice", []int{1}, true},
		{"struct", profile{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}
