package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, AutoPartial, s.AutoMapping)
	assert.Equal(t, UnknownIgnore, s.UnknownColumns)
	assert.True(t, s.UnderscoreToCamel)
	assert.True(t, s.LazyLoading)
	assert.False(t, s.CallSettersOnNulls)
	assert.Equal(t, 256, s.StatementCacheSize)
	assert.Equal(t, 1024, s.QueryCacheSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"auto_mapping: full\nunknown_columns: warn\nlazy_loading: false\nstatement_cache_size: 32\n",
	), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AutoFull, s.AutoMapping)
	assert.Equal(t, UnknownWarn, s.UnknownColumns)
	assert.False(t, s.LazyLoading)
	assert.Equal(t, 32, s.StatementCacheSize)
	assert.Equal(t, 1024, s.QueryCacheSize, "unset fields keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_columns: warn\n"), 0o644))
	t.Setenv("REMAP_UNKNOWN_COLUMNS", "fail")
	t.Setenv("REMAP_CALL_SETTERS_ON_NULLS", "true")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, UnknownFail, s.UnknownColumns, "environment wins over the file")
	assert.True(t, s.CallSettersOnNulls)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadNoFile(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults pass", func(s *Settings) {}, false},
		{"empty enums normalize", func(s *Settings) { s.AutoMapping = ""; s.UnknownColumns = "" }, false},
		{"bad auto mapping", func(s *Settings) { s.AutoMapping = "sometimes" }, true},
		{"bad unknown columns", func(s *Settings) { s.UnknownColumns = "explode" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, s.AutoMapping)
			assert.NotEmpty(t, s.UnknownColumns)
		})
	}
}

func TestValidateNormalizesSizes(t *testing.T) {
	s := Settings{}
	require.NoError(t, s.Validate())
	assert.Equal(t, AutoPartial, s.AutoMapping)
	assert.Equal(t, UnknownIgnore, s.UnknownColumns)
	assert.Equal(t, 256, s.StatementCacheSize)
	assert.Equal(t, 1024, s.QueryCacheSize)
}
