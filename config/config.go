package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// REMAP_LAZY_LOADING=false.
const EnvPrefix = "REMAP_"

// AutoBehavior controls which columns participate in automatic mapping.
type AutoBehavior string

const (
	// AutoNone disables automatic mapping entirely.
	AutoNone AutoBehavior = "none"
	// AutoPartial automaps only row maps without nested mappings.
	AutoPartial AutoBehavior = "partial"
	// AutoFull automaps every row map, nested or not.
	AutoFull AutoBehavior = "full"
)

// UnknownColumnPolicy decides what happens when a column matches no
// property during automatic mapping.
type UnknownColumnPolicy string

const (
	UnknownIgnore UnknownColumnPolicy = "ignore"
	UnknownWarn   UnknownColumnPolicy = "warn"
	UnknownFail   UnknownColumnPolicy = "fail"
)

// Settings carries the engine-wide knobs shared by statement binding and
// row materialization.
type Settings struct {
	AutoMapping          AutoBehavior        `koanf:"auto_mapping"`
	UnknownColumns       UnknownColumnPolicy `koanf:"unknown_columns"`
	UnderscoreToCamel    bool                `koanf:"underscore_to_camel"`
	CallSettersOnNulls   bool                `koanf:"call_setters_on_nulls"`
	MaterializeEmptyRows bool                `koanf:"materialize_empty_rows"`
	LazyLoading          bool                `koanf:"lazy_loading"`
	StatementCacheSize   int                 `koanf:"statement_cache_size"`
	QueryCacheSize       int                 `koanf:"query_cache_size"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		AutoMapping:        AutoPartial,
		UnknownColumns:     UnknownIgnore,
		UnderscoreToCamel:  true,
		LazyLoading:        true,
		StatementCacheSize: 256,
		QueryCacheSize:     1024,
	}
}

// Load reads settings from an optional YAML file, then applies REMAP_
// environment overrides on top. An empty path skips the file layer.
func Load(path string) (Settings, error) {
	settings := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return settings, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return settings, fmt.Errorf("config: loading environment: %w", err)
	}
	if err := k.Unmarshal("", &settings); err != nil {
		return settings, fmt.Errorf("config: unmarshal: %w", err)
	}
	return settings, settings.Validate()
}

// Validate checks enum fields, normalizing empty values to defaults.
func (s *Settings) Validate() error {
	switch s.AutoMapping {
	case "":
		s.AutoMapping = AutoPartial
	case AutoNone, AutoPartial, AutoFull:
	default:
		return fmt.Errorf("config: invalid auto_mapping %q", s.AutoMapping)
	}
	switch s.UnknownColumns {
	case "":
		s.UnknownColumns = UnknownIgnore
	case UnknownIgnore, UnknownWarn, UnknownFail:
	default:
		return fmt.Errorf("config: invalid unknown_columns %q", s.UnknownColumns)
	}
	if s.StatementCacheSize <= 0 {
		s.StatementCacheSize = 256
	}
	if s.QueryCacheSize <= 0 {
		s.QueryCacheSize = 1024
	}
	return nil
}
