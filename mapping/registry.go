package mapping

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/remap/config"
	"github.com/Konsultn-Engineering/remap/typeconv"
)

// Registry is the shared configuration object for an engine instance: row
// maps, statements, value converters, key generators, and settings. It is
// populated at construction time and read-only afterwards.
type Registry struct {
	settings     config.Settings
	converters   *typeconv.Registry
	logger       *zap.Logger
	rowMaps      map[string]*RowMap
	statements   map[string]*Statement
	generators   map[string]KeyGenerator
	constructors map[reflect.Type][]*Constructor
}

func NewRegistry(settings config.Settings, converters *typeconv.Registry, logger *zap.Logger) *Registry {
	if converters == nil {
		converters = typeconv.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		settings:     settings,
		converters:   converters,
		logger:       logger,
		rowMaps:      make(map[string]*RowMap),
		statements:   make(map[string]*Statement),
		generators:   builtinGenerators(),
		constructors: make(map[reflect.Type][]*Constructor),
	}
}

func (r *Registry) Settings() config.Settings      { return r.settings }
func (r *Registry) Converters() *typeconv.Registry { return r.converters }
func (r *Registry) Logger() *zap.Logger            { return r.logger }

// AddRowMap registers a validated row map under its id.
func (r *Registry) AddRowMap(m *RowMap) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, exists := r.rowMaps[m.ID]; exists {
		return fmt.Errorf("mapping: duplicate row map id %q", m.ID)
	}
	r.rowMaps[m.ID] = m
	return nil
}

func (r *Registry) RowMap(id string) (*RowMap, error) {
	m, ok := r.rowMaps[id]
	if !ok {
		return nil, fmt.Errorf("mapping: unknown row map %q", id)
	}
	return m, nil
}

// AddStatement registers a statement after checking its cursor wiring. At
// most one property map across the statement's row maps may consume a
// given foreign cursor name; a second, different claim is rejected here
// rather than at scan time.
func (r *Registry) AddStatement(s *Statement) error {
	if s.ID == "" {
		return fmt.Errorf("mapping: statement without id")
	}
	if s.Source == nil {
		return fmt.Errorf("mapping: statement %q has no source", s.ID)
	}
	if _, exists := r.statements[s.ID]; exists {
		return fmt.Errorf("mapping: duplicate statement id %q", s.ID)
	}
	if s.KeyGenerator != "" {
		if _, ok := r.generators[s.KeyGenerator]; !ok {
			return fmt.Errorf("mapping: statement %q references unknown key generator %q", s.ID, s.KeyGenerator)
		}
		if s.KeyProperty == "" {
			return fmt.Errorf("mapping: statement %q declares a key generator but no key property", s.ID)
		}
	}
	if err := r.checkForeignClaims(s); err != nil {
		return err
	}
	r.statements[s.ID] = s
	return nil
}

func (r *Registry) Statement(id string) (*Statement, error) {
	s, ok := r.statements[id]
	if !ok {
		return nil, fmt.Errorf("mapping: unknown statement %q", id)
	}
	return s, nil
}

// RegisterGenerator adds a named key generator, replacing any builtin of
// the same name.
func (r *Registry) RegisterGenerator(name string, g KeyGenerator) {
	r.generators[name] = g
}

func (r *Registry) Generator(name string) (KeyGenerator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

// checkForeignClaims walks every row map reachable from the statement and
// rejects two non-identical property maps naming the same foreign cursor.
func (r *Registry) checkForeignClaims(s *Statement) error {
	claims := make(map[string]*PropertyMap)
	visited := make(map[string]bool)

	var walk func(id string) error
	walk = func(id string) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		m, ok := r.rowMaps[id]
		if !ok {
			return fmt.Errorf("mapping: statement %q references unknown row map %q", s.ID, id)
		}
		for _, p := range m.allProps() {
			if p.Foreign() {
				prev, claimed := claims[p.ForeignResultSet]
				if claimed && !prev.equivalent(p) {
					return fmt.Errorf("mapping: statement %q: cursor %q claimed by both %q and %q", s.ID, p.ForeignResultSet, prev.Property, p.Property)
				}
				claims[p.ForeignResultSet] = p
			}
			if p.Nested() {
				if err := walk(p.NestedMapID); err != nil {
					return err
				}
			}
		}
		if m.Discriminator != nil {
			for _, target := range m.Discriminator.Cases {
				if _, ok := r.rowMaps[target]; ok {
					if err := walk(target); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	for _, id := range s.RowMapIDs {
		if err := walk(id); err != nil {
			return err
		}
	}
	return nil
}
