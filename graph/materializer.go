package graph

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/database"
	"github.com/Konsultn-Engineering/remap/mapping"
	"github.com/Konsultn-Engineering/remap/typeconv"
)

// Materializer turns cursors into object graphs according to the row maps
// of a statement. One Materializer serves many executions; all per-pass
// state lives in the pass struct.
type Materializer struct {
	reg     *mapping.Registry
	logger  *zap.Logger
	runner  QueryRunner
	automap *lru.Cache[string, []autoColumn]
}

func NewMaterializer(reg *mapping.Registry, runner QueryRunner) (*Materializer, error) {
	automap, err := lru.New[string, []autoColumn](reg.Settings().StatementCacheSize)
	if err != nil {
		return nil, err
	}
	return &Materializer{
		reg:     reg,
		logger:  reg.Logger(),
		runner:  runner,
		automap: automap,
	}, nil
}

// Options bounds one materialization pass.
type Options struct {
	// Offset rows are fetched and discarded before mapping starts.
	Offset int
	// Limit caps stored objects per cursor; zero means unlimited.
	Limit int
	// Stop is polled before each row fetch.
	Stop func() bool
}

func (o Options) exhausted(stored int) bool {
	if o.Stop != nil && o.Stop() {
		return true
	}
	return o.Limit > 0 && stored >= o.Limit
}

// Result is the output of one statement's materialization.
type Result struct {
	// Sets holds one object list per leading cursor, in cursor order.
	Sets [][]any
	// Loaders carries the deferred nested-query resolutions.
	Loaders *LoaderSet
}

// Objects returns the first cursor's list.
func (r *Result) Objects() []any {
	if len(r.Sets) == 0 {
		return nil
	}
	return r.Sets[0]
}

// HandleRows consumes every result set of an execution. Leading cursors
// map through the statement's row maps; later cursors resolve by name to
// the property map that claimed them and link into waiting parents.
func (m *Materializer) HandleRows(ctx context.Context, rows database.Rows, stmt *mapping.Statement, opts Options) (*Result, error) {
	defer rows.Close()

	result := &Result{Loaders: newLoaderSet()}
	pending := make(pendingTable)

	setIndex := 0
	for {
		reader, err := newRowReader(rows)
		if err != nil {
			return nil, err
		}
		switch {
		case setIndex < len(stmt.RowMapIDs):
			rm, err := m.reg.RowMap(stmt.RowMapIDs[setIndex])
			if err != nil {
				return nil, err
			}
			p := m.newPass(ctx, reader, stmt, pending, result.Loaders)
			if err := p.handleCursor(rm, opts); err != nil {
				return nil, err
			}
			result.Sets = append(result.Sets, p.list)
		case setIndex-len(stmt.RowMapIDs) < len(stmt.ResultSets):
			name := stmt.ResultSets[setIndex-len(stmt.RowMapIDs)]
			prop, err := m.foreignClaim(stmt, name)
			if err != nil {
				return nil, err
			}
			rm, err := m.reg.RowMap(prop.NestedMapID)
			if err != nil {
				return nil, err
			}
			p := m.newPass(ctx, reader, stmt, pending, result.Loaders)
			p.foreignProp = prop
			if err := p.handleCursor(rm, Options{}); err != nil {
				return nil, err
			}
		default:
			// Surplus cursors are drained by NextResultSet below.
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if !rows.NextResultSet() {
			break
		}
		setIndex++
	}
	if len(result.Sets) == 0 {
		result.Sets = append(result.Sets, nil)
	}
	return result, nil
}

// foreignClaim finds the property map consuming a named cursor. Claim
// uniqueness was enforced at registration time.
func (m *Materializer) foreignClaim(stmt *mapping.Statement, name string) (*mapping.PropertyMap, error) {
	visited := make(map[string]bool)
	var find func(id string) *mapping.PropertyMap
	find = func(id string) *mapping.PropertyMap {
		if visited[id] {
			return nil
		}
		visited[id] = true
		rm, err := m.reg.RowMap(id)
		if err != nil {
			return nil
		}
		for _, prop := range rm.MappedProps() {
			if prop.ForeignResultSet == name {
				return prop
			}
			if prop.Nested() {
				if found := find(prop.NestedMapID); found != nil {
					return found
				}
			}
		}
		return nil
	}
	for _, id := range stmt.RowMapIDs {
		if prop := find(id); prop != nil {
			return prop, nil
		}
	}
	return nil, fmt.Errorf("graph: no property map claims cursor %q", name)
}

// converterFor resolves the converter for one property mapping: a named
// converter wins, then the property's type paired with the column's (or
// declared) wire type, then the passthrough fallback.
func (m *Materializer) converterFor(rm *mapping.RowMap, prop *mapping.PropertyMap, column string, reader *rowReader) typeconv.Converter {
	if prop.ConverterName != "" {
		if c, ok := m.reg.Converters().Named(prop.ConverterName); ok {
			return c
		}
	}
	wt := prop.WireType
	if wt == typeconv.WireUnknown {
		wt = reader.wireType(column)
	}
	if pt, ok := accessor.TypeOfProperty(rm.Type, prop.Property); ok && m.reg.Converters().Has(pt) {
		return m.reg.Converters().Lookup(pt, wt)
	}
	return m.reg.Converters().Unknown()
}

// pass holds the state of one cursor's materialization: the partial
// object table, the ancestor table for cycles, and (shared across
// cursors) the pending-relation table and loader set.
type pass struct {
	m         *Materializer
	ctx       context.Context
	reader    *rowReader
	stmt      *mapping.Statement
	partials  map[CacheKey]any
	ancestors map[string]any
	pending   pendingTable
	loaders   *LoaderSet
	list      []any
	stored    int

	// foreignProp, when set, marks this pass as a named-cursor pass:
	// row values link into pending parents instead of the list.
	foreignProp *mapping.PropertyMap
}

func (m *Materializer) newPass(ctx context.Context, reader *rowReader, stmt *mapping.Statement, pending pendingTable, loaders *LoaderSet) *pass {
	return &pass{
		m:         m,
		ctx:       ctx,
		reader:    reader,
		stmt:      stmt,
		partials:  make(map[CacheKey]any),
		ancestors: make(map[string]any),
		pending:   pending,
		loaders:   loaders,
	}
}

func (p *pass) handleCursor(rm *mapping.RowMap, opts Options) error {
	for i := 0; i < opts.Offset && p.reader.rows.Next(); i++ {
	}
	if p.hasNestedMaps(rm, make(map[string]bool)) {
		return p.handleNestedRows(rm, opts)
	}
	return p.handleSimpleRows(rm, opts)
}

// hasNestedMaps reports whether the map, or any discriminator target,
// declares same-row nested mappings.
func (p *pass) hasNestedMaps(rm *mapping.RowMap, visited map[string]bool) bool {
	if visited[rm.ID] {
		return false
	}
	visited[rm.ID] = true
	if rm.HasNested() {
		return true
	}
	if rm.Discriminator != nil {
		for _, target := range rm.Discriminator.Cases {
			if next, err := p.m.reg.RowMap(target); err == nil && p.hasNestedMaps(next, visited) {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// Flat path
// ============================================================================

func (p *pass) handleSimpleRows(rm *mapping.RowMap, opts Options) error {
	for !opts.exhausted(p.stored) && p.reader.rows.Next() {
		eff, err := p.resolveDiscriminated(rm, "")
		if err != nil {
			return err
		}
		value, err := p.getRowValueSimple(eff, "")
		if err != nil {
			return err
		}
		if err := p.store(value); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) getRowValueSimple(rm *mapping.RowMap, prefix string) (any, error) {
	obj, viaConv, viaCtor, err := p.createResultObject(rm, prefix)
	if err != nil {
		return nil, err
	}
	if obj == nil || viaConv {
		return obj, nil
	}
	found := viaCtor
	if p.m.shouldAutomap(rm, false) {
		f, err := p.applyAutomaticMappings(obj, rm, prefix)
		if err != nil {
			return nil, err
		}
		found = found || f
	}
	f, err := p.applyPropertyMappings(obj, rm, prefix)
	if err != nil {
		return nil, err
	}
	found = found || f
	if found || p.m.reg.Settings().MaterializeEmptyRows {
		return obj, nil
	}
	return nil, nil
}

// ============================================================================
// Graph path
// ============================================================================

func (p *pass) handleNestedRows(rm *mapping.RowMap, opts Options) error {
	var rowValue any
	for !opts.exhausted(p.stored) && p.reader.rows.Next() {
		eff, err := p.resolveDiscriminated(rm, "")
		if err != nil {
			return err
		}
		key, err := p.createRowKey(eff, "")
		if err != nil {
			return err
		}
		partial := p.partialGet(key)
		if p.stmt != nil && p.stmt.ResultOrdered {
			if partial == nil && rowValue != nil {
				p.partials = make(map[CacheKey]any)
				if err := p.store(rowValue); err != nil {
					return err
				}
				rowValue = nil
			}
			rowValue, err = p.getRowValueNested(eff, key, "", partial)
		} else {
			rowValue, err = p.getRowValueNested(eff, key, "", partial)
			if err == nil && partial == nil {
				err = p.store(rowValue)
			}
		}
		if err != nil {
			return err
		}
	}
	if rowValue != nil && p.stmt != nil && p.stmt.ResultOrdered && !opts.exhausted(p.stored) {
		return p.store(rowValue)
	}
	return nil
}

func (p *pass) getRowValueNested(rm *mapping.RowMap, key CacheKey, prefix string, partial any) (any, error) {
	if partial != nil {
		// Join row for an existing object: only its nested mappings can
		// contribute new data.
		p.ancestors[rm.ID] = partial
		_, err := p.applyNestedMappings(partial, rm, prefix, key, false)
		delete(p.ancestors, rm.ID)
		return partial, err
	}

	obj, viaConv, viaCtor, err := p.createResultObject(rm, prefix)
	if err != nil {
		return nil, err
	}
	rowValue := obj
	if obj != nil && !viaConv {
		found := viaCtor
		if p.m.shouldAutomap(rm, true) {
			f, err := p.applyAutomaticMappings(obj, rm, prefix)
			if err != nil {
				return nil, err
			}
			found = found || f
		}
		f, err := p.applyPropertyMappings(obj, rm, prefix)
		if err != nil {
			return nil, err
		}
		found = found || f
		p.ancestors[rm.ID] = obj
		f, err = p.applyNestedMappings(obj, rm, prefix, key, true)
		if err != nil {
			return nil, err
		}
		found = found || f
		delete(p.ancestors, rm.ID)
		if !found && !p.m.reg.Settings().MaterializeEmptyRows {
			rowValue = nil
		}
	}
	if !key.Nil() {
		p.partials[key] = rowValue
	}
	return rowValue, nil
}

func (p *pass) applyNestedMappings(obj any, rm *mapping.RowMap, parentPrefix string, parentKey CacheKey, newObject bool) (bool, error) {
	found := false
	for _, prop := range rm.MappedProps() {
		if !prop.Nested() || prop.Foreign() {
			continue
		}
		columnPrefix := parentPrefix + prop.ColumnPrefix
		nested, err := p.m.reg.RowMap(prop.NestedMapID)
		if err != nil {
			return found, err
		}
		nestedEff, err := p.resolveDiscriminated(nested, columnPrefix)
		if err != nil {
			return found, err
		}
		if prop.ColumnPrefix == "" {
			// Cycle back to an in-progress ancestor: link it directly
			// instead of recursing.
			if ancestor, ok := p.ancestors[nestedEff.ID]; ok {
				if newObject {
					if err := setOrAppend(obj, prop.Property, ancestor); err != nil {
						return found, err
					}
				}
				continue
			}
		}
		rowKey, err := p.createRowKey(nestedEff, columnPrefix)
		if err != nil {
			return found, err
		}
		combined := Combine(rowKey, parentKey)
		existing := p.partialGet(combined)
		known := existing != nil
		ok, err := p.anyNotNullColumnHasValue(prop, columnPrefix)
		if err != nil {
			return found, err
		}
		if !ok {
			continue
		}
		value, err := p.getRowValueNested(nestedEff, combined, columnPrefix, existing)
		if err != nil {
			return found, err
		}
		if value != nil && !known {
			if err := setOrAppend(obj, prop.Property, value); err != nil {
				return found, err
			}
			found = true
		}
	}
	return found, nil
}

func (p *pass) anyNotNullColumnHasValue(prop *mapping.PropertyMap, prefix string) (bool, error) {
	if len(prop.NotNullColumns) == 0 {
		return true, nil
	}
	for _, col := range prop.NotNullColumns {
		name := prefixed(prefix, col)
		if !p.reader.has(name) {
			continue
		}
		v, err := p.reader.raw(name)
		if err != nil {
			return false, err
		}
		if v != nil {
			return true, nil
		}
	}
	return false, nil
}

// ============================================================================
// Property application
// ============================================================================

func (p *pass) applyPropertyMappings(obj any, rm *mapping.RowMap, prefix string) (bool, error) {
	found := false
	settings := p.m.reg.Settings()
	for _, prop := range rm.MappedProps() {
		if prop.Nested() && !prop.Foreign() {
			continue
		}
		switch {
		case prop.Query():
			f, err := p.applyNestedQuery(obj, rm, prop, prefix)
			if err != nil {
				return found, err
			}
			found = found || f
		case prop.Foreign():
			key, err := correlationKey(p.reader, prop, prop.Columns)
			if err != nil {
				return found, err
			}
			if !key.Nil() {
				p.pending.add(key, pendingRelation{target: obj, prop: prop})
				found = true
			}
		default:
			if prop.Property == "" || prop.Column == "" {
				continue
			}
			column := prefixed(prefix, prop.Column)
			if !p.reader.has(column) {
				continue
			}
			conv := p.m.converterFor(rm, prop, column, p.reader)
			value, err := p.reader.value(column, conv)
			if err != nil {
				return found, fmt.Errorf("graph: row map %q property %q: %w", rm.ID, prop.Property, err)
			}
			if value != nil {
				found = true
			}
			if value != nil || (settings.CallSettersOnNulls && p.propNilable(rm, prop)) {
				if err := accessor.Set(obj, prop.Property, value); err != nil {
					return found, fmt.Errorf("graph: row map %q property %q: %w", rm.ID, prop.Property, err)
				}
			}
		}
	}
	return found, nil
}

func (p *pass) propNilable(rm *mapping.RowMap, prop *mapping.PropertyMap) bool {
	if pt, ok := accessor.TypeOfProperty(rm.Type, prop.Property); ok {
		return nilableType(pt)
	}
	return true
}

func (p *pass) applyNestedQuery(obj any, rm *mapping.RowMap, prop *mapping.PropertyMap, prefix string) (bool, error) {
	if p.m.runner == nil {
		return false, fmt.Errorf("graph: row map %q property %q needs a query runner", rm.ID, prop.Property)
	}
	arg, err := p.nestedQueryArg(prop, prefix)
	if err != nil {
		return false, err
	}
	if arg == nil {
		return false, nil
	}
	valueType, _ := accessor.TypeOfProperty(rm.Type, prop.Property)
	if prop.Lazy && p.m.reg.Settings().LazyLoading {
		p.loaders.add(&Loader{
			target:      obj,
			property:    prop.Property,
			statementID: prop.NestedQueryID,
			arg:         arg,
			valueType:   valueType,
			runner:      p.m.runner,
		})
		return true, nil
	}
	value, err := p.m.runner.RunNested(p.ctx, prop.NestedQueryID, arg, valueType)
	if err != nil {
		return false, fmt.Errorf("graph: nested query %q for %q: %w", prop.NestedQueryID, prop.Property, err)
	}
	if value == nil {
		return false, nil
	}
	return true, setOrAppend(obj, prop.Property, value)
}

// nestedQueryArg builds the argument for a nested statement: the single
// correlation column's value, or a bag of composite column values. All
// nulls mean the query is skipped.
func (p *pass) nestedQueryArg(prop *mapping.PropertyMap, prefix string) (any, error) {
	if len(prop.Composites) > 0 {
		arg := make(map[string]any, len(prop.Composites))
		found := false
		for _, c := range prop.Composites {
			column := prefixed(prefix, c.Column)
			if !p.reader.has(column) {
				continue
			}
			v, err := p.reader.raw(column)
			if err != nil {
				return nil, err
			}
			arg[c.Property] = v
			if v != nil {
				found = true
			}
		}
		if !found {
			return nil, nil
		}
		return arg, nil
	}
	column := prefixed(prefix, prop.Column)
	if column == "" || !p.reader.has(column) {
		return nil, nil
	}
	return p.reader.raw(column)
}

func (p *pass) applyAutomaticMappings(obj any, rm *mapping.RowMap, prefix string) (bool, error) {
	if accessor.IsMapTarget(rm.Type) {
		return p.automapIntoMap(obj, rm, prefix)
	}
	cols, err := p.m.autoColumnsFor(p.reader, rm, prefix)
	if err != nil {
		return false, err
	}
	found := false
	settings := p.m.reg.Settings()
	for _, ac := range cols {
		value, err := p.reader.value(ac.column, ac.conv)
		if err != nil {
			return found, fmt.Errorf("graph: row map %q automapping %q: %w", rm.ID, ac.column, err)
		}
		if value != nil {
			found = true
		}
		if value != nil || (settings.CallSettersOnNulls && ac.nilable) {
			if err := accessor.Set(obj, ac.property, value); err != nil {
				return found, err
			}
		}
	}
	return found, nil
}

// automapIntoMap copies every unclaimed column of the row into a map
// target under its logical name.
func (p *pass) automapIntoMap(obj any, rm *mapping.RowMap, prefix string) (bool, error) {
	claimed := rm.MappedColumns(prefix)
	found := false
	for _, col := range p.reader.columns {
		upperName := strings.ToUpper(col.Name)
		if _, ok := claimed[upperName]; ok {
			continue
		}
		logical := col.Name
		if prefix != "" {
			if !strings.HasPrefix(upperName, strings.ToUpper(prefix)) {
				continue
			}
			logical = col.Name[len(prefix):]
		}
		v, err := p.reader.raw(col.Name)
		if err != nil {
			return found, err
		}
		if v != nil {
			found = true
		}
		if err := accessor.Set(obj, logical, v); err != nil {
			return found, err
		}
	}
	return found, nil
}

// ============================================================================
// Discriminator and row keys
// ============================================================================

// resolveDiscriminated follows the discriminator chain until it exhausts,
// cycles, or points nowhere; the last resolved map wins.
func (p *pass) resolveDiscriminated(rm *mapping.RowMap, prefix string) (*mapping.RowMap, error) {
	current := rm
	visited := map[string]bool{rm.ID: true}
	for current.Discriminator != nil {
		d := current.Discriminator
		column := prefixed(prefix, d.Column)
		if !p.reader.has(column) {
			break
		}
		raw, err := p.reader.raw(column)
		if err != nil {
			return nil, err
		}
		targetID, ok := d.Target(raw)
		if !ok {
			break
		}
		next, err := p.m.reg.RowMap(targetID)
		if err != nil {
			break
		}
		if visited[next.ID] {
			break
		}
		visited[next.ID] = true
		current = next
	}
	return current, nil
}

// createRowKey computes the identity key for one row under one row map.
// Column participation priority: identity mappings, then plain mappings,
// then (for map targets) every column, then unclaimed columns that match
// a property.
func (p *pass) createRowKey(rm *mapping.RowMap, prefix string) (CacheKey, error) {
	b := NewKeyBuilder()
	b.Update(rm.ID)

	mappings := rm.IDProps
	if len(mappings) == 0 {
		mappings = rm.Props
	}
	hasSimple := false
	for _, prop := range mappings {
		if prop.Simple() {
			hasSimple = true
			break
		}
	}
	switch {
	case hasSimple:
		if err := p.rowKeyFromMappings(b, rm, mappings, prefix); err != nil {
			return NilKey, err
		}
	case accessor.IsMapTarget(rm.Type):
		if err := p.rowKeyFromAllColumns(b); err != nil {
			return NilKey, err
		}
	default:
		if err := p.rowKeyFromUnmapped(b, rm, prefix); err != nil {
			return NilKey, err
		}
	}
	return b.Key(), nil
}

func (p *pass) rowKeyFromMappings(b *KeyBuilder, rm *mapping.RowMap, mappings []*mapping.PropertyMap, prefix string) error {
	materialize := p.m.reg.Settings().MaterializeEmptyRows
	for _, prop := range mappings {
		if !prop.Simple() || prop.Column == "" {
			continue
		}
		column := prefixed(prefix, prop.Column)
		if !p.reader.has(column) {
			continue
		}
		conv := p.m.converterFor(rm, prop, column, p.reader)
		value, err := p.reader.value(column, conv)
		if err != nil {
			return err
		}
		if value != nil || materialize {
			b.Update(column)
			b.Update(value)
		}
	}
	return nil
}

func (p *pass) rowKeyFromAllColumns(b *KeyBuilder) error {
	materialize := p.m.reg.Settings().MaterializeEmptyRows
	for _, col := range p.reader.columns {
		v, err := p.reader.raw(col.Name)
		if err != nil {
			return err
		}
		if v != nil || materialize {
			b.Update(col.Name)
			b.Update(v)
		}
	}
	return nil
}

func (p *pass) rowKeyFromUnmapped(b *KeyBuilder, rm *mapping.RowMap, prefix string) error {
	cols, err := p.m.autoColumnsFor(p.reader, rm, prefix)
	if err != nil {
		return err
	}
	materialize := p.m.reg.Settings().MaterializeEmptyRows
	for _, ac := range cols {
		value, err := p.reader.value(ac.column, ac.conv)
		if err != nil {
			return err
		}
		if value != nil || materialize {
			b.Update(ac.column)
			b.Update(value)
		}
	}
	return nil
}

func (p *pass) partialGet(key CacheKey) any {
	if key.Nil() {
		return nil
	}
	return p.partials[key]
}

// store delivers one completed row value: for a named-cursor pass it
// links into every waiting parent, otherwise it joins the result list.
func (p *pass) store(value any) error {
	p.stored++
	if p.foreignProp != nil {
		if value == nil {
			return nil
		}
		key, err := correlationKey(p.reader, p.foreignProp, p.foreignProp.ForeignColumns)
		if err != nil {
			return err
		}
		for _, rel := range p.pending.waiting(key) {
			if err := setOrAppend(rel.target, rel.prop.Property, value); err != nil {
				return err
			}
		}
		return nil
	}
	p.list = append(p.list, value)
	return nil
}
