package graph

import (
	"fmt"
	"strings"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/config"
	"github.com/Konsultn-Engineering/remap/mapping"
	"github.com/Konsultn-Engineering/remap/typeconv"
	"go.uber.org/zap"
)

// autoColumn is one resolved automatic mapping: a physical column matched
// by name to a property, with its converter. The set is stable for the
// duration of one cursor, so it is computed once per (row map, prefix).
type autoColumn struct {
	column   string
	property string
	conv     typeconv.Converter
	nilable  bool
}

// autoColumnsFor matches the cursor's unclaimed columns against the row
// map's target type. Unmatched columns follow the configured policy.
func (m *Materializer) autoColumnsFor(reader *rowReader, rm *mapping.RowMap, prefix string) ([]autoColumn, error) {
	cacheKey := rm.ID + ":" + prefix
	if cached, ok := m.automap.Get(cacheKey); ok {
		return cached, nil
	}

	claimed := rm.MappedColumns(prefix)
	settings := m.reg.Settings()
	meta, err := accessor.MetaOf(rm.Type)
	if err != nil {
		return nil, err
	}

	var out []autoColumn
	for _, col := range reader.columns {
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
		property, found := meta.FindProperty(logical, settings.UnderscoreToCamel)
		if !found {
			if err := m.reportUnknown(rm, col.Name, "no matching property"); err != nil {
				return nil, err
			}
			continue
		}
		propType, ok := accessor.TypeOfProperty(rm.Type, property)
		if !ok {
			continue
		}
		if !m.reg.Converters().Has(propType) {
			if err := m.reportUnknown(rm, col.Name, "no converter for "+propType.String()); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, autoColumn{
			column:   col.Name,
			property: property,
			conv:     m.reg.Converters().Lookup(propType, col.WireType),
			nilable:  nilableType(propType),
		})
	}

	m.automap.Add(cacheKey, out)
	return out, nil
}

func (m *Materializer) reportUnknown(rm *mapping.RowMap, column, reason string) error {
	switch m.reg.Settings().UnknownColumns {
	case config.UnknownFail:
		return fmt.Errorf("graph: row map %q: column %q unmapped: %s", rm.ID, column, reason)
	case config.UnknownWarn:
		m.logger.Warn("unmapped column",
			zap.String("row_map", rm.ID),
			zap.String("column", column),
			zap.String("reason", reason))
	}
	return nil
}

// shouldAutomap resolves the per-map override against the engine setting.
// Nested row maps only automap under the full behavior.
func (m *Materializer) shouldAutomap(rm *mapping.RowMap, nested bool) bool {
	switch rm.Auto {
	case mapping.AutoAlways:
		return true
	case mapping.AutoNever:
		return false
	}
	switch m.reg.Settings().AutoMapping {
	case config.AutoNone:
		return false
	case config.AutoFull:
		return true
	default:
		return !nested
	}
}
