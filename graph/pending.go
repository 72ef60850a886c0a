package graph

import (
	"github.com/Konsultn-Engineering/remap/mapping"
)

// pendingRelation is one parent object waiting for a value from a later
// cursor of the same execution.
type pendingRelation struct {
	target any
	prop   *mapping.PropertyMap
}

// pendingTable indexes waiting parents by correlation key. Child rows
// with no waiting parent resolve to an empty slice and are dropped.
type pendingTable map[CacheKey][]pendingRelation

func (t pendingTable) add(key CacheKey, rel pendingRelation) {
	t[key] = append(t[key], rel)
}

// waiting returns the parents registered for a key. Entries stay in the
// table: later child rows under the same key keep appending into
// collection-typed parents.
func (t pendingTable) waiting(key CacheKey) []pendingRelation {
	return t[key]
}

// correlationKey builds the key shared by the parent and child sides of a
// foreign-cursor link: the cursor name, then the parent-side column names
// paired with values read from the given columns of the current row.
func correlationKey(reader *rowReader, prop *mapping.PropertyMap, valueColumns []string) (CacheKey, error) {
	b := NewKeyBuilder()
	b.Update(prop.ForeignResultSet)
	for i, name := range prop.Columns {
		v, err := reader.raw(valueColumns[i])
		if err != nil {
			return NilKey, err
		}
		if v == nil {
			continue
		}
		b.Update(name)
		b.Update(v)
	}
	return b.Key(), nil
}
