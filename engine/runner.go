package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/graph"
	"github.com/Konsultn-Engineering/remap/utils"
)

// RunNested executes a nested statement on behalf of the materializer.
// Results are cached by (statement, text, values) so that many parent rows
// sharing the same child argument hit the database once.
func (e *Engine) RunNested(ctx context.Context, statementID string, arg any, target reflect.Type) (any, error) {
	st, err := e.reg.Statement(statementID)
	if err != nil {
		return nil, err
	}
	sql, values, err := e.bind(st, arg)
	if err != nil {
		return nil, err
	}

	key := utils.Mix64(utils.U64(statementID), utils.U64(sql))
	for _, v := range values {
		key = utils.Mix64(key, utils.HashValue(v))
	}
	if objects, ok := e.results.Get(key); ok {
		return shapeNested(statementID, objects, target)
	}

	rows, err := e.db.Query(ctx, sql, values...)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", st.ID, err)
	}
	result, err := e.mat.HandleRows(ctx, rows, st, graph.Options{})
	if err != nil {
		return nil, err
	}
	// Deferred associations inside a nested statement have no access path
	// from the parent result, so they resolve before the objects are
	// cached and handed over.
	if err := result.Loaders.LoadAll(ctx); err != nil {
		return nil, err
	}
	objects := result.Objects()
	e.results.Set(key, objects)
	return shapeNested(statementID, objects, target)
}

// shapeNested adapts a nested result list to the shape of the property it
// fills: collections take the whole list, singular targets take the only
// element.
func shapeNested(statementID string, objects []any, target reflect.Type) (any, error) {
	if target != nil && accessor.IsCollection(target) {
		return objects, nil
	}
	switch len(objects) {
	case 0:
		return nil, nil
	case 1:
		return objects[0], nil
	default:
		return nil, fmt.Errorf("%w: %s produced %d", ErrTooManyRows, statementID, len(objects))
	}
}
