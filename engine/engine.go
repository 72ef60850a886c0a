package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/remap/accessor"
	"github.com/Konsultn-Engineering/remap/cache"
	"github.com/Konsultn-Engineering/remap/database"
	"github.com/Konsultn-Engineering/remap/graph"
	"github.com/Konsultn-Engineering/remap/mapping"
	"github.com/Konsultn-Engineering/remap/sqlnode"
	"github.com/Konsultn-Engineering/remap/statement"
	"github.com/Konsultn-Engineering/remap/utils"
)

// ErrTooManyRows is returned by SelectOne when the statement produced more
// than one object.
var ErrTooManyRows = errors.New("engine: statement returned more than one row")

// Engine executes registered statements against a database and materializes
// their results through the registry's row maps. One Engine is safe for
// concurrent use.
type Engine struct {
	db      database.Database
	reg     *mapping.Registry
	logger  *zap.Logger
	mat     *graph.Materializer
	plans   *cache.PlanCache
	results *cache.ResultCache
}

func New(db database.Database, reg *mapping.Registry) (*Engine, error) {
	e := &Engine{
		db:      db,
		reg:     reg,
		logger:  reg.Logger(),
		plans:   cache.NewPlanCache(reg.Settings().StatementCacheSize),
		results: cache.NewResultCache(reg.Settings().QueryCacheSize),
	}
	mat, err := graph.NewMaterializer(reg, e)
	if err != nil {
		return nil, err
	}
	e.mat = mat
	return e, nil
}

// Query executes a statement and returns the full materialization result,
// including per-cursor object lists and any deferred lazy loaders.
func (e *Engine) Query(ctx context.Context, statementID string, arg any, opts graph.Options) (*graph.Result, error) {
	st, err := e.reg.Statement(statementID)
	if err != nil {
		return nil, err
	}
	sql, values, err := e.bind(st, arg)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("executing statement",
		zap.String("statement", st.ID),
		zap.String("sql", sql),
		zap.Int("params", len(values)))
	rows, err := e.db.Query(ctx, sql, values...)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", st.ID, err)
	}
	return e.mat.HandleRows(ctx, rows, st, opts)
}

// SelectList executes a statement and returns the first cursor's objects.
// Lazy associations are dropped; use Query when loaders are needed.
func (e *Engine) SelectList(ctx context.Context, statementID string, arg any) ([]any, error) {
	result, err := e.Query(ctx, statementID, arg, graph.Options{})
	if err != nil {
		return nil, err
	}
	return result.Objects(), nil
}

// SelectOne executes a statement expected to produce at most one object.
// Zero rows yield nil.
func (e *Engine) SelectOne(ctx context.Context, statementID string, arg any) (any, error) {
	list, err := e.SelectList(ctx, statementID, arg)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("%w: %s produced %d", ErrTooManyRows, statementID, len(list))
	}
}

// Exec runs a statement that returns no rows. When the statement declares a
// key generator, the generated key is assigned to the key property of arg
// before binding, so the statement text can reference it.
func (e *Engine) Exec(ctx context.Context, statementID string, arg any) (database.Result, error) {
	st, err := e.reg.Statement(statementID)
	if err != nil {
		return nil, err
	}
	if st.KeyGenerator != "" {
		if err := e.applyGeneratedKey(st, arg); err != nil {
			return nil, err
		}
	}
	sql, values, err := e.bind(st, arg)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("executing statement",
		zap.String("statement", st.ID),
		zap.String("sql", sql),
		zap.Int("params", len(values)))
	result, err := e.db.Exec(ctx, sql, values...)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", st.ID, err)
	}
	return result, nil
}

func (e *Engine) applyGeneratedKey(st *mapping.Statement, arg any) error {
	gen, ok := e.reg.Generator(st.KeyGenerator)
	if !ok {
		return fmt.Errorf("engine: %s: unknown key generator %q", st.ID, st.KeyGenerator)
	}
	key, err := gen.Generate()
	if err != nil {
		return fmt.Errorf("engine: %s: key generation: %w", st.ID, err)
	}
	if err := accessor.Set(arg, st.KeyProperty, key); err != nil {
		return fmt.Errorf("engine: %s: assigning generated key: %w", st.ID, err)
	}
	return nil
}

// bind assembles the statement text and resolves parameter values. Static
// sources reuse a cached plan keyed by (source fingerprint, argument type);
// dynamic sources re-assemble because their text depends on the argument.
func (e *Engine) bind(st *mapping.Statement, arg any) (string, []any, error) {
	if src, ok := st.Source.(*sqlnode.StaticSource); ok {
		key := utils.Mix64(src.Fingerprint(), utils.U64(fmt.Sprintf("%T", arg)))
		plan, err := e.plans.GetOrBuild(key, func() (*cache.Plan, error) {
			bound, err := src.Bind(arg)
			if err != nil {
				return nil, err
			}
			return &cache.Plan{SQL: bound.SQL, Params: bound.Params}, nil
		})
		if err != nil {
			return "", nil, fmt.Errorf("engine: %s: %w", st.ID, err)
		}
		bound := &statement.BoundStatement{SQL: plan.SQL, Params: plan.Params, Arg: arg}
		values, err := bound.Values()
		if err != nil {
			return "", nil, fmt.Errorf("engine: %s: %w", st.ID, err)
		}
		return plan.SQL, values, nil
	}

	bound, err := st.Source.Bind(arg)
	if err != nil {
		return "", nil, fmt.Errorf("engine: %s: %w", st.ID, err)
	}
	values, err := bound.Values()
	if err != nil {
		return "", nil, fmt.Errorf("engine: %s: %w", st.ID, err)
	}
	return bound.SQL, values, nil
}

// Close releases cached plans and the underlying database.
func (e *Engine) Close() error {
	e.plans.Purge()
	e.results.Purge()
	return e.db.Close()
}
