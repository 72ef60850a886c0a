package sqlnode

import (
	"github.com/Konsultn-Engineering/remap/statement"
	"github.com/Konsultn-Engineering/remap/utils"
)

// Source produces a fully bound statement for an argument. Fingerprint
// identifies the underlying template for caching.
type Source interface {
	Bind(arg any) (*statement.BoundStatement, error)
	Fingerprint() uint64
}

// DynamicSource renders a node tree against a fresh context per call and
// hands the resulting text to the statement builder. Names published
// during rendering travel along as extra bindings so iteration-scoped
// values outrank argument properties.
type DynamicSource struct {
	root    Node
	builder *statement.Builder
}

func NewDynamicSource(root Node, builder *statement.Builder) *DynamicSource {
	return &DynamicSource{root: root, builder: builder}
}

func (s *DynamicSource) Bind(arg any) (*statement.BoundStatement, error) {
	ctx := NewContext(arg)
	if _, err := s.root.Apply(ctx); err != nil {
		return nil, err
	}
	return s.builder.Build(ctx.SQL(), arg, ctx.Bindings())
}

func (s *DynamicSource) Fingerprint() uint64 { return s.root.Fingerprint() }

// StaticSource tokenizes a fixed text once per call without rendering a
// tree. It suits statements with parameter markers but no dynamic tags.
type StaticSource struct {
	sql     string
	builder *statement.Builder
}

func NewStaticSource(sql string, builder *statement.Builder) *StaticSource {
	return &StaticSource{sql: sql, builder: builder}
}

func (s *StaticSource) Bind(arg any) (*statement.BoundStatement, error) {
	return s.builder.Build(s.sql, arg, nil)
}

func (s *StaticSource) Fingerprint() uint64 { return utils.U64(s.sql) }
