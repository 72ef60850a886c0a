package sqlnode

import (
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/remap/expr"
	"github.com/Konsultn-Engineering/remap/statement"
	"github.com/Konsultn-Engineering/remap/utils"
)

const itemPrefix = "__frch_"

// ForeachNode renders its contents once per element of a collection
// expression. Each iteration publishes the item and index under their
// declared names and under iteration-scoped aliases, and parameter markers
// referencing those names are rewritten to the aliases so each iteration
// binds its own value.
type ForeachNode struct {
	Collection string
	Item       string
	Index      string
	Open       string
	Close      string
	Separator  string
	Contents   Node
}

func (n *ForeachNode) Type() NodeType { return NodeForeach }

func (n *ForeachNode) Apply(ctx Context) (bool, error) {
	items, err := expr.EvalIterable(n.Collection, ctx)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return true, nil
	}
	if n.Open != "" {
		if err := ctx.AppendSQL(n.Open); err != nil {
			return false, err
		}
	}
	first := true
	for _, entry := range items {
		unique := ctx.UniqueNumber()
		var scope Context = ctx
		if !first && n.Separator != "" {
			scope = newPrefixed(scope, n.Separator)
		}
		if n.Index != "" {
			ctx.Bind(n.Index, entry.Key)
			ctx.Bind(itemizeName(n.Index, unique), entry.Key)
		}
		if n.Item != "" {
			ctx.Bind(n.Item, entry.Value)
			ctx.Bind(itemizeName(n.Item, unique), entry.Value)
		}
		scope = newFiltered(scope, n.Item, n.Index, unique)
		if _, err := n.Contents.Apply(scope); err != nil {
			return false, err
		}
		first = false
	}
	if n.Close != "" {
		if err := ctx.AppendSQL(n.Close); err != nil {
			return false, err
		}
	}
	if n.Item != "" {
		ctx.Unbind(n.Item)
	}
	if n.Index != "" {
		ctx.Unbind(n.Index)
	}
	return true, nil
}

func (n *ForeachNode) Fingerprint() uint64 {
	h := utils.Mix64(uint64(NodeForeach), utils.U64(n.Collection))
	for _, s := range []string{n.Item, n.Index, n.Open, n.Close, n.Separator} {
		h = utils.Mix64(h, utils.U64(s))
	}
	return utils.Mix64(h, n.Contents.Fingerprint())
}

func itemizeName(name string, unique int) string {
	return itemPrefix + name + "_" + strconv.Itoa(unique)
}

// filteredContext rewrites parameter markers that reference the current
// item or index to their iteration-scoped aliases before the SQL reaches
// the underlying context.
type filteredContext struct {
	Context
	item   string
	index  string
	unique int
}

func newFiltered(inner Context, item, index string, unique int) *filteredContext {
	return &filteredContext{Context: inner, item: item, index: index, unique: unique}
}

func (f *filteredContext) AppendSQL(sql string) error {
	parser := statement.NewTokenParser("#{", "}", func(content string) (string, error) {
		rewritten := content
		if f.item != "" {
			rewritten = rewriteReference(rewritten, f.item, itemizeName(f.item, f.unique))
		}
		if f.index != "" {
			rewritten = rewriteReference(rewritten, f.index, itemizeName(f.index, f.unique))
		}
		return "#{" + rewritten + "}", nil
	})
	out, err := parser.Parse(sql)
	if err != nil {
		return err
	}
	return f.Context.AppendSQL(out)
}

// rewriteReference swaps a leading reference to name for its alias. The
// name only counts as a reference when followed by a property access,
// attribute separator, legacy type marker, whitespace, or the end of the
// marker, so names that merely share a prefix stay untouched.
func rewriteReference(content, name, alias string) string {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if !strings.HasPrefix(trimmed, name) {
		return content
	}
	rest := trimmed[len(name):]
	if rest != "" {
		switch rest[0] {
		case '.', ',', ':', ' ', '\t', '\r', '\n':
		default:
			return content
		}
	}
	return alias + rest
}
