// Package sqlnode implements the statement template tree. A template is a
// fixed, immutable composition of nodes; rendering walks the tree against
// a Context, accumulating SQL text and synthetic bindings. The node set is
// closed: one type per template construct, each implementing Node.
package sqlnode

type NodeType int

const (
	NodeStaticText NodeType = iota
	NodeText
	NodeIf
	NodeChoose
	NodeForeach
	NodeTrim
	NodeBind
	NodeMixed
)

// Node renders one fragment of a statement template. Apply reports whether
// the node contributed meaningful output (used by trim and choose logic).
// Fingerprint identifies the subtree for statement-level caching.
type Node interface {
	Type() NodeType
	Apply(ctx Context) (bool, error)
	Fingerprint() uint64
}
