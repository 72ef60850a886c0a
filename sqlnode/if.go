package sqlnode

import (
	"github.com/Konsultn-Engineering/remap/expr"
	"github.com/Konsultn-Engineering/remap/utils"
)

// IfNode renders its contents only when the test expression is truthy.
type IfNode struct {
	Test     string
	Contents Node
}

func NewIf(test string, contents Node) *IfNode {
	return &IfNode{Test: test, Contents: contents}
}

func (n *IfNode) Type() NodeType { return NodeIf }

func (n *IfNode) Apply(ctx Context) (bool, error) {
	ok, err := expr.EvalBool(n.Test, ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := n.Contents.Apply(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (n *IfNode) Fingerprint() uint64 {
	h := utils.Mix64(uint64(NodeIf), utils.U64(n.Test))
	return utils.Mix64(h, n.Contents.Fingerprint())
}
