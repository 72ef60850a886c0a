package sqlnode

import (
	"github.com/Konsultn-Engineering/remap/expr"
	"github.com/Konsultn-Engineering/remap/utils"
)

// BindNode evaluates an expression once and publishes the result under a
// name visible to the rest of the render. It emits no SQL itself.
type BindNode struct {
	Name       string
	Expression string
}

func NewBind(name, expression string) *BindNode {
	return &BindNode{Name: name, Expression: expression}
}

func (n *BindNode) Type() NodeType { return NodeBind }

func (n *BindNode) Apply(ctx Context) (bool, error) {
	value, err := expr.Eval(n.Expression, ctx)
	if err != nil {
		return false, err
	}
	ctx.Bind(n.Name, value)
	return true, nil
}

func (n *BindNode) Fingerprint() uint64 {
	h := utils.Mix64(uint64(NodeBind), utils.U64(n.Name))
	return utils.Mix64(h, utils.U64(n.Expression))
}
