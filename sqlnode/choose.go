package sqlnode

import "github.com/Konsultn-Engineering/remap/utils"

// ChooseNode renders the first branch whose test passes. When no branch
// matches, the otherwise contents render instead, if present.
type ChooseNode struct {
	Whens     []*IfNode
	Otherwise Node
}

func NewChoose(whens []*IfNode, otherwise Node) *ChooseNode {
	return &ChooseNode{Whens: whens, Otherwise: otherwise}
}

func (n *ChooseNode) Type() NodeType { return NodeChoose }

func (n *ChooseNode) Apply(ctx Context) (bool, error) {
	for _, when := range n.Whens {
		ok, err := when.Apply(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if n.Otherwise != nil {
		if _, err := n.Otherwise.Apply(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (n *ChooseNode) Fingerprint() uint64 {
	h := uint64(NodeChoose)
	for _, when := range n.Whens {
		h = utils.Mix64(h, when.Fingerprint())
	}
	if n.Otherwise != nil {
		h = utils.Mix64(h, n.Otherwise.Fingerprint())
	}
	return h
}
