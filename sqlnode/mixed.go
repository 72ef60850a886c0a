package sqlnode

import "github.com/Konsultn-Engineering/remap/utils"

// MixedNode applies a sequence of children in order. It reports true when
// any child contributed.
type MixedNode struct {
	Contents []Node
}

func NewMixed(contents ...Node) *MixedNode { return &MixedNode{Contents: contents} }

func (n *MixedNode) Type() NodeType { return NodeMixed }

func (n *MixedNode) Apply(ctx Context) (bool, error) {
	applied := false
	for _, child := range n.Contents {
		ok, err := child.Apply(ctx)
		if err != nil {
			return false, err
		}
		applied = applied || ok
	}
	return applied, nil
}

func (n *MixedNode) Fingerprint() uint64 {
	h := uint64(NodeMixed)
	for _, child := range n.Contents {
		h = utils.Mix64(h, child.Fingerprint())
	}
	return h
}
