package sqlnode

import (
	"strings"

	"github.com/Konsultn-Engineering/remap/utils"
)

// TrimNode renders its contents into a side buffer, strips at most one
// matching override from each end, then surrounds the remainder with the
// configured prefix and suffix. An empty body emits nothing.
type TrimNode struct {
	Contents        Node
	Prefix          string
	Suffix          string
	PrefixOverrides []string
	SuffixOverrides []string
}

func NewTrim(contents Node, prefix, suffix string, prefixOverrides, suffixOverrides []string) *TrimNode {
	return &TrimNode{
		Contents:        contents,
		Prefix:          prefix,
		Suffix:          suffix,
		PrefixOverrides: prefixOverrides,
		SuffixOverrides: suffixOverrides,
	}
}

// NewWhere builds the conventional WHERE wrapper: leading AND/OR from the
// first surviving condition is removed and the keyword prepended.
func NewWhere(contents Node) *TrimNode {
	return NewTrim(contents, "WHERE", "", []string{"AND ", "OR ", "AND\t", "OR\t", "AND\n", "OR\n"}, nil)
}

// NewSet builds the conventional SET wrapper for update statements,
// dropping dangling commas on either end.
func NewSet(contents Node) *TrimNode {
	return NewTrim(contents, "SET", "", []string{","}, []string{","})
}

func (n *TrimNode) Type() NodeType { return NodeTrim }

func (n *TrimNode) Apply(ctx Context) (bool, error) {
	capture := newCapture(ctx)
	applied, err := n.Contents.Apply(capture)
	if err != nil {
		return false, err
	}
	body := strings.TrimSpace(capture.SQL())
	if body == "" {
		return applied, nil
	}
	for _, override := range n.PrefixOverrides {
		if len(body) >= len(override) && strings.EqualFold(body[:len(override)], override) {
			body = body[len(override):]
			break
		}
	}
	for _, override := range n.SuffixOverrides {
		if len(body) >= len(override) && strings.EqualFold(body[len(body)-len(override):], override) {
			body = body[:len(body)-len(override)]
			break
		}
	}
	var out strings.Builder
	if n.Prefix != "" {
		out.WriteString(n.Prefix)
		out.WriteString(" ")
	}
	out.WriteString(body)
	if n.Suffix != "" {
		out.WriteString(" ")
		out.WriteString(n.Suffix)
	}
	if err := ctx.AppendSQL(out.String()); err != nil {
		return false, err
	}
	return applied, nil
}

func (n *TrimNode) Fingerprint() uint64 {
	h := utils.Mix64(uint64(NodeTrim), n.Contents.Fingerprint())
	h = utils.Mix64(h, utils.U64(n.Prefix))
	h = utils.Mix64(h, utils.U64(n.Suffix))
	for _, o := range n.PrefixOverrides {
		h = utils.Mix64(h, utils.U64(o))
	}
	for _, o := range n.SuffixOverrides {
		h = utils.Mix64(h, utils.U64(o))
	}
	return h
}
