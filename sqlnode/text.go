package sqlnode

import (
	"fmt"
	"strings"

	"github.com/Konsultn-Engineering/remap/expr"
	"github.com/Konsultn-Engineering/remap/statement"
	"github.com/Konsultn-Engineering/remap/utils"
)

// StaticTextNode emits its text verbatim. Parameter markers inside it are
// handled later by the tokenizer, not during rendering.
type StaticTextNode struct {
	Text string
}

func NewStaticText(text string) *StaticTextNode { return &StaticTextNode{Text: text} }

func (n *StaticTextNode) Type() NodeType { return NodeStaticText }

func (n *StaticTextNode) Apply(ctx Context) (bool, error) {
	if err := ctx.AppendSQL(n.Text); err != nil {
		return false, err
	}
	return strings.TrimSpace(n.Text) != "", nil
}

func (n *StaticTextNode) Fingerprint() uint64 {
	return utils.Mix64(uint64(NodeStaticText), utils.U64(n.Text))
}

// TextNode emits text after substituting every ${expr} against the
// context's combined bindings. Text without markers behaves exactly like
// StaticTextNode. A nil substitution renders as the empty string.
type TextNode struct {
	Text string
}

func NewText(text string) *TextNode { return &TextNode{Text: text} }

func (n *TextNode) Type() NodeType { return NodeText }

func (n *TextNode) Apply(ctx Context) (bool, error) {
	if !strings.Contains(n.Text, "${") {
		if err := ctx.AppendSQL(n.Text); err != nil {
			return false, err
		}
		return strings.TrimSpace(n.Text) != "", nil
	}
	parser := statement.NewTokenParser("${", "}", func(content string) (string, error) {
		value, err := expr.Eval(content, ctx)
		if err != nil {
			return "", err
		}
		if value == nil {
			return "", nil
		}
		return fmt.Sprintf("%v", value), nil
	})
	out, err := parser.Parse(n.Text)
	if err != nil {
		return false, err
	}
	if err := ctx.AppendSQL(out); err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (n *TextNode) Fingerprint() uint64 {
	return utils.Mix64(uint64(NodeText), utils.U64(n.Text))
}
