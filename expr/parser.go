package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// node kinds for the parsed expression tree. The grammar is small and
// closed: literals, property paths, comparisons, boolean connectives.
type nodeKind int

const (
	nodeLiteral nodeKind = iota
	nodePath
	nodeNot
	nodeAnd
	nodeOr
	nodeCompare
)

type exprNode struct {
	kind    nodeKind
	literal any
	path    string
	op      string
	left    *exprNode
	right   *exprNode
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOp
	tokenLParen
	tokenRParen
)

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(input[i+1:], c)
			if end < 0 {
				return nil, &EvalError{Expr: input, Pos: i, Err: fmt.Errorf("unterminated string literal")}
			}
			tokens = append(tokens, token{tokenString, input[i+1 : i+1+end], i})
			i += end + 2
		case strings.ContainsRune("=!<>&|", rune(c)):
			op := string(c)
			if i+1 < len(input) && strings.ContainsRune("=&|", rune(input[i+1])) {
				op = input[i : i+2]
			}
			switch op {
			case "==", "!=", "<=", ">=", "&&", "||", "<", ">", "!":
				tokens = append(tokens, token{tokenOp, op, i})
				i += len(op)
			default:
				return nil, &EvalError{Expr: input, Pos: i, Err: fmt.Errorf("unexpected operator %q", op)}
			}
		case unicode.IsDigit(rune(c)) || (c == '-' && i+1 < len(input) && unicode.IsDigit(rune(input[i+1]))):
			j := i + 1
			for j < len(input) && (unicode.IsDigit(rune(input[j])) || input[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokenNumber, input[i:j], i})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i + 1
			for j < len(input) && (unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j])) || strings.ContainsRune("_.[]", rune(input[j]))) {
				j++
			}
			tokens = append(tokens, token{tokenIdent, input[i:j], i})
			i = j
		default:
			return nil, &EvalError{Expr: input, Pos: i, Err: fmt.Errorf("unexpected character %q", c)}
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(input)})
	return tokens, nil
}

type parser struct {
	input  string
	tokens []token
	pos    int
}

func parse(input string) (*exprNode, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, p.errorf("unexpected trailing input %q", p.peek().text)
	}
	return node, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &EvalError{Expr: p.input, Pos: p.peek().pos, Err: fmt.Errorf(format, args...)}
}

func (p *parser) parseOr() (*exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isConnective("||", "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isConnective("&&", "and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: nodeAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (*exprNode, error) {
	if p.isConnective("!", "not") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: nodeNot, left: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*exprNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokenOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return &exprNode{kind: nodeCompare, op: t.text, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (*exprNode, error) {
	t := p.peek()
	switch t.kind {
	case tokenLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, p.errorf("expected closing parenthesis")
		}
		p.next()
		return inner, nil
	case tokenNumber:
		p.next()
		if strings.ContainsRune(t.text, '.') {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, p.errorf("bad number literal %q", t.text)
			}
			return &exprNode{kind: nodeLiteral, literal: f}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad number literal %q", t.text)
		}
		return &exprNode{kind: nodeLiteral, literal: n}, nil
	case tokenString:
		p.next()
		return &exprNode{kind: nodeLiteral, literal: t.text}, nil
	case tokenIdent:
		p.next()
		switch t.text {
		case "true":
			return &exprNode{kind: nodeLiteral, literal: true}, nil
		case "false":
			return &exprNode{kind: nodeLiteral, literal: false}, nil
		case "nil", "null":
			return &exprNode{kind: nodeLiteral, literal: nil}, nil
		}
		return &exprNode{kind: nodePath, path: t.text}, nil
	default:
		return nil, p.errorf("expected value")
	}
}

func (p *parser) isConnective(symbol, word string) bool {
	t := p.peek()
	return (t.kind == tokenOp && t.text == symbol) || (t.kind == tokenIdent && t.text == word)
}
