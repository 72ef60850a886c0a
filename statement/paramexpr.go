package statement

import (
	"fmt"
	"strings"
)

// parseParamExpression parses the content of a #{} marker. Grammar:
//
//	inline-parameter = (propertyName | '(' expression ')') wireType attributes
//	wireType         = ':' name
//	attributes       = (',' name '=' value)*
//
// The result map carries "property" or "expression" plus any attributes;
// the legacy :TYPE suffix lands under "wireType".
func parseParamExpression(content string) (map[string]string, error) {
	out := make(map[string]string, 4)
	p := skipWS(content, 0)
	if p >= len(content) {
		return nil, fmt.Errorf("empty parameter marker")
	}
	if content[p] == '(' {
		if err := parseParenExpression(content, p+1, out); err != nil {
			return nil, err
		}
	} else if err := parseProperty(content, p, out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseParenExpression(content string, left int, out map[string]string) error {
	match := 1
	right := left
	for right < len(content) && match > 0 {
		switch content[right] {
		case ')':
			match--
		case '(':
			match++
		}
		right++
	}
	if match > 0 {
		return fmt.Errorf("unbalanced parentheses in parameter marker %q", content)
	}
	out["expression"] = content[left : right-1]
	return parseWireTypeOpt(content, right, out)
}

func parseProperty(content string, left int, out map[string]string) error {
	right := skipUntil(content, left, ",:")
	prop := strings.TrimSpace(content[left:right])
	if prop != "" {
		out["property"] = prop
	}
	return parseWireTypeOpt(content, right, out)
}

func parseWireTypeOpt(content string, p int, out map[string]string) error {
	p = skipWS(content, p)
	if p >= len(content) {
		return nil
	}
	switch content[p] {
	case ':':
		left := skipWS(content, p+1)
		right := skipUntil(content, left, ",")
		name := strings.TrimSpace(content[left:right])
		if name == "" {
			return fmt.Errorf("missing wire type after ':' at position %d in %q", p, content)
		}
		out["wireType"] = name
		return parseAttributes(content, right+1, out)
	case ',':
		return parseAttributes(content, p+1, out)
	default:
		return fmt.Errorf("unexpected character %q at position %d in parameter marker %q", content[p], p, content)
	}
}

func parseAttributes(content string, p int, out map[string]string) error {
	left := skipWS(content, p)
	if left >= len(content) {
		return nil
	}
	eq := skipUntil(content, left, "=")
	if eq >= len(content) {
		return fmt.Errorf("attribute without value at position %d in %q", left, content)
	}
	name := strings.TrimSpace(content[left:eq])
	valueEnd := skipUntil(content, eq+1, ",")
	value := strings.TrimSpace(content[eq+1 : valueEnd])
	if name == "" {
		return fmt.Errorf("empty attribute name at position %d in %q", left, content)
	}
	out[name] = value
	if valueEnd < len(content) {
		return parseAttributes(content, valueEnd+1, out)
	}
	return nil
}

func skipWS(s string, p int) int {
	for p < len(s) && s[p] <= ' ' {
		p++
	}
	return p
}

func skipUntil(s string, p int, stop string) int {
	for p < len(s) && !strings.ContainsRune(stop, rune(s[p])) {
		p++
	}
	return p
}
