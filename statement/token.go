package statement

import (
	"fmt"
	"strings"
)

// TokenParser scans text for open...close markers and hands each marker's
// content to a handler, splicing the handler's output into the result.
// A backslash before the open token escapes it.
type TokenParser struct {
	open    string
	close   string
	handler func(content string) (string, error)
}

func NewTokenParser(open, close string, handler func(string) (string, error)) *TokenParser {
	return &TokenParser{open: open, close: close, handler: handler}
}

func (p *TokenParser) Parse(text string) (string, error) {
	if !strings.Contains(text, p.open) {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	offset := 0
	for {
		start := strings.Index(text[offset:], p.open)
		if start < 0 {
			break
		}
		start += offset
		if start > 0 && text[start-1] == '\\' {
			// Escaped marker: emit it literally, minus the backslash.
			b.WriteString(text[offset : start-1])
			b.WriteString(p.open)
			offset = start + len(p.open)
			continue
		}
		end := strings.Index(text[start+len(p.open):], p.close)
		if end < 0 {
			return "", fmt.Errorf("statement: unterminated %s...%s marker at position %d", p.open, p.close, start)
		}
		end += start + len(p.open)
		b.WriteString(text[offset:start])
		replaced, err := p.handler(text[start+len(p.open) : end])
		if err != nil {
			return "", fmt.Errorf("statement: marker at position %d: %w", start, err)
		}
		b.WriteString(replaced)
		offset = end + len(p.close)
	}
	b.WriteString(text[offset:])
	return b.String(), nil
}
