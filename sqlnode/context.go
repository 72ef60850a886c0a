package sqlnode

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/remap/accessor"
)

// Context accumulates the output of one rendering pass: emitted SQL text,
// synthetic named bindings, and a monotonic counter for generated aliases.
// One Context serves one statement invocation and is then discarded.
//
// Decorator contexts (separator prefixes, per-iteration marker rewriting)
// intercept AppendSQL only and delegate everything else to the inner
// context.
type Context interface {
	AppendSQL(sql string) error
	Bind(name string, value any)
	Unbind(name string)
	Bindings() map[string]any
	Arg() any
	UniqueNumber() int
	SQL() string

	// Resolve makes every Context usable as an expr.Binding: synthetic
	// bindings shadow properties of the argument object.
	Resolve(name string) (any, bool)
}

type rootContext struct {
	arg      any
	bindings map[string]any
	sb       strings.Builder
	seq      int
}

// NewContext creates the root rendering context for one invocation.
func NewContext(arg any) Context {
	return &rootContext{arg: arg, bindings: make(map[string]any, 8)}
}

func (c *rootContext) AppendSQL(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil
	}
	if c.sb.Len() > 0 {
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString(trimmed)
	return nil
}

func (c *rootContext) Bind(name string, value any) { c.bindings[name] = value }

func (c *rootContext) Unbind(name string) { delete(c.bindings, name) }

func (c *rootContext) Bindings() map[string]any { return c.bindings }

func (c *rootContext) Arg() any { return c.arg }

func (c *rootContext) UniqueNumber() int {
	n := c.seq
	c.seq++
	return n
}

func (c *rootContext) SQL() string { return c.sb.String() }

func (c *rootContext) Resolve(name string) (any, bool) {
	if v, ok := c.bindings[name]; ok {
		return v, true
	}
	if c.arg == nil {
		return nil, false
	}
	if m, ok := c.arg.(map[string]any); ok {
		v, found := m[name]
		return v, found
	}
	if !accessor.HasProperty(reflect.TypeOf(c.arg), name) {
		return nil, false
	}
	v, err := accessor.Get(c.arg, name)
	if err != nil {
		return nil, false
	}
	return v, true
}

// captureContext renders a subtree into its own buffer while sharing
// bindings and sequence numbers with the inner context. Used by trim
// nodes to inspect their children's net output.
type captureContext struct {
	Context
	sb strings.Builder
}

func newCapture(inner Context) *captureContext {
	return &captureContext{Context: inner}
}

func (c *captureContext) AppendSQL(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil
	}
	if c.sb.Len() > 0 {
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString(trimmed)
	return nil
}

func (c *captureContext) SQL() string { return c.sb.String() }

// prefixedContext writes a prefix (typically a separator) before the
// first non-empty fragment appended through it.
type prefixedContext struct {
	Context
	prefix  string
	applied bool
}

func newPrefixed(inner Context, prefix string) *prefixedContext {
	return &prefixedContext{Context: inner, prefix: prefix}
}

func (c *prefixedContext) AppendSQL(sql string) error {
	if !c.applied && strings.TrimSpace(sql) != "" {
		if err := c.Context.AppendSQL(c.prefix); err != nil {
			return err
		}
		c.applied = true
	}
	return c.Context.AppendSQL(sql)
}
