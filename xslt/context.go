package xslt

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

// scope is a parent-chained variable binding, the same shape as the
// teacher's environ.Env[T] specialized to xpath.Value: each clone gets
// its own map and falls through to its parent on miss.
type scope struct {
	values map[string]xpath.Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{values: map[string]xpath.Value{}, parent: parent}
}

func (s *scope) define(name string, v xpath.Value) { s.values[name] = v }

func (s *scope) resolve(name string, localOnly bool) (xpath.Value, bool) {
	if v, ok := s.values[name]; ok {
		return v, true
	}
	if localOnly || s.parent == nil {
		return xpath.Value{}, false
	}
	return s.parent.resolve(name, false)
}

var numberLiteral = regexp.MustCompile(`^-?\d+(\.\d*)?$`)

// coerceSetVariable applies setVariable's string-literal coercion:
// 'true'/'false' become Boolean, a bare numeric literal becomes Number,
// everything else stays String.
func coerceSetVariable(v any) xpath.Value {
	switch t := v.(type) {
	case xpath.Value:
		return t
	case bool:
		return xpath.NewBoolean(t)
	case float64:
		return xpath.NewNumber(t)
	case []etree.Token:
		return xpath.NewNodeSet(t)
	case *etree.Element:
		// a result-tree fragment from a variable/param binding: represented
		// as a singleton node-set so StringValue/copy-of treat it the same
		// as any other node source.
		return xpath.NewNodeSet([]etree.Token{t})
	case string:
		switch t {
		case "true":
			return xpath.NewBoolean(true)
		case "false":
			return xpath.NewBoolean(false)
		}
		if numberLiteral.MatchString(t) {
			n, err := strconv.ParseFloat(t, 64)
			if err == nil {
				return xpath.NewNumber(n)
			}
		}
		return xpath.NewString(t)
	default:
		return xpath.NewString(fmt.Sprint(t))
	}
}

// Context is the per-invocation evaluation state: current
// transform/input node pair, 1-based position inside the active node
// list, the variable scope chain, mode (never inherited on clone), and
// the shared-by-identity Engine.
type Context struct {
	XslNode     *etree.Element
	ContextNode etree.Token
	NodeList    []etree.Token
	Index       int // 1-based position of ContextNode within NodeList
	Size        int
	Depth       int
	Mode        string

	InputURL     string
	TransformURL string

	CustomFunctions map[string]map[string]xpath.Function

	vars *scope

	Root etree.Token // input document root, fixed for the whole run

	TransformRoot *etree.Element // transform document root, for namespace lookups

	Engine *Engine

	xpCtx *xpath.Context
}

// rootContext builds the initial Context for one Process/Transform run.
func rootContext(input etree.Token, transformRoot *etree.Element, engine *Engine, inputURL, transformURL string) *Context {
	c := &Context{
		ContextNode:   input,
		NodeList:      []etree.Token{input},
		Index:         1,
		Size:          1,
		InputURL:      inputURL,
		TransformURL:  transformURL,
		vars:          newScope(nil),
		Root:          input,
		TransformRoot: transformRoot,
		Engine:        engine,
	}
	return c
}

// overrides bundles the fields clone(overrides) may replace;
// zero-valued fields mean "inherit from the caller."
type overrides struct {
	xslNode       *etree.Element
	contextNode   etree.Token
	nodeList      []etree.Token
	index         int
	size          int
	mode          *string // nil means "no mode" (reset, never inherited)
	resetVars     bool
	transformNode *etree.Element
}

func (c *Context) clone(o overrides) *Context {
	child := *c
	child.Depth = c.Depth + 1
	child.Mode = ""
	if o.mode != nil {
		child.Mode = *o.mode
	}
	if o.xslNode != nil {
		child.XslNode = o.xslNode
	}
	if o.contextNode != nil {
		child.ContextNode = o.contextNode
	}
	if o.nodeList != nil {
		child.NodeList = o.nodeList
	}
	if o.index != 0 {
		child.Index = o.index
	}
	if o.size != 0 {
		child.Size = o.size
	}
	if o.transformNode != nil {
		child.TransformRoot = o.transformNode
	}
	if o.resetVars {
		child.vars = newScope(nil)
	} else {
		child.vars = newScope(c.vars)
	}
	child.xpCtx = nil
	return &child
}

// withInputNode is the common case used by apply-templates/for-each/
// template dispatch: a fresh child scope focused on a new current node.
func (c *Context) withInputNode(n etree.Token, index, size int) *Context {
	return c.clone(overrides{contextNode: n, index: index, size: size})
}

func (c *Context) setVariable(name string, v any) {
	c.vars.define(name, coerceSetVariable(v))
}

func (c *Context) getVariable(name string, localOnly bool) (xpath.Value, bool) {
	return c.vars.resolve(name, localOnly)
}

func (c *Context) domHelper() domx.Helper {
	return domx.WrapWithNS(c.ContextNode, c.nsResolver())
}

// xpath builds (and memoizes per clone) the xpath.Context that mirrors
// this evaluation Context, chaining the namespace/variable/function
// resolvers together.
func (c *Context) xpath() *xpath.Context {
	if c.xpCtx != nil {
		return c.xpCtx
	}
	xc := &xpath.Context{
		Node:     c.ContextNode,
		Position: c.Index,
		Size:     c.Size,
		NS:       c.nsResolver(),
		Vars:     contextVarResolver{c},
		Funcs:    c.functionResolver(),
	}
	c.xpCtx = xc
	return xc
}

func qualifiedNameOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return xpath.QualifiedName(el)
}

func inputPath(n etree.Token) string {
	if n == nil {
		return ""
	}
	var parts []string
	for cur := n; cur != nil; cur = xpath.ParentOf(cur) {
		parts = append([]string{xpath.QualifiedName(cur)}, parts...)
	}
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		out += "/" + p
	}
	if out == "" {
		return "/"
	}
	return out
}
