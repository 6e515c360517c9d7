package xpath

import (
	"fmt"
	"math"

	"github.com/beevik/etree"
)

type exprNode interface {
	eval(ctx *Context) (Value, error)
}

// Expr is a compiled XPath expression, safe for concurrent evaluation
// against independent contexts (it holds no mutable state of its own).
type Expr struct {
	root   exprNode
	source string
}

func (e Expr) String() string { return e.source }

// Eval runs the expression against ctx.
func (e Expr) Eval(ctx *Context) (Value, error) {
	if e.root == nil {
		return Value{}, fmt.Errorf("xpath: empty expression")
	}
	return e.root.eval(ctx)
}

// Compile parses src into a reusable Expr.
func Compile(src string) (Expr, error) { return Parse(src) }

// --- literals, variables, calls --------------------------------------

type litNode struct{ val Value }

func (n *litNode) eval(_ *Context) (Value, error) { return n.val, nil }

type varRefNode struct{ name string }

func (n *varRefNode) eval(ctx *Context) (Value, error) {
	if ctx.Vars == nil {
		return Value{}, fmt.Errorf("$%s: no variable bindings available", n.name)
	}
	v, ok := ctx.Vars.ResolveVariable(n.name)
	if !ok {
		return Value{}, fmt.Errorf("$%s: undefined variable", n.name)
	}
	return v, nil
}

type callNode struct {
	ns, local string
	args      []exprNode
}

func (n *callNode) eval(ctx *Context) (Value, error) {
	if ctx.Funcs == nil {
		return Value{}, fmt.Errorf("%s: no functions available", n.local)
	}
	fn, ok := ctx.Funcs.ResolveFunction(n.ns, n.local)
	if !ok {
		return Value{}, fmt.Errorf("%s: unknown function", n.local)
	}
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(ctx, args)
}

// --- arithmetic / comparison / boolean ---------------------------------

type negNode struct{ operand exprNode }

func (n *negNode) eval(ctx *Context) (Value, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	return NewNumber(-v.AsNumber()), nil
}

type arithNode struct {
	op          string
	left, right exprNode
}

func (n *arithNode) eval(ctx *Context) (Value, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	a, b := l.AsNumber(), r.AsNumber()
	switch n.op {
	case "+":
		return NewNumber(a + b), nil
	case "-":
		return NewNumber(a - b), nil
	case "*":
		return NewNumber(a * b), nil
	case "div":
		return NewNumber(a / b), nil
	case "mod":
		return NewNumber(math.Mod(a, b)), nil
	}
	return Value{}, fmt.Errorf("xpath: unknown arithmetic operator %q", n.op)
}

type cmpNode struct {
	op          string
	left, right exprNode
}

func (n *cmpNode) eval(ctx *Context) (Value, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(compareValues(n.op, l, r)), nil
}

// compareValues implements the XPath 1.0 general comparison rules,
// including the node-set broadcast semantics (compare every node's
// string-value against the other operand, true if any pair matches).
func compareValues(op string, l, r Value) bool {
	if l.Kind == NodeSet && r.Kind == NodeSet {
		for _, ln := range l.Nodes {
			for _, rn := range r.Nodes {
				if compareValues(op, NewString(StringValue(ln)), NewString(StringValue(rn))) {
					return true
				}
			}
		}
		return false
	}
	if l.Kind == NodeSet || r.Kind == NodeSet {
		ns, other := l, r
		if r.Kind == NodeSet {
			ns, other = r, l
		}
		if other.Kind == Boolean {
			b := NewBoolean(len(ns.Nodes) > 0)
			if r.Kind == NodeSet {
				return compareValues(op, other, b)
			}
			return compareValues(op, b, other)
		}
		for _, node := range ns.Nodes {
			var candidate Value
			switch other.Kind {
			case Number:
				candidate = NewNumber(parseNumber(StringValue(node)))
			default:
				candidate = NewString(StringValue(node))
			}
			a, b := candidate, other
			if r.Kind == NodeSet {
				a, b = other, candidate
			}
			if compareValues(op, a, b) {
				return true
			}
		}
		return false
	}
	switch op {
	case "=", "!=":
		var eq bool
		switch {
		case l.Kind == Boolean || r.Kind == Boolean:
			eq = l.AsBool() == r.AsBool()
		case l.Kind == Number || r.Kind == Number:
			eq = l.AsNumber() == r.AsNumber()
		default:
			eq = l.AsString() == r.AsString()
		}
		if op == "!=" {
			return !eq
		}
		return eq
	default:
		a, b := l.AsNumber(), r.AsNumber()
		switch op {
		case "<":
			return a < b
		case "<=":
			return a <= b
		case ">":
			return a > b
		case ">=":
			return a >= b
		}
	}
	return false
}

type boolOpNode struct {
	op          string
	left, right exprNode
}

func (n *boolOpNode) eval(ctx *Context) (Value, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if n.op == "and" && !l.AsBool() {
		return NewBoolean(false), nil
	}
	if n.op == "or" && l.AsBool() {
		return NewBoolean(true), nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(r.AsBool()), nil
}

type unionNode struct{ parts []exprNode }

func (n *unionNode) eval(ctx *Context) (Value, error) {
	var all []etree.Token
	for _, p := range n.parts {
		v, err := p.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		nodes, err := v.AsNodeSet()
		if err != nil {
			return Value{}, fmt.Errorf("union: %w", err)
		}
		all = append(all, nodes...)
	}
	return NewNodeSet(all), nil
}

// --- location paths ------------------------------------------------------

type locationPathNode struct{ path locationPath }

func (n *locationPathNode) eval(ctx *Context) (Value, error) {
	start := []etree.Token{ctx.Node}
	if n.path.absolute {
		start = []etree.Token{Root(ctx.Node)}
	}
	nodes, err := evalSteps(ctx, start, n.path.steps)
	if err != nil {
		return Value{}, err
	}
	return NewNodeSet(nodes), nil
}

// pathFromNode evaluates a FilterExpr (e.g. a variable or parenthesised
// expression) then walks a relative path rooted at each resulting node.
type pathFromNode struct {
	base exprNode
	path locationPath
}

func (n *pathFromNode) eval(ctx *Context) (Value, error) {
	v, err := n.base.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	nodes, err := v.AsNodeSet()
	if err != nil {
		return Value{}, fmt.Errorf("path expression base: %w", err)
	}
	out, err := evalSteps(ctx, nodes, n.path.steps)
	if err != nil {
		return Value{}, err
	}
	return NewNodeSet(out), nil
}

type filterNode struct {
	primary exprNode
	preds   []exprNode
}

func (n *filterNode) eval(ctx *Context) (Value, error) {
	v, err := n.primary.eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != NodeSet {
		if len(n.preds) == 0 {
			return v, nil
		}
		return Value{}, fmt.Errorf("xpath: predicate applied to non-node-set")
	}
	nodes := v.Nodes
	for _, pred := range n.preds {
		nodes, err = applyPredicate(ctx, nodes, pred)
		if err != nil {
			return Value{}, err
		}
	}
	return NewNodeSet(nodes), nil
}

func evalSteps(ctx *Context, start []etree.Token, steps []step) ([]etree.Token, error) {
	current := start
	for _, st := range steps {
		var next []etree.Token
		for _, n := range current {
			cands := axisNodes(st.axis, n)
			for _, c := range cands {
				if matchesTest(st.test, st.axis, c) {
					next = append(next, c)
				}
			}
		}
		for _, pred := range st.preds {
			var err error
			next, err = applyPredicate(ctx, next, pred)
			if err != nil {
				return nil, err
			}
		}
		current = dedupOrdered(next)
	}
	return current, nil
}

// applyPredicate filters a node-set by a predicate expression, handling
// the XPath 1.0 rule that a bare numeric predicate means position()=N.
func applyPredicate(ctx *Context, nodes []etree.Token, pred exprNode) ([]etree.Token, error) {
	var out []etree.Token
	size := len(nodes)
	for i, n := range nodes {
		sub := ctx.withNode(n, i+1, size)
		v, err := pred.eval(sub)
		if err != nil {
			return nil, err
		}
		var keep bool
		if v.Kind == Number {
			keep = v.Num == float64(i+1)
		} else {
			keep = v.AsBool()
		}
		if keep {
			out = append(out, n)
		}
	}
	return out, nil
}

func matchesTest(t nodeTest, ax axis, n etree.Token) bool {
	if ax == axisAttribute {
		if t.anyNode {
			return Kind(n) == KindAttribute
		}
		if Kind(n) != KindAttribute {
			return false
		}
		return nameMatches(t, n)
	}
	switch t.kind {
	case "text":
		return Kind(n) == KindText
	case "comment":
		return Kind(n) == KindComment
	case "processing-instruction":
		if Kind(n) != KindInstruction {
			return false
		}
		return t.piTarget == "" || LocalName(n) == t.piTarget
	}
	if t.anyNode {
		return true
	}
	if Kind(n) != KindElement {
		return false
	}
	return nameMatches(t, n)
}

// nameMatches compares raw source-text prefixes, not resolved namespace
// URIs: etree does not expose a node's resolved namespace independently
// of its declaring xmlns attribute, so a prefixed node test only
// matches nodes written with the identical prefix. A known subset
// limitation relative to full XPath 1.0 namespace-aware matching.
func nameMatches(t nodeTest, n etree.Token) bool {
	if t.hasNS && Prefix(n) != t.ns {
		return false
	}
	if t.local == "*" {
		return true
	}
	return LocalName(n) == t.local
}

func axisNodes(ax axis, n etree.Token) []etree.Token {
	switch ax {
	case axisChild:
		return Children(n)
	case axisAttribute:
		return Attributes(n)
	case axisSelf:
		return []etree.Token{n}
	case axisParent:
		if p := ParentOf(n); p != nil {
			return []etree.Token{p}
		}
		return nil
	case axisAncestor:
		return ancestors(n, false)
	case axisAncestorOrSelf:
		return ancestors(n, true)
	case axisDescendant:
		return descendants(n, false)
	case axisDescendantOrSelf:
		return descendants(n, true)
	case axisFollowingSibling:
		return siblings(n, 1)
	case axisPrecedingSibling:
		return siblings(n, -1)
	}
	return nil
}

func ancestors(n etree.Token, self bool) []etree.Token {
	var out []etree.Token
	if self {
		out = append(out, n)
	}
	cur := n
	for {
		p := ParentOf(cur)
		if p == nil {
			break
		}
		out = append(out, p)
		cur = p
	}
	return out
}

func descendants(n etree.Token, self bool) []etree.Token {
	var out []etree.Token
	if self {
		out = append(out, n)
	}
	for _, c := range Children(n) {
		out = append(out, descendants(c, true)...)
	}
	return out
}

func siblings(n etree.Token, dir int) []etree.Token {
	parent := ParentOf(n)
	if parent == nil {
		return nil
	}
	children := Children(parent)
	idx := -1
	for i, c := range children {
		if c == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var out []etree.Token
	if dir > 0 {
		out = append(out, children[idx+1:]...)
	} else {
		for i := idx - 1; i >= 0; i-- {
			out = append(out, children[i])
		}
	}
	return out
}
