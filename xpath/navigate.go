package xpath

import (
	"strings"

	"github.com/beevik/etree"
)

// NodeKind mirrors the DOM node types the evaluator needs to distinguish
// while walking a tree: {Document, Element, Attribute, Text, Comment,
// ProcessingInstruction}. CDATA sections are reported as Text, matching
// XPath 1.0's string-value semantics (CDATA has no node type of its own).
type NodeKind int

const (
	KindDocument NodeKind = iota
	KindElement
	KindAttribute
	KindText
	KindComment
	KindInstruction
)

// attrToken adapts an etree.Attr (which is a value type, not an
// etree.Token) so it can flow through node-sets alongside real tokens.
// The attribute:: axis and @name abbreviation are the only producers.
type attrToken struct {
	owner *etree.Element
	attr  *etree.Attr
}

func (a *attrToken) Parent() *etree.Element { return a.owner }

// WrapAttribute returns the node-set token for an attribute of el.
func WrapAttribute(el *etree.Element, a *etree.Attr) etree.Token {
	return &attrToken{owner: el, attr: a}
}

// IsDocumentNode reports whether e is the synthetic element etree uses to
// hold a document's top-level children (the root Element embedded in
// *etree.Document). It has no tag of its own and no parent.
func IsDocumentNode(e *etree.Element) bool {
	return e != nil && e.Parent() == nil && e.Tag == ""
}

// Root walks up to the outermost ancestor of t (the document node, for a
// token that belongs to a parsed document).
func Root(t etree.Token) etree.Token {
	cur := t
	for {
		p := ParentOf(cur)
		if p == nil {
			return cur
		}
		cur = p
	}
}

// ParentOf returns the logical parent of a token, or nil at the top.
func ParentOf(t etree.Token) etree.Token {
	switch v := t.(type) {
	case *etree.Element:
		if v.Parent() == nil {
			return nil
		}
		return v.Parent()
	case *attrToken:
		return v.owner
	default:
		if p := t.Parent(); p != nil {
			return p
		}
		return nil
	}
}

func Kind(t etree.Token) NodeKind {
	switch v := t.(type) {
	case *etree.Element:
		if IsDocumentNode(v) {
			return KindDocument
		}
		return KindElement
	case *attrToken:
		return KindAttribute
	case *etree.CharData:
		return KindText
	case *etree.Comment:
		return KindComment
	case *etree.ProcInst:
		return KindInstruction
	default:
		return KindText
	}
}

// LocalName returns the unprefixed name of an element/attribute/PI token.
func LocalName(t etree.Token) string {
	switch v := t.(type) {
	case *etree.Element:
		return v.Tag
	case *attrToken:
		return v.attr.Key
	case *etree.ProcInst:
		return v.Target
	default:
		return ""
	}
}

// Prefix returns the raw source-text namespace prefix of a token, if any.
func Prefix(t etree.Token) string {
	switch v := t.(type) {
	case *etree.Element:
		return v.Space
	case *attrToken:
		return v.attr.Space
	default:
		return ""
	}
}

// QualifiedName returns "prefix:local" or "local" for named tokens.
func QualifiedName(t etree.Token) string {
	p, l := Prefix(t), LocalName(t)
	if p == "" {
		return l
	}
	return p + ":" + l
}

// Children returns the ordered child tokens of a container token.
func Children(t etree.Token) []etree.Token {
	el, ok := t.(*etree.Element)
	if !ok {
		return nil
	}
	return el.Child
}

// Attributes returns the attribute tokens of an element.
func Attributes(t etree.Token) []etree.Token {
	el, ok := t.(*etree.Element)
	if !ok {
		return nil
	}
	out := make([]etree.Token, 0, len(el.Attr))
	for i := range el.Attr {
		out = append(out, WrapAttribute(el, &el.Attr[i]))
	}
	return out
}

// StringValue computes the XPath 1.0 string-value of a node.
func StringValue(t etree.Token) string {
	switch v := t.(type) {
	case *etree.Element:
		var b strings.Builder
		collectText(v, &b)
		return b.String()
	case *attrToken:
		return v.attr.Value
	case *etree.CharData:
		return v.Data
	case *etree.Comment:
		return v.Data
	case *etree.ProcInst:
		return v.Inst
	default:
		return ""
	}
}

func collectText(el *etree.Element, b *strings.Builder) {
	for _, c := range el.Child {
		switch v := c.(type) {
		case *etree.CharData:
			b.WriteString(v.Data)
		case *etree.Element:
			collectText(v, b)
		}
	}
}

// DocumentOrderLess reports whether a precedes b in document order. Nodes
// must belong to the same document; nodes of different documents are
// compared by their child-index paths alone, which orders them arbitrarily.
func DocumentOrderLess(a, b etree.Token) bool {
	if a == b {
		return false
	}
	pa, pb := pathOf(a), pathOf(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

// pathOf returns the sequence of child indices from the document node down
// to t, used to order nodes without a dedicated tree-position field.
func pathOf(t etree.Token) []int {
	var path []int
	cur := t
	for {
		parent := ParentOf(cur)
		if parent == nil {
			break
		}
		idx := indexIn(parent, cur)
		path = append([]int{idx}, path...)
		cur = parent
	}
	return path
}

func indexIn(parent, child etree.Token) int {
	if at, ok := child.(*attrToken); ok {
		el, ok := parent.(*etree.Element)
		if !ok {
			return 0
		}
		for i := range el.Attr {
			if &el.Attr[i] == at.attr {
				return -len(el.Attr) + i // attributes sort before children, stable among themselves
			}
		}
		return 0
	}
	children := Children(parent)
	for i, c := range children {
		if c == child {
			return i
		}
	}
	return 0
}
