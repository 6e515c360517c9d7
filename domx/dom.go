package domx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Helper wraps a single node and exposes a uniform set of navigation
// and construction operations over it. NS supplies prefix bindings
// consulted before the xmlns declarations on the node's ancestors.
type Helper struct {
	Node etree.Token
	NS   NSResolver
}

func Wrap(n etree.Token) Helper { return Helper{Node: n} }

func WrapWithNS(n etree.Token, ns NSResolver) Helper { return Helper{Node: n, NS: ns} }

// ResolvedNamespaceURI resolves the namespace URI of the wrapped node's
// own prefix, recognizing "xsl" specially regardless of what it is
// bound to in a particular document.
func (h Helper) ResolvedNamespaceURI() string {
	el, ok := h.Node.(*etree.Element)
	if !ok {
		return ""
	}
	return resolvePrefixURI(el, el.Space, h.NS)
}

func resolvePrefixURI(el *etree.Element, prefix string, resolver NSResolver) string {
	if prefix == "xsl" {
		return XSLNamespaceURI
	}
	if uri, ok := resolver.ResolveNamespace(prefix); ok {
		return uri
	}
	if uri, ok := ResolveOnElement(el, prefix); ok {
		return uri
	}
	return ""
}

// IsA is an element-only name/namespace test: at least one non-negated
// pattern must match (when present) and no negated pattern may match.
func (h Helper) IsA(patterns []Pattern) bool {
	el, ok := h.Node.(*etree.Element)
	if !ok {
		return false
	}
	ownURI := h.ResolvedNamespaceURI()
	hasPositive := false
	matchedPositive := false
	for _, p := range patterns {
		if !p.Negate {
			hasPositive = true
		}
		wantURI := resolvePrefixURI(el, p.Prefix, h.NS)
		if p.Prefix == "" {
			wantURI = ownURI // unprefixed pattern matches whatever namespace the node itself is in
		}
		nameOK := p.Local == "*" || p.Local == el.Tag
		uriOK := p.Prefix == "" || wantURI == ownURI
		if nameOK && uriOK {
			if p.Negate {
				return false
			}
			matchedPositive = true
		}
	}
	if !hasPositive {
		return true
	}
	return matchedPositive
}

// Attribute returns an attribute value with XML entity references decoded,
// or ok=false when the attribute is absent.
func (h Helper) Attribute(name string) (string, bool) {
	el, ok := h.Node.(*etree.Element)
	if !ok {
		return "", false
	}
	a := el.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return DecodeEntities(a.Value), true
}

// PreviousElementSibling skips non-element siblings.
func PreviousElementSibling(n etree.Token) *etree.Element {
	parent := parentElement(n)
	if parent == nil {
		return nil
	}
	idx := indexOf(parent, n)
	for i := idx - 1; i >= 0; i-- {
		if el, ok := parent.Child[i].(*etree.Element); ok {
			return el
		}
	}
	return nil
}

// NextElementSibling skips non-element siblings.
func NextElementSibling(n etree.Token) *etree.Element {
	parent := parentElement(n)
	if parent == nil {
		return nil
	}
	idx := indexOf(parent, n)
	for i := idx + 1; i < len(parent.Child); i++ {
		if el, ok := parent.Child[i].(*etree.Element); ok {
			return el
		}
	}
	return nil
}

func parentElement(n etree.Token) *etree.Element {
	if el, ok := n.(*etree.Element); ok {
		return el.Parent()
	}
	return nil
}

func indexOf(parent *etree.Element, n etree.Token) int {
	for i, c := range parent.Child {
		if c == n {
			return i
		}
	}
	return -1
}

// CreateElement creates a child element on the wrapped destination node.
func (h Helper) CreateElement(name string) (*etree.Element, error) {
	dest, err := h.destElement()
	if err != nil {
		return nil, err
	}
	prefix, local := "", name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix, local = name[:i], name[i+1:]
	}
	el := dest.CreateElement(local)
	el.Space = prefix
	return el, nil
}

// CreateElementNS creates a child element and stamps an xmlns declaration
// for it when ns is non-empty and not already in scope.
func (h Helper) CreateElementNS(ns, name string) (*etree.Element, error) {
	el, err := h.CreateElement(name)
	if err != nil {
		return nil, err
	}
	if ns == "" {
		return el, nil
	}
	attr := "xmlns"
	if el.Space != "" {
		attr = "xmlns:" + el.Space
	}
	if cur, ok := ResolveOnElement(el, el.Space); !ok || cur != ns {
		el.CreateAttr(attr, ns)
	}
	return el, nil
}

// CreateTextNode collapses runs of ASCII spaces to a single space;
// further whitespace policy is the driver's job.
func (h Helper) CreateTextNode(text string) (*etree.CharData, error) {
	dest, err := h.destElement()
	if err != nil {
		return nil, err
	}
	return dest.CreateText(collapseSpaces(text)), nil
}

func (h Helper) CreateProcessingInstruction(target, data string) (*etree.ProcInst, error) {
	dest, err := h.destElement()
	if err != nil {
		return nil, err
	}
	return dest.CreateProcInst(target, data), nil
}

func (h Helper) destElement() (*etree.Element, error) {
	el, ok := h.Node.(*etree.Element)
	if !ok {
		return nil, fmt.Errorf("domx: destination node is not element-capable")
	}
	return el, nil
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' {
			if lastSpace {
				continue
			}
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Copy performs a shallow copy of src into the wrapped destination node
// and returns the created token. Elements, character data, comments and
// processing instructions are supported; any other token is an error.
func (h Helper) Copy(src etree.Token) (etree.Token, error) {
	switch v := src.(type) {
	case *etree.Element:
		dst, err := h.destElement()
		if err != nil {
			return nil, err
		}
		el := dst.CreateElement(v.Tag)
		el.Space = v.Space
		for _, a := range v.Attr {
			if a.Space == "xmlns" || a.Key == "xmlns" {
				continue
			}
			el.CreateAttr(qualifiedAttr(a), a.Value)
		}
		return el, nil
	case *etree.CharData:
		dst, err := h.destElement()
		if err != nil {
			return nil, err
		}
		cd := dst.CreateCharData(v.Data)
		cd.IsCDATA = v.IsCDATA
		return cd, nil
	case *etree.Comment:
		dst, err := h.destElement()
		if err != nil {
			return nil, err
		}
		return dst.CreateComment(v.Data), nil
	case *etree.ProcInst:
		dst, err := h.destElement()
		if err != nil {
			return nil, err
		}
		return dst.CreateProcInst(v.Target, v.Inst), nil
	default:
		return nil, fmt.Errorf("domx: unsupported node kind for copy")
	}
}

func qualifiedAttr(a etree.Attr) string {
	if a.Space == "" {
		return a.Key
	}
	return a.Space + ":" + a.Key
}

// CopyDeep recursively copies src (attributes then children) into the
// wrapped destination. For fragment/document sources, it copies every
// top-level child and returns the last one created.
func (h Helper) CopyDeep(src etree.Token) (etree.Token, error) {
	if el, ok := src.(*etree.Element); ok && (el.Tag == "" || IsFragmentLike(el)) {
		var last etree.Token
		for _, c := range el.Child {
			n, err := h.CopyDeep(c)
			if err != nil {
				return nil, err
			}
			last = n
		}
		return last, nil
	}
	created, err := h.Copy(src)
	if err != nil {
		return nil, err
	}
	if el, ok := created.(*etree.Element); ok {
		srcEl := src.(*etree.Element)
		childHelper := Helper{Node: el, NS: h.NS}
		for _, c := range srcEl.Child {
			if _, err := childHelper.CopyDeep(c); err != nil {
				return nil, err
			}
		}
	}
	return created, nil
}

// IsFragmentLike reports whether el is being used as a detached
// DocumentFragment container rather than a real, named element.
func IsFragmentLike(el *etree.Element) bool {
	return el.Tag == "" && el.Space == ""
}

// NewFragment returns a detached element used purely as a
// DocumentFragment container: its own tag is never serialized, only
// its children are.
func NewFragment() *etree.Element {
	return etree.NewElement("")
}

// TextContent concatenates the text of the wrapped node (or, for a
// document/element, all its descendant text).
func (h Helper) TextContent() string {
	return textContentOf(h.Node)
}

func textContentOf(n etree.Token) string {
	switch v := n.(type) {
	case *etree.Element:
		var b strings.Builder
		for _, c := range v.Child {
			switch cc := c.(type) {
			case *etree.CharData:
				b.WriteString(cc.Data)
			case *etree.Element:
				b.WriteString(textContentOf(cc))
			}
		}
		return b.String()
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
