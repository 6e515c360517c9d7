// Package domx is the DOM Helper: uniform operations over the XML trees
// the engine reads (input, transform) and writes (output), built on top
// of github.com/beevik/etree. It plays the role of the "XML Node
// (external)" and "XML parser/serializer" collaborators the evaluator
// treats as given.
package domx

import "github.com/beevik/etree"

// XSLNamespaceURI is the fixed namespace of the transformation language
// itself; it is recognized regardless of whatever prefix a stylesheet
// chooses to bind it to.
const XSLNamespaceURI = "http://www.w3.org/1999/XSL/Transform"

const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

// NSResolver resolves a namespace prefix from the reserved xml binding
// and its Explicit table; it does not look at any element. Walking an
// element's ancestors for xmlns/xmlns:prefix declarations is
// ResolveOnElement's job.
type NSResolver struct {
	// Explicit holds prefix->URI overrides consulted before the DOM walk
	// (e.g. the transform document's statically-known bindings).
	Explicit map[string]string
}

func (r NSResolver) ResolveNamespace(prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespaceURI, true
	}
	if r.Explicit != nil {
		if uri, ok := r.Explicit[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// ResolveOnElement walks up from el looking for an xmlns declaration for
// prefix (the empty prefix means the default namespace).
func ResolveOnElement(el *etree.Element, prefix string) (string, bool) {
	attr := "xmlns"
	if prefix != "" {
		attr = "xmlns:" + prefix
	}
	for cur := el; cur != nil; cur = cur.Parent() {
		if v := cur.SelectAttrValue(attr, ""); v != "" {
			return v, true
		}
		if cur.Parent() == nil {
			break
		}
	}
	return "", false
}

// Pattern is one "[^]prefix:local" entry of an isA test list.
type Pattern struct {
	Negate bool
	Prefix string
	Local  string // "*" matches any local name
}

// ParsePatterns splits a space-free pattern list, such as the caller of
// isA would pass, into structured Patterns.
func ParsePatterns(names ...string) []Pattern {
	out := make([]Pattern, 0, len(names))
	for _, n := range names {
		var p Pattern
		if len(n) > 0 && n[0] == '^' {
			p.Negate = true
			n = n[1:]
		}
		if i := indexByte(n, ':'); i >= 0 {
			p.Prefix, p.Local = n[:i], n[i+1:]
		} else {
			p.Local = n
		}
		out = append(out, p)
	}
	return out
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
