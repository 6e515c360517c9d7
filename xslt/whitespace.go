package xslt

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/xpath"
)

// processWhitespace applies strip policy when no context element is
// given (attribute values); otherwise it looks up the element's policy
// in the engine's strip/preserve lists, falling back to normalize.
func (e *Engine) processWhitespace(value string, contextElement *etree.Element) string {
	policy := "strip"
	if contextElement != nil {
		policy = e.whitespacePolicy(contextElement)
	}
	switch policy {
	case "strip":
		return strings.TrimSpace(collapseRuns(value))
	case "preserve":
		return value
	default: // normalize
		return strings.Join(strings.Fields(value), " ")
	}
}

func collapseRuns(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (e *Engine) whitespacePolicy(el *etree.Element) string {
	local := el.Tag
	ns, _ := domainURIOf(el)
	for _, p := range e.StripSpace {
		if p.ns == ns && p.local == local {
			return "strip"
		}
	}
	for _, p := range e.PreserveSpace {
		if p.ns == ns && p.local == local {
			return "preserve"
		}
	}
	for _, p := range e.StripSpace {
		if p.local == "*" && (p.ns == ns || p.ns == "") {
			return "strip"
		}
	}
	for _, p := range e.PreserveSpace {
		if p.local == "*" && (p.ns == ns || p.ns == "") {
			return "preserve"
		}
	}
	return "normalize"
}

func domainURIOf(el *etree.Element) (string, bool) {
	if el.Space == "" {
		return "", false
	}
	uri, ok := elementResolveOnly(el)
	return uri, ok
}

func elementResolveOnly(el *etree.Element) (string, bool) {
	attr := "xmlns:" + el.Space
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

// passText reports whether a transform-side text node should produce
// output: non-whitespace text always does; whitespace-only text only
// under xsl:text or an ancestor carrying xml:space="preserve".
func passText(cd *etree.CharData) bool {
	if strings.TrimSpace(cd.Data) != "" {
		return true
	}
	parent := cd.Parent()
	if parent == nil {
		return false
	}
	if parent.Tag == "text" && xpath.Prefix(parent) == "xsl" {
		return true
	}
	for cur := parent; cur != nil; cur = cur.Parent() {
		if v := cur.SelectAttrValue("xml:space", ""); v == "preserve" {
			return true
		}
		if cur.Parent() == nil {
			break
		}
	}
	return false
}
