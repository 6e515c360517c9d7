package xslt

import (
	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

// nsResolver feeds domx.WrapWithNS. "xsl" always resolves to the XSLT
// namespace regardless of this resolver's table; prefix lookups that
// need the governing transform node go through resolveNamespace instead.
func (c *Context) nsResolver() domx.NSResolver {
	return domx.NSResolver{}
}

// resolveNamespace resolves prefix against the transform: the fixed xml
// and xsl bindings, then xmlns declarations on the transform root and the
// current instruction. function-available(), xsl:strip-space and
// xsl:preserve-space registration and xsl:function lookup use it; XPath
// evaluation contexts carry nsResolver instead.
func (c *Context) resolveNamespace(prefix string) (string, bool) {
	if prefix == "xml" {
		return "http://www.w3.org/XML/1998/namespace", true
	}
	if prefix == "xsl" {
		return domx.XSLNamespaceURI, true
	}
	if c.TransformRoot != nil {
		if uri, ok := domx.ResolveOnElement(c.TransformRoot, prefix); ok {
			return uri, true
		}
	}
	if c.XslNode != nil {
		if uri, ok := domx.ResolveOnElement(c.XslNode, prefix); ok {
			return uri, true
		}
	}
	return "", false
}

type xslNSResolver struct{ c *Context }

func (r xslNSResolver) ResolveNamespace(prefix string) (string, bool) { return r.c.resolveNamespace(prefix) }

// contextVarResolver implements xpath.VariableResolver by delegating to
// Context.getVariable.
type contextVarResolver struct{ c *Context }

func (r contextVarResolver) ResolveVariable(name string) (xpath.Value, bool) {
	return r.c.getVariable(name, false)
}

// functionResolver chains lookup in priority order: XPath core library,
// then the XSLT function library, then caller-supplied custom
// functions, then xsl:function declarations in the stylesheet.
func (c *Context) functionResolver() xpath.FunctionResolver {
	return chainedResolver{c: c}
}

type chainedResolver struct{ c *Context }

func (r chainedResolver) ResolveFunction(ns, local string) (xpath.Function, bool) {
	if ns == "" {
		if fn, ok := xpath.CoreFunctions.ResolveFunction(ns, local); ok {
			return fn, true
		}
		if fn, ok := xsltFunction(r.c, local); ok {
			return fn, true
		}
	}
	if ns != "" {
		if byLocal, ok := r.c.CustomFunctions[ns]; ok {
			if fn, ok := byLocal[local]; ok {
				return fn, true
			}
		}
	}
	if fn, ok := r.c.Engine.resolveStylesheetFunction(r.c, ns, local); ok {
		return fn, true
	}
	return nil, false
}
