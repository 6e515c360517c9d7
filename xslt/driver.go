package xslt

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
)

// processOpts carries processChildNodes' iteration options.
type processOpts struct {
	ignoreText bool
	filter     []string // qualified local names to allow through; nil means "all"
	noClone    bool
}

// handlerFunc is one instruction handler contract: given the xsl:*
// element and the output node to append to, mutate output/ctx and
// return any error; template firing reports its own result through
// fireTemplate rather than through this contract.
type handlerFunc func(ctx context.Context, c *Context, node, output *etree.Element) error

var handlerTable map[string]handlerFunc

func init() {
	handlerTable = map[string]handlerFunc{
		"stylesheet":       hStylesheet,
		"transform":        hStylesheet,
		"template":         hTemplateNoOp,
		"apply-templates":  hApplyTemplates,
		"call-template":    hCallTemplate,
		"for-each":         hForEach,
		"if":               hIf,
		"choose":           hChoose,
		"copy":             hCopy,
		"copy-of":          hCopyOf,
		"element":          hElement,
		"attribute":        hAttribute,
		"text":             hText,
		"value-of":         hValueOf,
		"variable":         hVariable,
		"param":            hParam,
		"with-param":       hNoOp,
		"output":           hOutput,
		"strip-space":      hStripSpace,
		"preserve-space":   hPreserveSpace,
		"decimal-format":   hDecimalFormat,
		"comment":          hComment,
		"processing-instruction": hProcessingInstruction,
		"sort":             hNoOp,
		"include":          hNoOp,
		"import":           hNoOp,
		"function":         hNoOp,
		"key":              hNoOp,
		"message":          hMessage,
		"number":           hNumber,
	}
}

// process dispatches a single transform node: literal result elements
// go through passThrough, XSLT instructions through handlerTable.
func process(ctx context.Context, c *Context, node, output *etree.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isXSLElement(node) {
		return passThrough(ctx, c, node, output)
	}
	local := node.Tag
	handler, ok := handlerTable[local]
	if !ok {
		return wrapErr(qualifiedNameOf(node), inputPath(c.ContextNode), fmt.Errorf("%w: %s", ErrNotImplemented, local))
	}
	sub := c.clone(overrides{xslNode: node})
	sub.vars = c.vars // bind into the caller's scope so following siblings see xsl:variable/xsl:param
	c.Engine.Tracer.Enter(sub)
	err := handler(ctx, sub, node, output)
	if err != nil {
		c.Engine.Tracer.Error(sub, err)
		return wrapErr(qualifiedNameOf(node), inputPath(c.ContextNode), err)
	}
	c.Engine.Tracer.Leave(sub)
	return nil
}

func isXSLElement(el *etree.Element) bool {
	return domx.Helper{Node: el}.ResolvedNamespaceURI() == domx.XSLNamespaceURI
}

// passThrough copies a literal result element to the output, resolving
// AVTs on each attribute, then recurses into its children.
func passThrough(ctx context.Context, c *Context, node, output *etree.Element) error {
	dest := output.CreateElement(node.Tag)
	dest.Space = node.Space
	for _, a := range node.Attr {
		if a.Space == "xmlns" || a.Key == "xmlns" {
			dest.CreateAttr(qualifiedAttrName(a), a.Value)
			continue
		}
		resolved := c.resolveExpression(a.Value)
		dest.CreateAttr(qualifiedAttrName(a), resolved)
	}
	return processChildNodes(ctx, c, node, dest, processOpts{})
}

func qualifiedAttrName(a etree.Attr) string {
	if a.Space == "" {
		return a.Key
	}
	return a.Space + ":" + a.Key
}

// processChildNodes walks node's children, dispatching each element
// through process and copying or dropping text per the whitespace rules
// in opts.
func processChildNodes(ctx context.Context, c *Context, node, output *etree.Element, opts processOpts) error {
	sub := c
	if !opts.noClone {
		sub = c.clone(overrides{})
	}
	for _, child := range node.Child {
		switch v := child.(type) {
		case *etree.Element:
			if opts.filter != nil && !matchesFilter(v, opts.filter) {
				continue
			}
			if err := process(ctx, sub, v, output); err != nil {
				return err
			}
		case *etree.CharData:
			if opts.ignoreText {
				continue
			}
			if strings.TrimSpace(v.Data) != "" {
				output.CreateText(v.Data)
			} else if passText(v) {
				output.CreateText(" ")
			}
		}
	}
	return nil
}

func matchesFilter(el *etree.Element, names []string) bool {
	for _, n := range names {
		if el.Tag == n {
			return true
		}
	}
	return false
}
