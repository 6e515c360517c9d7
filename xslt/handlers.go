package xslt

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

func hNoOp(_ context.Context, _ *Context, _, _ *etree.Element) error { return nil }

func hTemplateNoOp(_ context.Context, _ *Context, _, _ *etree.Element) error { return nil }

// hApplyTemplates selects candidate nodes (select= or all children),
// evaluates with-param once against the caller's context, sorts by any
// xsl:sort children, then tries each template registered for the active
// mode against every candidate in turn.
func hApplyTemplates(ctx context.Context, c *Context, node, output *etree.Element) error {
	candidates, err := applyTemplatesCandidates(c, node)
	if err != nil {
		return err
	}
	mode := node.SelectAttrValue("mode", "_default")

	// with-param select= is evaluated against the apply-templates
	// element's own context, once, not per candidate.
	params := map[string]xpath.Value{}
	for _, wp := range collectWithParams(node) {
		v, err := evalWithParam(c, wp)
		if err != nil {
			return err
		}
		params[wp.name] = v
	}
	specs := sortSpecs(node)
	sorted, err := c.sortNodes(candidates, specs)
	if err != nil {
		return err
	}

	templates := c.Engine.Cache.byMode[mode]
	for i, cand := range sorted {
		sub := c.withInputNode(cand, i+1, len(sorted))
		sub.Mode = modeOrEmpty(mode)
		fired := false
		if tmpl := selectTemplate(sub, templates, cand); tmpl != nil {
			ok, err := fireTemplate(ctx, sub, tmpl, output, params)
			if err != nil {
				return err
			}
			fired = ok
		}
		if !fired {
			if cd, ok := cand.(*etree.CharData); ok {
				output.CreateText(cd.Data)
			}
		}
	}
	return nil
}

func modeOrEmpty(mode string) string {
	if mode == "_default" {
		return ""
	}
	return mode
}

func applyTemplatesCandidates(c *Context, node *etree.Element) ([]etree.Token, error) {
	if sel := node.SelectAttrValue("select", ""); sel != "" {
		expr, err := xpath.Compile(sel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrXPath, err)
		}
		v, err := expr.Eval(c.xpath())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrXPath, err)
		}
		nodes, err := v.AsNodeSet()
		if err != nil {
			return nil, err
		}
		return nodes, nil
	}
	return xpath.Children(c.ContextNode), nil
}

type withParam struct {
	name   string
	node   *etree.Element
}

func collectWithParams(node *etree.Element) []withParam {
	var out []withParam
	for _, child := range node.ChildElements() {
		if isXSLElement(child) && child.Tag == "with-param" {
			out = append(out, withParam{name: child.SelectAttrValue("name", ""), node: child})
		}
	}
	return out
}

func evalWithParam(c *Context, wp withParam) (xpath.Value, error) {
	v, err := computeBindingValue(context.Background(), c, wp.node)
	if err != nil {
		return xpath.Value{}, err
	}
	return coerceSetVariable(v), nil
}

// hCallTemplate evaluates with-param in the caller's context, then
// binds it directly into the single scope layer the template body runs
// in (noClone, so the bindings propagate) so xsl:param's local-only
// lookup sees them.
func hCallTemplate(ctx context.Context, c *Context, node, output *etree.Element) error {
	name := node.SelectAttrValue("name", "")
	tmpl, ok := c.Engine.Cache.byName[name]
	if !ok {
		return fmt.Errorf("%w: call-template %q", ErrInternalInvariant, name)
	}
	sub := c.clone(overrides{xslNode: tmpl, transformNode: tmpl})
	for _, wp := range collectWithParams(node) {
		v, err := evalWithParam(c, wp)
		if err != nil {
			return err
		}
		sub.setVariable(wp.name, v)
	}
	if err := processChildNodes(ctx, sub, tmpl, output, processOpts{noClone: true}); err != nil {
		return err
	}
	return nil
}

// hForEach evaluates select=, applies any xsl:sort children, then
// runs the body once per resulting node with that node as context.
func hForEach(ctx context.Context, c *Context, node, output *etree.Element) error {
	sel := node.SelectAttrValue("select", ".")
	expr, err := xpath.Compile(sel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	v, err := expr.Eval(c.xpath())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	nodes, err := v.AsNodeSet()
	if err != nil {
		return err
	}
	specs := sortSpecs(node)
	sorted, err := c.sortNodes(nodes, specs)
	if err != nil {
		return err
	}
	for i, n := range sorted {
		sub := c.withInputNode(n, i+1, len(sorted))
		if err := processChildNodes(ctx, sub, node, output, processOpts{noClone: true, filter: nil}); err != nil {
			return err
		}
	}
	return nil
}

// hIf runs the body only when test= evaluates truthy.
func hIf(ctx context.Context, c *Context, node, output *etree.Element) error {
	test := node.SelectAttrValue("test", "false")
	ok, err := evalBoolean(c, test)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return processChildNodes(ctx, c, node, output, processOpts{noClone: true})
}

// hChoose runs the first matching xsl:when, falling back to
// xsl:otherwise if present.
func hChoose(ctx context.Context, c *Context, node, output *etree.Element) error {
	for _, child := range node.ChildElements() {
		if !isXSLElement(child) {
			continue
		}
		switch child.Tag {
		case "when":
			ok, err := evalBoolean(c, child.SelectAttrValue("test", "false"))
			if err != nil {
				return err
			}
			if ok {
				return processChildNodes(ctx, c, child, output, processOpts{noClone: true})
			}
		case "otherwise":
			return processChildNodes(ctx, c, child, output, processOpts{noClone: true})
		}
	}
	return nil
}

func evalBoolean(c *Context, expr string) (bool, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrXPath, err)
	}
	v, err := compiled.Eval(c.xpath())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrXPath, err)
	}
	return v.AsBool(), nil
}

// hCopy shallow-copies the context node (name and attributes, no
// descendants) and runs the body inside the copy.
func hCopy(ctx context.Context, c *Context, node, output *etree.Element) error {
	dest := domx.Wrap(output)
	created, err := dest.Copy(c.ContextNode)
	if err != nil {
		return err
	}
	if el, ok := created.(*etree.Element); ok {
		return processChildNodes(ctx, c, node, el, processOpts{noClone: true})
	}
	return nil
}

// hCopyOf deep-copies every node select= resolves to, or appends the
// string value directly when select= isn't a node-set.
func hCopyOf(_ context.Context, c *Context, node, output *etree.Element) error {
	sel := node.SelectAttrValue("select", ".")
	expr, err := xpath.Compile(sel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	v, err := expr.Eval(c.xpath())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	dest := domx.Wrap(output)
	if v.Kind == xpath.NodeSet {
		for _, n := range v.Nodes {
			if _, err := dest.CopyDeep(n); err != nil {
				return err
			}
		}
		return nil
	}
	output.CreateText(v.AsString())
	return nil
}

// hElement creates a named element, resolving its namespace from the
// namespace= attribute or, failing that, from the name's own prefix.
func hElement(ctx context.Context, c *Context, node, output *etree.Element) error {
	nameAttr := node.SelectAttrValue("name", "")
	name := c.resolveExpression(nameAttr)
	ns := node.SelectAttrValue("namespace", "")
	if ns == "" {
		if prefix, _ := splitQName(name); prefix != "" {
			if el, ok := c.ContextNode.(*etree.Element); ok {
				ns, _ = domx.ResolveOnElement(el, prefix)
			}
		}
	}
	dest := domx.WrapWithNS(output, c.nsResolver())
	created, err := dest.CreateElementNS(ns, name)
	if err != nil {
		return err
	}
	return processChildNodes(ctx, c, node, created, processOpts{noClone: true})
}

// hAttribute builds the attribute value from the body's rendered text
// and sets it on output.
func hAttribute(ctx context.Context, c *Context, node, output *etree.Element) error {
	nameAttr := node.SelectAttrValue("name", "")
	name := c.resolveExpression(nameAttr)
	fragment := domx.NewFragment()
	if err := processChildNodes(ctx, c, node, fragment, processOpts{noClone: true}); err != nil {
		return err
	}
	output.CreateAttr(name, domx.Wrap(fragment).TextContent())
	return nil
}

const (
	doeLT    = "[[X]]lt;"
	doeGT    = "[[X]]gt;"
	doeAmp   = "[[X]]amp;"
	doeApos  = "[[X]]apos;"
	doeQuote = "[[X]]quot;"
)

func doeEncode(s string) string {
	r := strings.NewReplacer(
		"&", doeAmp,
		"<", doeLT,
		">", doeGT,
		"'", doeApos,
		"\"", doeQuote,
	)
	return r.Replace(s)
}

// hText copies the element's literal text verbatim; disable-output-
// escaping sentinels are restored post-serialization (boundary.go).
func hText(_ context.Context, c *Context, node, output *etree.Element) error {
	text := domx.Wrap(node).TextContent()
	if node.SelectAttrValue("disable-output-escaping", "no") == "yes" {
		text = doeEncode(text)
	}
	output.CreateText(text)
	return nil
}

// hValueOf evaluates select=, applies the whitespace policy for the
// current context element, and appends the result as text.
func hValueOf(_ context.Context, c *Context, node, output *etree.Element) error {
	sel := node.SelectAttrValue("select", ".")
	expr, err := xpath.Compile(sel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	v, err := expr.Eval(c.xpath())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrXPath, err)
	}
	text := v.AsString()
	var elCtx *etree.Element
	if el, ok := c.ContextNode.(*etree.Element); ok {
		elCtx = el
	}
	text = c.Engine.processWhitespace(text, elCtx)
	if node.SelectAttrValue("disable-output-escaping", "no") == "yes" {
		text = doeEncode(text)
	}
	output.CreateText(text)
	return nil
}

type varOpts struct {
	override bool
	asText   bool
}

// hVariable / hParam delegate to processVariable; only hVariable
// overrides an already-bound name.
func hVariable(ctx context.Context, c *Context, node, output *etree.Element) error {
	return processVariable(ctx, c, node, varOpts{override: true})
}

func hParam(ctx context.Context, c *Context, node, output *etree.Element) error {
	return processVariable(ctx, c, node, varOpts{asText: true})
}

// processVariable binds name from the element/text children (as a
// fragment), else select=, else a parent-scoped binding of the same
// name, else the empty string. hParam coerces a fragment result to its
// text content before binding.
func processVariable(ctx context.Context, c *Context, node *etree.Element, opts varOpts) error {
	name := node.SelectAttrValue("name", "")
	if !opts.override {
		if _, ok := c.getVariable(name, true); ok {
			return nil // param already bound locally; params never override
		}
	}
	value, err := computeBindingValue(ctx, c, node)
	if err != nil {
		return err
	}
	if opts.asText {
		if el, ok := value.(*etree.Element); ok {
			value = domx.Wrap(el).TextContent()
		}
	}
	if s, ok := value.(string); ok {
		var elCtx *etree.Element
		if el, ok := c.ContextNode.(*etree.Element); ok {
			elCtx = el
		}
		value = c.Engine.processWhitespace(s, elCtx)
	}
	c.setVariable(name, value)
	return nil
}

// computeBindingValue resolves a variable/param/with-param's source
// value: element/text children become a fragment, else select=, else
// a parent-scoped binding of the same name, else empty string.
func computeBindingValue(ctx context.Context, c *Context, node *etree.Element) (any, error) {
	hasChildren := false
	for _, child := range node.Child {
		switch v := child.(type) {
		case *etree.Element:
			hasChildren = true
		case *etree.CharData:
			if strings.TrimSpace(v.Data) != "" {
				hasChildren = true
			}
		}
	}
	if hasChildren {
		fragment := domx.NewFragment()
		if err := processChildNodes(ctx, c, node, fragment, processOpts{noClone: true}); err != nil {
			return nil, err
		}
		return fragment, nil
	}
	if sel := node.SelectAttrValue("select", ""); sel != "" {
		expr, err := xpath.Compile(sel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrXPath, err)
		}
		v, err := expr.Eval(c.xpath())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrXPath, err)
		}
		return v, nil
	}
	name := node.SelectAttrValue("name", "")
	if v, ok := c.getVariable(name, false); ok {
		return v, nil
	}
	return "", nil
}

// hOutput records the serialization knobs xsl:output sets on the
// Engine's OutputSpec.
func hOutput(_ context.Context, c *Context, node, output *etree.Element) error {
	spec := &c.Engine.Output
	if v := node.SelectAttrValue("method", ""); v != "" {
		spec.Method = v
	}
	if v := node.SelectAttrValue("version", ""); v != "" {
		spec.Version = v
	}
	if v := node.SelectAttrValue("encoding", ""); v != "" {
		spec.Encoding = v
	}
	if v := node.SelectAttrValue("omit-xml-declaration", ""); v != "" {
		spec.OmitXMLDeclaration = v == "yes"
	}
	if v := node.SelectAttrValue("standalone", ""); v != "" {
		spec.Standalone = v
	}
	if v := node.SelectAttrValue("indent", ""); v != "" {
		spec.Indent = v == "yes"
	}
	if v := node.SelectAttrValue("media-type", ""); v != "" {
		spec.MediaType = v
	}
	return nil
}

// hStripSpace / hPreserveSpace register element-name patterns against
// the Engine's whitespace policy lists.
func hStripSpace(_ context.Context, c *Context, node, _ *etree.Element) error {
	return registerWhitespaceList(c, node, &c.Engine.StripSpace)
}

func hPreserveSpace(_ context.Context, c *Context, node, _ *etree.Element) error {
	return registerWhitespaceList(c, node, &c.Engine.PreserveSpace)
}

func registerWhitespaceList(c *Context, node *etree.Element, list *[]wsPattern) error {
	elements := node.SelectAttrValue("elements", "")
	for _, tok := range strings.Fields(elements) {
		if tok == "*" {
			*list = append(*list, wsPattern{local: "*"})
			continue
		}
		prefix, local := splitQName(tok)
		ns := ""
		if prefix != "" {
			ns, _ = c.resolveNamespace(prefix)
		}
		*list = append(*list, wsPattern{ns: ns, local: local})
	}
	return nil
}

// hDecimalFormat registers a named DecimalFormat symbol table for
// later use by format-number().
func hDecimalFormat(_ context.Context, c *Context, node, output *etree.Element) error {
	name := node.SelectAttrValue("name", "_default")
	df := defaultDecimalFormat()
	set := func(attr string, dst *string) {
		if v := node.SelectAttrValue(attr, ""); v != "" {
			*dst = v
		}
	}
	set("decimal-separator", &df.Decimal)
	set("grouping-separator", &df.Grouping)
	set("pattern-separator", &df.PatternSep)
	set("minus-sign", &df.Minus)
	set("zero-digit", &df.Zero)
	set("digit", &df.Digit)
	set("infinity", &df.Infinity)
	set("NaN", &df.NaN)
	set("percent", &df.Percent)
	set("per-mille", &df.PerMille)
	c.Engine.DecimalFormats[name] = df
	return nil
}

// hComment renders the body to text and appends it as a comment node.
func hComment(ctx context.Context, c *Context, node, output *etree.Element) error {
	fragment := domx.NewFragment()
	if err := processChildNodes(ctx, c, node, fragment, processOpts{noClone: true}); err != nil {
		return err
	}
	output.CreateComment(domx.Wrap(fragment).TextContent())
	return nil
}

// hProcessingInstruction renders the body to text and appends it as a
// processing instruction with the resolved name= as its target.
func hProcessingInstruction(ctx context.Context, c *Context, node, output *etree.Element) error {
	nameAttr := node.SelectAttrValue("name", "")
	name := c.resolveExpression(nameAttr)
	fragment := domx.NewFragment()
	if err := processChildNodes(ctx, c, node, fragment, processOpts{noClone: true}); err != nil {
		return err
	}
	output.CreateProcInst(name, domx.Wrap(fragment).TextContent())
	return nil
}

// hMessage renders the body to text and routes it through the
// Tracer, aborting the transform when terminate="yes".
func hMessage(ctx context.Context, c *Context, node, output *etree.Element) error {
	fragment := domx.NewFragment()
	if err := processChildNodes(ctx, c, node, fragment, processOpts{noClone: true}); err != nil {
		return err
	}
	text := domx.Wrap(fragment).TextContent()
	if node.SelectAttrValue("terminate", "no") == "yes" {
		return fmt.Errorf("%w: %s", ErrTerminate, text)
	}
	c.Engine.Tracer.Query(c, text)
	return nil
}

// hNumber is not implemented; xsl:number formatting is out of scope.
func hNumber(context.Context, *Context, *etree.Element, *etree.Element) error {
	return fmt.Errorf("%w: xsl:number", ErrNotImplemented)
}
