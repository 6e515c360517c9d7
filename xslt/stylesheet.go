package xslt

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

// hStylesheet runs the eager top-level pass (output/strip-space/
// preserve-space/variable), then dispatches to the match="/" root
// template if one exists, else falls through to processing element
// children directly.
func hStylesheet(ctx context.Context, c *Context, node, output *etree.Element) error {
	if err := processIncludes(c.Engine, node, node, c.TransformURL); err != nil {
		return err
	}
	buildTemplateCache(c.Engine, node)
	buildKeyIndex(c.Engine, node)
	for _, idx := range c.Engine.Keys {
		if len(idx.index) == 0 {
			populateKeyIndex(c, idx, c.Root)
		}
	}

	for _, child := range node.ChildElements() {
		if !isXSLElement(child) {
			continue
		}
		switch child.Tag {
		case "output", "strip-space", "preserve-space", "decimal-format":
			if err := process(ctx, c, child, output); err != nil {
				return err
			}
		case "variable":
			if err := processVariable(ctx, c, child, varOpts{}); err != nil {
				return err
			}
		}
	}

	root := c.clone(overrides{contextNode: c.Root, nodeList: []etree.Token{c.Root}, index: 1, size: 1, transformNode: node})
	if tmpl := selectRootTemplate(c.Engine.Cache.byMode["_default"]); tmpl != nil {
		fired, err := fireTemplate(ctx, root, tmpl, output, nil)
		if err != nil {
			return err
		}
		if fired {
			return nil
		}
	}
	return processChildNodes(ctx, c, node, output, processOpts{ignoreText: true})
}

// selectRootTemplate picks the highest-priority entry whose match
// pattern is literally "/"; ties keep the last in document order.
func selectRootTemplate(entries []templateEntry) *etree.Element {
	var best *etree.Element
	bestPriority := math.Inf(-1)
	for _, entry := range entries {
		if entry.el.SelectAttrValue("match", "") != "/" {
			continue
		}
		if entry.priority >= bestPriority {
			bestPriority = entry.priority
			best = entry.el
		}
	}
	return best
}

func buildTemplateCache(e *Engine, stylesheet *etree.Element) {
	if e.Cache.built {
		return
	}
	walkTemplates(stylesheet, func(tmpl *etree.Element) {
		if name := tmpl.SelectAttrValue("name", ""); name != "" {
			e.Cache.byName[name] = tmpl
		}
		mode := tmpl.SelectAttrValue("mode", "_default")
		match := tmpl.SelectAttrValue("match", "")
		priority := defaultPriority(match)
		if raw := tmpl.SelectAttrValue("priority", ""); raw != "" {
			if p, err := strconv.ParseFloat(raw, 64); err == nil {
				priority = p
			}
		}
		e.Cache.byMode[mode] = append(e.Cache.byMode[mode], templateEntry{el: tmpl, priority: priority})
	})
	e.Cache.built = true
}

// defaultPriority assigns the XSLT 1.0 §5.5 default priority to a match
// pattern lacking an explicit priority= attribute: a bare qualified name
// or "/" gets 0, a single "prefix:*" step -0.25, a single universal
// wildcard or node-type test -0.5, and anything with a predicate or
// more than one step 0.5; a union takes its highest alternative. This is
// the same tiering the teacher's Matcher hierarchy models (nameMatcher
// vs wildcardMatcher vs predicateMatcher) but computed directly from
// the source pattern text instead of a compiled matcher tree.
func defaultPriority(pattern string) float64 {
	best := -0.5
	for _, alt := range splitUnion(pattern) {
		alt = strings.TrimSpace(alt)
		if p := singlePatternPriority(alt); p > best {
			best = p
		}
	}
	return best
}

func singlePatternPriority(pattern string) float64 {
	if pattern == "" {
		return -0.5
	}
	if pattern == "/" {
		return 0
	}
	step := pattern
	if i := strings.LastIndexAny(step, "/"); i >= 0 {
		step = step[i+1:]
	}
	hasPredicate := strings.Contains(pattern, "[")
	hasPathSep := strings.ContainsAny(pattern, "/")
	switch {
	case step == "*" || step == "node()":
		if hasPredicate || hasPathSep {
			return 0.5
		}
		return -0.5
	case strings.HasSuffix(step, ":*"):
		if hasPredicate || hasPathSep {
			return 0.5
		}
		return -0.25
	case strings.Contains(step, "("):
		// text(), comment(), processing-instruction(), etc.
		if hasPredicate || hasPathSep {
			return 0.5
		}
		return -0.5
	case hasPredicate || hasPathSep:
		return 0.5
	default:
		return 0
	}
}

// selectTemplate picks, among entries whose match pattern selects n,
// the one with highest priority; ties keep the last match in document
// order. Returns nil when nothing matches, mirroring how the teacher's
// Template.Priority/Matcher pair picks a winner among candidates
// instead of firing the first structural match found.
func selectTemplate(c *Context, entries []templateEntry, n etree.Token) *etree.Element {
	var best *etree.Element
	bestPriority := math.Inf(-1)
	for _, entry := range entries {
		match := entry.el.SelectAttrValue("match", "")
		if !matchesPattern(c, match, n) {
			continue
		}
		if entry.priority >= bestPriority {
			bestPriority = entry.priority
			best = entry.el
		}
	}
	return best
}

func walkTemplates(el *etree.Element, fn func(*etree.Element)) {
	for _, child := range el.ChildElements() {
		if isXSLElement(child) && child.Tag == "template" {
			fn(child)
			continue
		}
		walkTemplates(child, fn)
	}
}

func buildKeyIndex(e *Engine, stylesheet *etree.Element) {
	walkKeys(stylesheet, func(keyEl *etree.Element) {
		name := keyEl.SelectAttrValue("name", "")
		if name == "" {
			return
		}
		idx := &keyIndex{
			use:   keyEl.SelectAttrValue("use", "."),
			match: keyEl.SelectAttrValue("match", "*"),
			index: map[string][]etree.Token{},
		}
		e.Keys[name] = idx
	})
}

func walkKeys(el *etree.Element, fn func(*etree.Element)) {
	for _, child := range el.ChildElements() {
		if isXSLElement(child) && child.Tag == "key" {
			fn(child)
			continue
		}
		walkKeys(child, fn)
	}
}

// populateKeyIndex fills a previously-registered key's index by
// matching every node in doc against its match pattern; hStylesheet
// calls it for every registered key before the root template runs.
func populateKeyIndex(c *Context, idx *keyIndex, doc etree.Token) {
	var walk func(n etree.Token)
	walk = func(n etree.Token) {
		if el, ok := n.(*etree.Element); ok {
			if matchesPattern(c, idx.match, el) {
				expr, err := xpath.Compile(idx.use)
				if err == nil {
					sub := c.withInputNode(el, 1, 1)
					if v, err := expr.Eval(sub.xpath()); err == nil {
						key := v.AsString()
						idx.index[key] = append(idx.index[key], el)
					}
				}
			}
		}
		for _, ch := range xpath.Children(n) {
			walk(ch)
		}
	}
	walk(doc)
}

// matchesPattern reports whether n is selected by pattern: a pattern
// matches when evaluating it (rooted at the document, searched at any
// depth unless already absolute) yields a node set containing n.
func matchesPattern(c *Context, pattern string, n etree.Token) bool {
	if pattern == "" {
		return false
	}
	for _, alt := range splitUnion(pattern) {
		if matchesSinglePattern(c, alt, n) {
			return true
		}
	}
	return false
}

func splitUnion(pattern string) []string {
	return strings.Split(pattern, "|")
}

func matchesSinglePattern(c *Context, pattern string, n etree.Token) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "/" {
		return xpath.Kind(n) == xpath.KindDocument
	}
	searchExpr := pattern
	if !strings.HasPrefix(pattern, "/") {
		searchExpr = "//" + pattern
	}
	expr, err := xpath.Compile(searchExpr)
	if err != nil {
		return false
	}
	root := xpath.Root(n)
	sub := c.withInputNode(root, 1, 1)
	v, err := expr.Eval(sub.xpath())
	if err != nil || v.Kind != xpath.NodeSet {
		return false
	}
	for _, cand := range v.Nodes {
		if cand == n {
			return true
		}
	}
	return false
}

// fireTemplate runs tmpl against the context node when its match
// pattern selects that node and its mode matches. params seeds the
// template's fresh variable scope with apply-templates'
// with-param bindings; nil for the root/default dispatch.
func fireTemplate(ctx context.Context, c *Context, tmpl *etree.Element, output *etree.Element, params map[string]xpath.Value) (bool, error) {
	match := tmpl.SelectAttrValue("match", "")
	mode := tmpl.SelectAttrValue("mode", "")
	if match != "" && !matchesPattern(c, match, c.ContextNode) {
		return false, nil
	}
	if mode != c.Mode {
		return false, nil
	}
	sub := c.clone(overrides{xslNode: tmpl, transformNode: tmpl})
	global := c.vars
	for global.parent != nil {
		global = global.parent
	}
	sub.vars = newScope(global) // template bodies start a fresh scope over the top-level bindings
	for name, v := range params {
		sub.vars.define(name, v)
	}
	if err := processChildNodes(ctx, sub, tmpl, output, processOpts{noClone: true}); err != nil {
		return false, err
	}
	return true, nil
}

// resolveStylesheetFunction searches the transform tree for an
// xsl:function name="…" declaration in the requested namespace.
func (e *Engine) resolveStylesheetFunction(c *Context, ns, local string) (xpath.Function, bool) {
	if c.TransformRoot == nil {
		return nil, false
	}
	var found *etree.Element
	walkFunctions(c.TransformRoot, func(fn *etree.Element) {
		if found != nil {
			return
		}
		name := fn.SelectAttrValue("name", "")
		prefix, lname := splitQName(name)
		if lname != local {
			return
		}
		uri, _ := c.resolveNamespace(prefix)
		if uri == ns {
			found = fn
		}
	})
	if found == nil {
		return nil, false
	}
	tmpl := found
	return func(xc *xpath.Context, args []xpath.Value) (xpath.Value, error) {
		return invokeStylesheetFunction(c, tmpl, args)
	}, true
}

func walkFunctions(el *etree.Element, fn func(*etree.Element)) {
	for _, child := range el.ChildElements() {
		if isXSLElement(child) && child.Tag == "function" {
			fn(child)
		}
		walkFunctions(child, fn)
	}
}

func invokeStylesheetFunction(c *Context, fnEl *etree.Element, args []xpath.Value) (xpath.Value, error) {
	sub := c.clone(overrides{xslNode: fnEl, transformNode: fnEl})
	sub.vars = newScope(nil)
	i := 0
	for _, child := range fnEl.ChildElements() {
		if !isXSLElement(child) || child.Tag != "param" {
			continue
		}
		if i >= len(args) {
			break
		}
		sub.setVariable(child.SelectAttrValue("name", ""), args[i])
		i++
	}
	fragment := domx.NewFragment()
	ctx := context.Background()
	if err := processChildNodes(ctx, sub, fnEl, fragment, processOpts{noClone: true}); err != nil {
		return xpath.Value{}, err
	}
	return xpath.NewString(domx.Wrap(fragment).TextContent()), nil
}
