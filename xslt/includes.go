package xslt

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
)

// processIncludes destructively splices xsl:include/xsl:import
// referents into the transform tree before the first template run. It
// recurses so includes nested inside fetched documents are also
// resolved.
func processIncludes(engine *Engine, transformRoot, node *etree.Element, transformURL string) error {
	for _, child := range append([]*etree.Element(nil), node.ChildElements()...) {
		if isXSL(child, "include") {
			if err := spliceInclude(engine, transformRoot, child, transformURL, true); err != nil {
				engine.Tracer.Error(nil, fmt.Errorf("xsl:include: %w", err))
			}
			continue
		}
		if isXSL(child, "import") {
			if err := spliceInclude(engine, transformRoot, child, transformURL, false); err != nil {
				engine.Tracer.Error(nil, fmt.Errorf("xsl:import: %w", err))
			}
			continue
		}
		if err := processIncludes(engine, transformRoot, child, transformURL); err != nil {
			return err
		}
	}
	return nil
}

func spliceInclude(engine *Engine, transformRoot, node *etree.Element, transformURL string, include bool) error {
	href := node.SelectAttrValue("href", "")
	if href == "" {
		return nil
	}
	resolved := resolveURL(transformURL, href)
	node.RemoveAttr("href") // break include cycles before fetching

	text, err := engine.fetchCached(resolved)
	if err != nil {
		node.Parent().RemoveChild(node)
		return fmt.Errorf("%w: %s", ErrFetch, href)
	}
	fetchedRoot, err := domx.Parse(text, domx.ParseOptions{})
	if err != nil {
		node.Parent().RemoveChild(node)
		return fmt.Errorf("%w: %s: %v", ErrMalformedInput, href, err)
	}
	if err := processIncludes(engine, transformRoot, fetchedRoot, resolved); err != nil {
		return err
	}

	parent := node.Parent()
	src := fetchedRoot
	if top, err := topElement(fetchedRoot); err == nil {
		src = top // splice the referenced stylesheet's own top-level children
	}
	children := append([]etree.Token(nil), src.Child...)
	if include {
		idx := childIndex(parent, node)
		for i, c := range children {
			insertChildAt(parent, idx+i, c)
		}
	} else {
		for _, c := range children {
			parent.AddChild(c)
		}
	}
	parent.RemoveChild(node)
	return nil
}

func childIndex(parent *etree.Element, n etree.Token) int {
	for i, c := range parent.Child {
		if c == n {
			return i
		}
	}
	return len(parent.Child)
}

// insertChildAt reparents tok under parent at position idx; etree's
// AddChild always appends, so this adds then rotates into place.
func insertChildAt(parent *etree.Element, idx int, tok etree.Token) {
	parent.AddChild(tok)
	last := len(parent.Child) - 1
	copy(parent.Child[idx+1:last+1], parent.Child[idx:last])
	parent.Child[idx] = tok
}
