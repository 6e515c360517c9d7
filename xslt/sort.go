package xslt

import (
	"sort"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

type sortKeySpec struct {
	selectExpr string
	dataType   string // "text" | "number"
	order      string // "ascending" | "descending"
}

// sortSpecs reads the xsl:sort children of transformNode.
func sortSpecs(transformNode *etree.Element) []sortKeySpec {
	var specs []sortKeySpec
	for _, child := range transformNode.ChildElements() {
		if !isXSL(child, "sort") {
			continue
		}
		spec := sortKeySpec{
			selectExpr: child.SelectAttrValue("select", "."),
			dataType:   child.SelectAttrValue("data-type", "text"),
			order:      child.SelectAttrValue("order", "ascending"),
		}
		specs = append(specs, spec)
	}
	return specs
}

type sortKeyValue struct {
	str    string
	num    float64
	isNum  bool
	order  int // +1 ascending, -1 descending
}

// sortNodes evaluates each sort key per item in a singleton context,
// appends a stabilizing final key, and sorts lexicographically across
// key vectors.
func (c *Context) sortNodes(nodes []etree.Token, specs []sortKeySpec) ([]etree.Token, error) {
	if len(specs) == 0 {
		return nodes, nil
	}
	type entry struct {
		node etree.Token
		keys []sortKeyValue
		idx  int
	}
	entries := make([]entry, len(nodes))
	for i, n := range nodes {
		sub := c.withInputNode(n, i+1, len(nodes))
		keys := make([]sortKeyValue, 0, len(specs)+1)
		for _, spec := range specs {
			expr, err := xpath.Compile(spec.selectExpr)
			if err != nil {
				return nil, err
			}
			v, err := expr.Eval(sub.xpath())
			if err != nil {
				return nil, err
			}
			ord := 1
			if spec.order == "descending" {
				ord = -1
			}
			kv := sortKeyValue{order: ord}
			if spec.dataType == "number" {
				kv.isNum = true
				kv.num = v.AsNumber()
			} else {
				kv.str = v.AsString()
			}
			keys = append(keys, kv)
		}
		keys = append(keys, sortKeyValue{isNum: true, num: float64(i), order: 1})
		entries[i] = entry{node: n, keys: keys, idx: i}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		ka, kb := entries[a].keys, entries[b].keys
		for i := range ka {
			c := compareSortKey(ka[i], kb[i])
			if c != 0 {
				return c*ka[i].order < 0
			}
		}
		return false
	})
	out := make([]etree.Token, len(entries))
	for i, e := range entries {
		out[i] = e.node
	}
	return out, nil
}

func compareSortKey(a, b sortKeyValue) int {
	if a.isNum {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.str < b.str:
		return -1
	case a.str > b.str:
		return 1
	default:
		return 0
	}
}

func isXSL(el *etree.Element, local string) bool {
	return el.Tag == local && (el.Space == "xsl" || domx.Helper{Node: el}.ResolvedNamespaceURI() == domx.XSLNamespaceURI)
}
