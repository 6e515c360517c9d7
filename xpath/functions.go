package xpath

import (
	"fmt"
	"math"
	"strings"

	"github.com/beevik/etree"
)

// CoreFunctions is the XPath 1.0 core function library as a FuncMap, for
// callers to chain with their own functions (the xslt package consults it
// before its own XSLT additions).
var CoreFunctions FuncMap = FuncMap{
	"position":          fnPosition,
	"last":               fnLast,
	"count":              fnCount,
	"local-name":         fnLocalName,
	"namespace-uri":      fnNamespaceURI,
	"name":               fnName,
	"string":             fnString,
	"concat":             fnConcat,
	"starts-with":        fnStartsWith,
	"contains":           fnContains,
	"substring-before":   fnSubstringBefore,
	"substring-after":    fnSubstringAfter,
	"substring":          fnSubstring,
	"string-length":      fnStringLength,
	"normalize-space":    fnNormalizeSpace,
	"translate":          fnTranslate,
	"boolean":            fnBoolean,
	"not":                fnNot,
	"true":               fnTrue,
	"false":              fnFalse,
	"number":             fnNumber,
	"sum":                fnSum,
	"floor":               fnFloor,
	"ceiling":             fnCeiling,
	"round":               fnRound,
	"id":                 fnID,
	"lang":                fnLang,
}

func argOrContext(ctx *Context, args []Value) Value {
	if len(args) > 0 {
		return args[0]
	}
	return NewNodeSet([]etree.Token{ctx.Node})
}

func fnPosition(ctx *Context, _ []Value) (Value, error) { return NewNumber(float64(ctx.Position)), nil }
func fnLast(ctx *Context, _ []Value) (Value, error)     { return NewNumber(float64(ctx.Size)), nil }

func fnCount(ctx *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("count: expects 1 argument")
	}
	nodes, err := args[0].AsNodeSet()
	if err != nil {
		return Value{}, err
	}
	return NewNumber(float64(len(nodes))), nil
}

func fnLocalName(ctx *Context, args []Value) (Value, error) {
	v := argOrContext(ctx, args)
	nodes, err := v.AsNodeSet()
	if err != nil || len(nodes) == 0 {
		return NewString(""), nil
	}
	return NewString(LocalName(nodes[0])), nil
}

func fnNamespaceURI(ctx *Context, args []Value) (Value, error) {
	v := argOrContext(ctx, args)
	nodes, err := v.AsNodeSet()
	if err != nil || len(nodes) == 0 {
		return NewString(""), nil
	}
	if ctx.NS == nil {
		return NewString(""), nil
	}
	uri, _ := ctx.NS.ResolveNamespace(Prefix(nodes[0]))
	return NewString(uri), nil
}

func fnName(ctx *Context, args []Value) (Value, error) {
	v := argOrContext(ctx, args)
	nodes, err := v.AsNodeSet()
	if err != nil || len(nodes) == 0 {
		return NewString(""), nil
	}
	return NewString(QualifiedName(nodes[0])), nil
}

func fnString(ctx *Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return NewString(StringValue(ctx.Node)), nil
	}
	return NewString(args[0].AsString()), nil
}

func fnConcat(_ *Context, args []Value) (Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.AsString())
	}
	return NewString(b.String()), nil
}

func fnStartsWith(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("starts-with: expects 2 arguments")
	}
	return NewBoolean(strings.HasPrefix(args[0].AsString(), args[1].AsString())), nil
}

func fnContains(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("contains: expects 2 arguments")
	}
	return NewBoolean(strings.Contains(args[0].AsString(), args[1].AsString())), nil
}

func fnSubstringBefore(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("substring-before: expects 2 arguments")
	}
	s, sep := args[0].AsString(), args[1].AsString()
	if sep == "" {
		return NewString(""), nil
	}
	idx := strings.Index(s, sep)
	if idx < 0 {
		return NewString(""), nil
	}
	return NewString(s[:idx]), nil
}

func fnSubstringAfter(_ *Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("substring-after: expects 2 arguments")
	}
	s, sep := args[0].AsString(), args[1].AsString()
	if sep == "" {
		return NewString(s), nil
	}
	idx := strings.Index(s, sep)
	if idx < 0 {
		return NewString(""), nil
	}
	return NewString(s[idx+len(sep):]), nil
}

func fnSubstring(_ *Context, args []Value) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return Value{}, fmt.Errorf("substring: expects 2 or 3 arguments")
	}
	runes := []rune(args[0].AsString())
	start := float64(round(args[1].AsNumber()))
	length := math.Inf(1)
	if len(args) == 3 {
		length = float64(round(args[2].AsNumber()))
	}
	from := start - 1
	to := from + length
	if math.IsNaN(from) || math.IsNaN(to) {
		return NewString(""), nil
	}
	lo := int(math.Max(0, from))
	hi := int(math.Min(float64(len(runes)), to))
	if hi <= lo {
		return NewString(""), nil
	}
	return NewString(string(runes[lo:hi])), nil
}

func fnStringLength(ctx *Context, args []Value) (Value, error) {
	s := StringValue(ctx.Node)
	if len(args) > 0 {
		s = args[0].AsString()
	}
	return NewNumber(float64(len([]rune(s)))), nil
}

func fnNormalizeSpace(ctx *Context, args []Value) (Value, error) {
	s := StringValue(ctx.Node)
	if len(args) > 0 {
		s = args[0].AsString()
	}
	return NewString(strings.Join(strings.Fields(s), " ")), nil
}

func fnTranslate(_ *Context, args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, fmt.Errorf("translate: expects 3 arguments")
	}
	src, from, to := []rune(args[0].AsString()), []rune(args[1].AsString()), []rune(args[2].AsString())
	mapping := make(map[rune]rune, len(from))
	deleted := make(map[rune]bool)
	for i, c := range from {
		if i < len(to) {
			mapping[c] = to[i]
		} else {
			deleted[c] = true
		}
	}
	var b strings.Builder
	for _, c := range src {
		if deleted[c] {
			continue
		}
		if m, ok := mapping[c]; ok {
			b.WriteRune(m)
			continue
		}
		b.WriteRune(c)
	}
	return NewString(b.String()), nil
}

func fnBoolean(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("boolean: expects 1 argument")
	}
	return NewBoolean(args[0].AsBool()), nil
}

func fnNot(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("not: expects 1 argument")
	}
	return NewBoolean(!args[0].AsBool()), nil
}

func fnTrue(_ *Context, _ []Value) (Value, error)  { return NewBoolean(true), nil }
func fnFalse(_ *Context, _ []Value) (Value, error) { return NewBoolean(false), nil }

func fnNumber(ctx *Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return NewNumber(parseNumber(StringValue(ctx.Node))), nil
	}
	return NewNumber(args[0].AsNumber()), nil
}

func fnSum(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("sum: expects 1 argument")
	}
	nodes, err := args[0].AsNodeSet()
	if err != nil {
		return Value{}, err
	}
	var total float64
	for _, n := range nodes {
		total += parseNumber(StringValue(n))
	}
	return NewNumber(total), nil
}

func fnFloor(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("floor: expects 1 argument")
	}
	return NewNumber(math.Floor(args[0].AsNumber())), nil
}

func fnCeiling(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("ceiling: expects 1 argument")
	}
	return NewNumber(math.Ceil(args[0].AsNumber())), nil
}

func fnRound(_ *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("round: expects 1 argument")
	}
	return NewNumber(float64(round(args[0].AsNumber()))), nil
}

func round(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Floor(f + 0.5))
}

// fnID implements the id() function over an xml:id-or-ID-attribute-free
// document model: it matches elements whose "id" attribute equals one of
// the whitespace-separated tokens in the argument, the common fallback
// used when no DTD-declared ID attribute is known.
func fnID(ctx *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("id: expects 1 argument")
	}
	var tokens []string
	if args[0].Kind == NodeSet {
		for _, n := range args[0].Nodes {
			tokens = append(tokens, strings.Fields(StringValue(n))...)
		}
	} else {
		tokens = strings.Fields(args[0].AsString())
	}
	want := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		want[t] = true
	}
	var out []etree.Token
	var walk func(n etree.Token)
	walk = func(n etree.Token) {
		if el, ok := n.(*etree.Element); ok {
			if v := el.SelectAttrValue("id", ""); v != "" && want[v] {
				out = append(out, el)
			}
		}
		for _, c := range Children(n) {
			walk(c)
		}
	}
	walk(Root(ctx.Node))
	return NewNodeSet(out), nil
}

func fnLang(ctx *Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("lang: expects 1 argument")
	}
	want := strings.ToLower(args[0].AsString())
	cur := ctx.Node
	for cur != nil {
		if el, ok := cur.(*etree.Element); ok {
			if v := el.SelectAttrValue("xml:lang", ""); v != "" {
				v = strings.ToLower(v)
				return NewBoolean(v == want || strings.HasPrefix(v, want+"-")), nil
			}
		}
		cur = ParentOf(cur)
	}
	return NewBoolean(false), nil
}
