package xslt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

// xsltFunction is the XSLT-specific link of the function resolver chain:
// current/document/function-available/format-number/replace/matches/
// lower-case/upper-case/generate-id, plus key/system-property/
// unparsed-entity-uri. Each closure captures c so it can reach the
// owning Engine.
func xsltFunction(c *Context, local string) (xpath.Function, bool) {
	switch local {
	case "current":
		return func(_ *xpath.Context, _ []xpath.Value) (xpath.Value, error) {
			return xpath.NewNodeSet([]etree.Token{c.ContextNode}), nil
		}, true
	case "document":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			return fnDocument(c, args)
		}, true
	case "function-available":
		return func(xc *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			if len(args) != 1 {
				return xpath.Value{}, fmt.Errorf("function-available: expects 1 argument")
			}
			name := args[0].AsString()
			prefix, lname := splitQName(name)
			ns := ""
			if prefix != "" {
				ns, _ = c.resolveNamespace(prefix)
			}
			_, ok := xc.Funcs.ResolveFunction(ns, lname)
			return xpath.NewBoolean(ok), nil
		}, true
	case "format-number":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			return fnFormatNumber(c, args)
		}, true
	case "replace":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			return fnReplace(args)
		}, true
	case "matches":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			return fnMatches(args)
		}, true
	case "lower-case":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			if len(args) != 1 {
				return xpath.Value{}, fmt.Errorf("lower-case: expects 1 argument")
			}
			return xpath.NewString(strings.ToLower(args[0].AsString())), nil
		}, true
	case "upper-case":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			if len(args) != 1 {
				return xpath.Value{}, fmt.Errorf("upper-case: expects 1 argument")
			}
			return xpath.NewString(strings.ToUpper(args[0].AsString())), nil
		}, true
	case "generate-id":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			var nodes []etree.Token
			if len(args) > 0 {
				var err error
				nodes, err = args[0].AsNodeSet()
				if err != nil {
					return xpath.Value{}, err
				}
			}
			return xpath.NewString(c.Engine.generateID(nodes)), nil
		}, true
	case "key":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			return fnKey(c, args)
		}, true
	case "system-property":
		return func(_ *xpath.Context, args []xpath.Value) (xpath.Value, error) {
			if len(args) != 1 {
				return xpath.Value{}, fmt.Errorf("system-property: expects 1 argument")
			}
			return xpath.NewString(systemProperty(args[0].AsString())), nil
		}, true
	case "unparsed-entity-uri":
		return func(_ *xpath.Context, _ []xpath.Value) (xpath.Value, error) {
			return xpath.NewString(""), nil
		}, true
	}
	return nil, false
}

func splitQName(s string) (prefix, local string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// systemProperty reports the handful of xsl: vendor/version constants
// system-property() is commonly queried for.
func systemProperty(name string) string {
	switch name {
	case "xsl:version":
		return "1.0"
	case "xsl:vendor":
		return "xslt-go"
	case "xsl:vendor-url":
		return "https://github.com/xslt-go/xslt"
	}
	return ""
}

func fnDocument(c *Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) == 0 {
		return xpath.Value{}, fmt.Errorf("document: expects at least 1 argument")
	}
	href := args[0].AsString()
	resolved := resolveURL(c.InputURL, href)
	text, err := c.Engine.fetchCached(resolved)
	if err != nil {
		return xpath.NewNodeSet(nil), nil // FetchError: not reported; the transform proceeds without the referent
	}
	root, err := domx.Parse(text, domx.ParseOptions{})
	if err != nil {
		return xpath.NewNodeSet(nil), nil
	}
	return xpath.NewNodeSet([]etree.Token{root}), nil
}

func fnFormatNumber(c *Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return xpath.Value{}, fmt.Errorf("format-number: expects 2 or 3 arguments")
	}
	name := "_default"
	if len(args) == 3 {
		name = args[2].AsString()
	}
	df, ok := c.Engine.DecimalFormats[name]
	if !ok {
		return xpath.Value{}, fmt.Errorf("format-number: unknown decimal-format %q", name)
	}
	return xpath.NewString(formatNumber(args[0].AsNumber(), args[1].AsString(), df)), nil
}

// translateRegex converts the handful of XPath/XSLT regex idioms this
// module supports into Go's RE2 syntax unchanged; RE2 already covers
// the common subset (character classes, quantifiers, anchors) used by
// replace()/matches() in practice.
func translateRegex(pattern string) string { return pattern }

func fnReplace(args []xpath.Value) (xpath.Value, error) {
	if len(args) < 3 || len(args) > 4 {
		return xpath.Value{}, fmt.Errorf("replace: expects 3 or 4 arguments")
	}
	re, err := regexp.Compile(translateRegex(args[1].AsString()))
	if err != nil {
		return xpath.Value{}, fmt.Errorf("%w: replace: %v", ErrXPath, err)
	}
	replacement := goReplacement(args[2].AsString())
	return xpath.NewString(re.ReplaceAllString(args[0].AsString(), replacement)), nil
}

// goReplacement rewrites XPath's $1-style backreferences into Go's
// ${1} form so ReplaceAllString interprets them the same way.
func goReplacement(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			b.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func fnMatches(args []xpath.Value) (xpath.Value, error) {
	if len(args) != 2 {
		return xpath.Value{}, fmt.Errorf("matches: expects 2 arguments")
	}
	re, err := regexp.Compile(translateRegex(args[1].AsString()))
	if err != nil {
		return xpath.Value{}, fmt.Errorf("%w: matches: %v", ErrXPath, err)
	}
	return xpath.NewBoolean(re.MatchString(args[0].AsString())), nil
}

func fnKey(c *Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) != 2 {
		return xpath.Value{}, fmt.Errorf("key: expects 2 arguments")
	}
	idx, ok := c.Engine.Keys[args[0].AsString()]
	if !ok {
		return xpath.NewNodeSet(nil), nil
	}
	var values []string
	if args[1].Kind == xpath.NodeSet {
		for _, n := range args[1].Nodes {
			values = append(values, xpath.StringValue(n))
		}
	} else {
		values = []string{args[1].AsString()}
	}
	var out []etree.Token
	for _, v := range values {
		out = append(out, idx.index[v]...)
	}
	return xpath.NewNodeSet(out), nil
}
