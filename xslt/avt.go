package xslt

import (
	"strings"

	"github.com/xslt-go/xslt/xpath"
)

// resolveExpression is the attribute value template resolver:
// iteratively rewrite the outermost {...} run. A failing sub-expression
// degrades to a sentinel rather than aborting the whole attribute.
func (c *Context) resolveExpression(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if text[i] == '{' {
			if i+1 < len(text) && text[i+1] == '{' {
				out.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				out.WriteString(text[i:])
				break
			}
			expr := text[i+1 : i+1+end]
			val, err := c.evalAVTExpr(expr)
			if err != nil {
				out.WriteString("[[[" + expr + "]]]")
			} else {
				out.WriteString(val)
			}
			i = i + 1 + end + 1
			continue
		}
		if text[i] == '}' && i+1 < len(text) && text[i+1] == '}' {
			out.WriteByte('}')
			i += 2
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	result := out.String()
	result = strings.ReplaceAll(result, "[[[", "{")
	result = strings.ReplaceAll(result, "]]]", "}")
	return result
}

func (c *Context) evalAVTExpr(expr string) (string, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return "", err
	}
	v, err := compiled.Eval(c.xpath())
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}
