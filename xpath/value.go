// Package xpath implements the XPath 1.0 expression language used to
// evaluate XSLT select/match/test attributes. It is deliberately a
// faithful subset: the axes and core function library needed to drive a
// tree-walking XSLT engine, not a schema-aware, fully conformant processor.
package xpath

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ValueKind discriminates the four XPath 1.0 value types. There is no dynamic
// "any" variant: every Value carries exactly one of these.
type ValueKind int

const (
	NodeSet ValueKind = iota
	String
	Number
	Boolean
)

func (k ValueKind) String() string {
	switch k {
	case NodeSet:
		return "node-set"
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is the tagged union XPath Value described by the evaluator's data
// model: NodeSet | String | Number | Boolean.
type Value struct {
	Kind  ValueKind
	Nodes []etree.Token
	Str   string
	Num   float64
	Bool  bool
}

func NewNodeSet(nodes []etree.Token) Value { return Value{Kind: NodeSet, Nodes: dedupOrdered(nodes)} }
func NewString(s string) Value             { return Value{Kind: String, Str: s} }
func NewNumber(n float64) Value            { return Value{Kind: Number, Num: n} }
func NewBoolean(b bool) Value              { return Value{Kind: Boolean, Bool: b} }

func dedupOrdered(nodes []etree.Token) []etree.Token {
	seen := make(map[etree.Token]bool, len(nodes))
	out := make([]etree.Token, 0, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return DocumentOrderLess(out[i], out[j])
	})
	return out
}

// AsString converts the value to a string per the XPath 1.0 coercion rules.
func (v Value) AsString() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return formatNumber(v.Num)
	case Boolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case NodeSet:
		if len(v.Nodes) == 0 {
			return ""
		}
		return StringValue(v.Nodes[0])
	default:
		return ""
	}
}

// AsNumber converts the value to a float64 per XPath 1.0 coercion rules.
func (v Value) AsNumber() float64 {
	switch v.Kind {
	case Number:
		return v.Num
	case Boolean:
		if v.Bool {
			return 1
		}
		return 0
	case NodeSet:
		return parseNumber(v.AsString())
	case String:
		return parseNumber(v.Str)
	default:
		return math.NaN()
	}
}

// AsBool computes the effective boolean value of v.
func (v Value) AsBool() bool {
	switch v.Kind {
	case Boolean:
		return v.Bool
	case Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case String:
		return v.Str != ""
	case NodeSet:
		return len(v.Nodes) > 0
	default:
		return false
	}
}

// AsNodeSet returns the underlying node-set, or an error if v is not one.
func (v Value) AsNodeSet() ([]etree.Token, error) {
	if v.Kind != NodeSet {
		return nil, fmt.Errorf("%s: node-set expected", v.Kind)
	}
	return v.Nodes, nil
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		if math.Signbit(n) {
			return "0"
		}
		return "0"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
