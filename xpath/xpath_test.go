package xpath

import (
	"testing"

	"github.com/beevik/etree"
)

func mustEval(t *testing.T, root etree.Token, src string) Value {
	t.Helper()
	expr, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	ctx := &Context{Node: root, Position: 1, Size: 1, Funcs: CoreFunctions}
	v, err := expr.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

func parseDoc(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("ReadFromString: %v", err)
	}
	return doc.Root()
}

func TestLocationPathAndPredicate(t *testing.T) {
	root := parseDoc(t, `<r><item id="1"/><item id="2"/><item id="3"/></r>`)
	v := mustEval(t, root, "item[2]/@id")
	nodes, err := v.AsNodeSet()
	if err != nil {
		t.Fatalf("AsNodeSet: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("want 1 node, got %d", len(nodes))
	}
	if got := StringValue(nodes[0]); got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestUnionOperator(t *testing.T) {
	root := parseDoc(t, `<r><a/><b/><c/></r>`)
	v := mustEval(t, root, "a | c")
	nodes, err := v.AsNodeSet()
	if err != nil {
		t.Fatalf("AsNodeSet: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("want 2 nodes, got %d", len(nodes))
	}
	if LocalName(nodes[0]) != "a" || LocalName(nodes[1]) != "c" {
		t.Errorf("unexpected union result order: %v, %v", LocalName(nodes[0]), LocalName(nodes[1]))
	}
}

func TestNodeSetVsStringGeneralComparison(t *testing.T) {
	root := parseDoc(t, `<r><n>3</n><n>5</n></r>`)
	v := mustEval(t, root, "n = '5'")
	if !v.AsBool() {
		t.Error("expected n = '5' to be true when any node's string-value matches")
	}
	v2 := mustEval(t, root, "n = '9'")
	if v2.AsBool() {
		t.Error("expected n = '9' to be false")
	}
}

func TestArithmeticAndComparison(t *testing.T) {
	root := parseDoc(t, `<r/>`)
	v := mustEval(t, root, "(1 + 2) * 3 - 4 div 2")
	if v.AsNumber() != 7 {
		t.Errorf("got %v, want 7", v.AsNumber())
	}
	if !mustEval(t, root, "5 > 3 and 2 < 4").AsBool() {
		t.Error("expected boolean and/comparison chain to be true")
	}
}

func TestCoreStringFunctions(t *testing.T) {
	root := parseDoc(t, `<r/>`)
	if got := mustEval(t, root, "concat('a', 'b', 'c')").AsString(); got != "abc" {
		t.Errorf("concat: got %q", got)
	}
	if !mustEval(t, root, "contains('hello world', 'wor')").AsBool() {
		t.Error("contains: expected true")
	}
	if got := mustEval(t, root, "substring('hello', 2, 3)").AsString(); got != "ell" {
		t.Errorf("substring: got %q", got)
	}
	if got := mustEval(t, root, "translate('abc', 'ab', 'xy')").AsString(); got != "xyc" {
		t.Errorf("translate: got %q", got)
	}
}

func TestPositionAndCountInPredicate(t *testing.T) {
	root := parseDoc(t, `<r><n/><n/><n/></r>`)
	v := mustEval(t, root, "count(n[position() > 1])")
	if v.AsNumber() != 2 {
		t.Errorf("got %v, want 2", v.AsNumber())
	}
}

func TestValueCoercion(t *testing.T) {
	if NewString("").AsBool() {
		t.Error("empty string should coerce to false")
	}
	if !NewString("false").AsBool() {
		t.Error("non-empty string \"false\" must coerce to true per XPath string-to-boolean rules")
	}
	if NewNumber(0).AsBool() {
		t.Error("0 should coerce to false")
	}
	if got := NewNumber(3.0).AsString(); got != "3" {
		t.Errorf("integral number formatting: got %q, want %q", got, "3")
	}
}

func TestDescendantOrSelfWildcard(t *testing.T) {
	root := parseDoc(t, `<r><a><b><c/></b></a></r>`)
	v := mustEval(t, root, "//c")
	nodes, err := v.AsNodeSet()
	if err != nil {
		t.Fatalf("AsNodeSet: %v", err)
	}
	if len(nodes) != 1 || LocalName(nodes[0]) != "c" {
		t.Errorf("descendant search failed: %v", nodes)
	}
}
