package domx

import (
	"testing"

	"github.com/beevik/etree"
)

func TestAttributeDecodesEntities(t *testing.T) {
	root, err := Parse(`<r x="a&amp;b &lt;c&gt;"/>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := Wrap(root.SelectElement("r")).Attribute("x")
	if !ok {
		t.Fatal("expected attribute x to be present")
	}
	if want := `a&b <c>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAttributeMissing(t *testing.T) {
	root, err := Parse(`<r/>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := Wrap(root.SelectElement("r")).Attribute("missing"); ok {
		t.Error("expected ok=false for a missing attribute")
	}
}

func TestIsAMatchesUnprefixedName(t *testing.T) {
	root, err := Parse(`<r/>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := root.SelectElement("r")
	if !Wrap(r).IsA(ParsePatterns("r")) {
		t.Error("expected r to match pattern \"r\"")
	}
	if Wrap(r).IsA(ParsePatterns("other")) {
		t.Error("did not expect r to match pattern \"other\"")
	}
}

func TestIsANegation(t *testing.T) {
	root, err := Parse(`<r/>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Wrap(root.SelectElement("r")).IsA(ParsePatterns("*", "^r")) {
		t.Error("a negated pattern must exclude an otherwise-matching node")
	}
}

func TestCopyDeepClonesSubtree(t *testing.T) {
	src, err := Parse(`<a x="1"><b>text</b></a>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dst := NewFragment()
	if _, err := (Helper{Node: dst}).CopyDeep(src); err != nil {
		t.Fatalf("CopyDeep: %v", err)
	}
	if len(dst.Child) != 1 {
		t.Fatalf("expected 1 top-level child, got %d", len(dst.Child))
	}
	a, ok := dst.Child[0].(*etree.Element)
	if !ok || a.Tag != "a" {
		t.Fatalf("expected copied element a, got %#v", dst.Child[0])
	}
	if a.SelectAttrValue("x", "") != "1" {
		t.Errorf("expected attribute x=1 to survive the copy")
	}
	if got := Wrap(a).TextContent(); got != "text" {
		t.Errorf("got text content %q, want %q", got, "text")
	}
	// mutating the clone must not affect the source.
	a.CreateAttr("y", "2")
	if src.SelectElement("a").SelectAttrValue("y", "") != "" {
		t.Error("CopyDeep must produce an independent copy, not share attribute storage")
	}
}

func TestIsFragmentLike(t *testing.T) {
	if !IsFragmentLike(NewFragment()) {
		t.Error("NewFragment() must be fragment-like")
	}
	named := etree.NewElement("e")
	if IsFragmentLike(named) {
		t.Error("a named element must not be fragment-like")
	}
}

func TestParseAndSerializeRoundTrip(t *testing.T) {
	root, err := Parse(`<r><a/></r>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Serialize(root, SerializeOptions{OmitXMLDeclaration: true})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	reparsed, err := Parse(out, ParseOptions{})
	if err != nil {
		t.Fatalf("re-parse of serialized output: %v", err)
	}
	if r := reparsed.SelectElement("r"); r == nil || len(r.ChildElements()) != 1 {
		t.Errorf("round trip did not preserve structure: %q", out)
	}
}

func TestPreserveCDataOption(t *testing.T) {
	root, err := Parse(`<r><![CDATA[raw & text]]></r>`, ParseOptions{PreserveCData: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := Wrap(root).TextContent(); got != "raw & text" {
		t.Errorf("got %q, want %q", got, "raw & text")
	}
}
