package xslt

import (
	"context"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"

	"github.com/xslt-go/xslt/domx"
)

func mustTransform(t *testing.T, transformXML, inputXML string) string {
	t.Helper()
	out, err := Process(context.Background(), inputXML, transformXML, nil, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return out
}

// xmlNode is a comparable projection of an *etree.Element subtree, used so
// go-cmp can diff parsed XML by structure rather than by incidental
// serialization choices (quote style, self-closing tags) neither test
// author controls directly.
type xmlNode struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []xmlNode
}

func projectXML(t *testing.T, xml string) xmlNode {
	t.Helper()
	root, err := domx.Parse(xml, domx.ParseOptions{})
	if err != nil {
		t.Fatalf("projectXML: parse %q: %v", xml, err)
	}
	return projectElement(root)
}

func projectElement(el *etree.Element) xmlNode {
	n := xmlNode{Tag: el.Tag, Attrs: map[string]string{}}
	for _, a := range el.Attr {
		n.Attrs[a.Key] = a.Value
	}
	for _, c := range el.Child {
		switch v := c.(type) {
		case *etree.Element:
			n.Children = append(n.Children, projectElement(v))
		case *etree.CharData:
			n.Text += v.Data
		}
	}
	n.Text = strings.TrimSpace(n.Text)
	return n
}

func assertXMLEqual(t *testing.T, got, want string) {
	t.Helper()
	g, w := projectXML(t, got), projectXML(t, want)
	if diff := cmp.Diff(w, g); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// An identity transform via copy-of reproduces the input structure.
func TestIdentityTransform(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/">
    <xsl:copy-of select="*"/>
  </xsl:template>
</xsl:stylesheet>`
	input := `<a><b x="1"/></a>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	assertXMLEqual(t, got, `<a><b x="1"/></a>`)
}

// Two modes applied over the same nodes select disjoint template sets.
func TestModesSelectDisjointTemplates(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:apply-templates select="r/item"/><xsl:apply-templates select="r/item" mode="x"/></xsl:template>
  <xsl:template match="item">id=<xsl:value-of select="@id"/></xsl:template>
  <xsl:template match="item" mode="x">X:<xsl:value-of select="@id"/></xsl:template>
</xsl:stylesheet>`
	input := `<r><item id="1"/><item id="2"/></r>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "id=1id=2X:1X:2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// A for-each with a descending numeric sort reorders its output.
func TestSortedForEach(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:for-each select="r/n"><xsl:sort select="." data-type="number" order="descending"/><v><xsl:value-of select="."/></v></xsl:for-each></xsl:template>
</xsl:stylesheet>`
	input := `<r><n>10</n><n>2</n><n>30</n></r>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "<v>30</v><v>10</v><v>2</v>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// xsl:element/xsl:attribute build an attribute whose value is
// assembled from literal text and a value-of, the manual equivalent of
// an attribute value template.
func TestElementAttributeComposition(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/">
    <xsl:element name="e">
      <xsl:attribute name="a">pre-<xsl:value-of select="r/@x"/>-post</xsl:attribute>
    </xsl:element>
  </xsl:template>
</xsl:stylesheet>`
	input := `<r x="7"/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	assertXMLEqual(t, got, `<e a="pre-7-post"/>`)
}

// A recursive call-template carries an accumulator through with-param.
func TestRecursiveCallTemplateWithParam(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/">
    <xsl:call-template name="sum">
      <xsl:with-param name="n" select="number(r/@v)"/>
    </xsl:call-template>
  </xsl:template>
  <xsl:template name="sum">
    <xsl:param name="n"/>
    <xsl:param name="acc" select="0"/>
    <xsl:choose>
      <xsl:when test="$n = 0"><xsl:value-of select="$acc"/></xsl:when>
      <xsl:otherwise>
        <xsl:call-template name="sum">
          <xsl:with-param name="n" select="$n - 1"/>
          <xsl:with-param name="acc" select="$acc + $n"/>
        </xsl:call-template>
      </xsl:otherwise>
    </xsl:choose>
  </xsl:template>
</xsl:stylesheet>`
	input := `<r v="5"/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "15"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// format-number applies an explicit negative sub-pattern.
func TestFormatNumberWithPattern(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:value-of select="format-number(-1234.5, '#,##0.00;(#,##0.00)')"/></xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "(1,234.50)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Nested variable scopes fall through to the nearest binder.
func TestVariableScopeFallthrough(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:variable name="outer" select="'O'"/>
  <xsl:template match="/">
    <xsl:for-each select="r">
      <xsl:variable name="inner" select="'I'"/>
      <xsl:value-of select="$outer"/><xsl:value-of select="$inner"/>
    </xsl:for-each>
  </xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "OI"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// apply-templates falls back to copying a text candidate verbatim
// when no template in the active mode fires against it.
func TestApplyTemplatesTextFallback(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:apply-templates select="r/node()"/></xsl:template>
  <xsl:template match="b">[B]</xsl:template>
</xsl:stylesheet>`
	input := `<r>text<b/></r>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "text[B]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// A literal result element's AVT-carrying attributes are resolved
// against the current input context.
func TestLiteralResultElementAVT(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><out id="item-{r/@id}"/></xsl:template>
</xsl:stylesheet>`
	input := `<r id="42"/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	assertXMLEqual(t, got, `<out id="item-42"/>`)
}

// Whitespace-only text between instructions in the transform produces
// no output on its own.
func TestWhitespaceOnlyTextDropped(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/">
    <xsl:value-of select="'a'"/>
    <xsl:value-of select="'b'"/>
  </xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "ab"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// generate-id is stable for the same node within one run.
func TestGenerateIDStableWithinRun(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:value-of select="generate-id(r)"/>-<xsl:value-of select="generate-id(r)"/></xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	parts := strings.SplitN(got, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[0] != parts[1] {
		t.Errorf("generate-id not stable across calls: %q", got)
	}
}

// xsl:comment must append a real comment node, fixing the teacher bug.
func TestCommentAppendsRealNode(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="/"><xsl:comment>hello</xsl:comment></xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "<!--hello-->"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// xsl:number is an explicitly unimplemented instruction.
func TestNumberNotImplemented(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:template match="/"><xsl:number/></xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	_, err := Process(context.Background(), input, transform, nil, Options{})
	if err == nil {
		t.Fatal("expected an error for xsl:number")
	}
}

// Among two templates that both match a node in the same mode, the one
// with the more specific default priority wins regardless of which is
// declared first.
func TestTemplateSpecificityBeatsDeclarationOrder(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="*"><xsl:text>wildcard:</xsl:text><xsl:value-of select="@id"/></xsl:template>
  <xsl:template match="item[@featured]"><xsl:text>featured:</xsl:text><xsl:value-of select="@id"/></xsl:template>
  <xsl:template match="/"><xsl:apply-templates select="r/item"/></xsl:template>
</xsl:stylesheet>`
	input := `<r><item id="1"/><item id="2" featured="yes"/></r>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "wildcard:1featured:2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// An explicit priority= attribute overrides the default priority a
// pattern's shape would otherwise imply.
func TestExplicitPriorityOverridesDefault(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:template match="item" priority="-1"><xsl:text>low:</xsl:text><xsl:value-of select="@id"/></xsl:template>
  <xsl:template match="*" priority="10"><xsl:text>high:</xsl:text><xsl:value-of select="@id"/></xsl:template>
  <xsl:template match="/"><xsl:apply-templates select="r/item"/></xsl:template>
</xsl:stylesheet>`
	input := `<r><item id="1"/></r>`
	got := strings.TrimSpace(mustTransform(t, transform, input))
	want := "high:1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// An unrecognized top-level parameter flows through Process into
// xsl:param bindings.
func TestTopLevelParam(t *testing.T) {
	transform := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:output omit-xml-declaration="yes"/>
  <xsl:param name="greeting" select="'hi'"/>
  <xsl:template match="/"><xsl:value-of select="$greeting"/></xsl:template>
</xsl:stylesheet>`
	input := `<r/>`
	out, err := Process(context.Background(), input, transform, map[string]any{"greeting": "hello"}, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := strings.TrimSpace(out)
	want := "hello"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
