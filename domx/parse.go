package domx

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
)

// ParseOptions mirrors the handful of etree.ReadSettings knobs the driver
// cares about.
type ParseOptions struct {
	PreserveCData bool
}

// Parse reads an XML document from src, returning its root element
// container (Tag == "" && Parent() == nil identifies it as a document
// node to the xpath navigator).
func Parse(src string, opts ParseOptions) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = opts.PreserveCData
	if err := doc.ReadFromString(src); err != nil {
		return nil, fmt.Errorf("domx: parse: %w", err)
	}
	return &doc.Element, nil
}

// ParseBytes is the []byte counterpart of Parse, used when input arrives
// already decoded (e.g. from a Fetcher).
func ParseBytes(src []byte, opts ParseOptions) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = opts.PreserveCData
	if _, err := doc.ReadFrom(bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("domx: parse: %w", err)
	}
	return &doc.Element, nil
}

// SerializeOptions mirrors the output-controlling knobs an xsl:output
// handler typically understands.
type SerializeOptions struct {
	Indent            int // negative disables indentation
	OmitXMLDeclaration bool
}

// Serialize writes root (a document container, as returned by Parse, or a
// bare fragment root) back out to a string.
func Serialize(root *etree.Element, opts SerializeOptions) (string, error) {
	doc := etree.NewDocument()
	children := append([]etree.Token(nil), root.Child...)
	for _, c := range children {
		doc.AddChild(c)
	}
	if opts.Indent >= 0 {
		doc.Indent(opts.Indent)
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("domx: serialize: %w", err)
	}
	out := buf.String()
	if opts.OmitXMLDeclaration {
		out = stripXMLDeclaration(out)
	}
	return out, nil
}

func stripXMLDeclaration(s string) string {
	if len(s) < 5 || s[:5] != "<?xml" {
		return s
	}
	end := -1
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '?' && s[i+1] == '>' {
			end = i + 2
			break
		}
	}
	if end < 0 {
		return s
	}
	for end < len(s) && (s[end] == '\n' || s[end] == '\r') {
		end++
	}
	return s[end:]
}
