package xslt

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/xslt-go/xslt/domx"
	"github.com/xslt-go/xslt/xpath"
)

// Options is the thin host surface around Process: base URLs for
// relative include/import/document() resolution, extension functions
// keyed by namespace, and the debug tracer.
type Options struct {
	InputURL        string
	TransformURL    string
	CustomFunctions map[string]map[string]xpath.Function
	Debug           bool
	Tracer          Tracer
	Fetcher         Fetcher
}

// OutputSpec mirrors the serialization knobs xsl:output registers.
type OutputSpec struct {
	Method             string // "xml" | "html" | "text"
	Version            string
	Encoding           string
	OmitXMLDeclaration bool
	Standalone         string
	Indent             bool
	MediaType          string
}

func defaultOutputSpec() OutputSpec {
	return OutputSpec{Method: "xml", Version: "1.0", Encoding: "UTF-8"}
}

// Process parses an input document and a stylesheet, runs the
// transform, and returns the serialized result.
func Process(ctx context.Context, inputXML, transformXML string, params map[string]any, opts Options) (string, error) {
	inputRoot, err := domx.Parse(inputXML, domx.ParseOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: input: %v", ErrMalformedInput, err)
	}
	transformRoot, err := domx.Parse(transformXML, domx.ParseOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: transform: %v", ErrMalformedInput, err)
	}
	return run(ctx, inputRoot, transformRoot, params, opts)
}

// TransformSpec is the xslt4node-compatible request shape for Transform.
type TransformSpec struct {
	Source          string // input XML text
	XSLT            string // stylesheet XML text
	Params          map[string]any
	CustomFunctions map[string]map[string]xpath.Function
	Debug           bool
}

// Transform is an xslt4node-compatible callback wrapper around Process:
// callback receives (errorMessage, "") on failure or ("", outputXML) on
// success.
func Transform(spec TransformSpec, callback func(errorMessage, outputXML string)) {
	opts := Options{CustomFunctions: spec.CustomFunctions, Debug: spec.Debug}
	out, err := Process(context.Background(), spec.Source, spec.XSLT, spec.Params, opts)
	if err != nil {
		callback(err.Error(), "")
		return
	}
	callback("", out)
}

func run(ctx context.Context, inputRoot, transformRoot *etree.Element, params map[string]any, opts Options) (string, error) {
	engine := newEngine(opts)

	stylesheetEl, err := topElement(transformRoot)
	if err != nil {
		return "", err
	}

	root := rootContext(inputRoot, stylesheetEl, engine, opts.InputURL, opts.TransformURL)
	root.CustomFunctions = opts.CustomFunctions
	engine.Params = params
	for name, v := range params {
		root.setVariable(name, v)
	}

	engine.Tracer.Start()
	defer engine.Tracer.Done()

	output := domx.NewFragment()
	if err := process(ctx, root, stylesheetEl, output); err != nil {
		return "", err
	}

	return serializeOutput(output, engine.Output)
}

func topElement(docRoot *etree.Element) (*etree.Element, error) {
	for _, c := range docRoot.ChildElements() {
		return c, nil
	}
	return nil, fmt.Errorf("%w: transform document has no root element", ErrMalformedInput)
}

// serializeOutput honors the recorded OutputSpec, then restores any
// disable-output-escaping sentinels left by hText/hValueOf.
func serializeOutput(output *etree.Element, spec OutputSpec) (string, error) {
	indent := -1
	if spec.Indent {
		indent = 2
	}
	out, err := domx.Serialize(output, domx.SerializeOptions{Indent: indent, OmitXMLDeclaration: true})
	if err != nil {
		return "", err
	}
	out = doeDecode(out)
	if !spec.OmitXMLDeclaration {
		encoding := spec.Encoding
		if encoding == "" {
			encoding = "UTF-8"
		}
		version := spec.Version
		if version == "" {
			version = "1.0"
		}
		decl := fmt.Sprintf(`<?xml version="%s" encoding="%s"`, version, encoding)
		if spec.Standalone != "" {
			decl += fmt.Sprintf(` standalone="%s"`, spec.Standalone)
		}
		decl += "?>\n"
		out = decl + out
	}
	return out, nil
}

// doeDecode restores the five XML delimiters that hText/hValueOf
// wrapped in "[[X]]name;" sentinels under disable-output-escaping,
// unescaped, after the serializer has already escaped everything else.
func doeDecode(s string) string {
	r := strings.NewReplacer(
		doeLT, "<",
		doeGT, ">",
		doeApos, "'",
		doeQuote, "\"",
		doeAmp, "&",
	)
	return r.Replace(s)
}
