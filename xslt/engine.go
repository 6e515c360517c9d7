package xslt

import (
	"github.com/beevik/etree"
)

// Engine owns every piece of mutable, per-run state: template caches,
// whitespace lists, the decimal-format registry, and the fetch cache.
// A fresh Engine is built per Process/Transform call so concurrent runs
// never share mutable state.
type Engine struct {
	// Cache holds lazily-computed template indices, keyed by the
	// transform document that produced them.
	Cache *templateCache

	StripSpace    []wsPattern
	PreserveSpace []wsPattern

	DecimalFormats map[string]*DecimalFormat

	Output OutputSpec

	Fetcher  Fetcher
	fetchLog map[string]string // cache by resolved URL for one run

	Keys map[string]*keyIndex

	nodeIDs  map[*etree.Element]int
	nextID   int
	Tracer   Tracer
	Params   map[string]any
}

func newEngine(opts Options) *Engine {
	e := &Engine{
		Cache:          newTemplateCache(),
		DecimalFormats: map[string]*DecimalFormat{"_default": defaultDecimalFormat()},
		Output:         defaultOutputSpec(),
		Fetcher:        opts.Fetcher,
		fetchLog:       map[string]string{},
		Keys:           map[string]*keyIndex{},
		nodeIDs:        map[*etree.Element]int{},
		Tracer:         opts.Tracer,
		Params:         map[string]any{},
	}
	if e.Fetcher == nil {
		e.Fetcher = LocalFetcher{}
	}
	if e.Tracer == nil {
		e.Tracer = NoopTracer()
	}
	return e
}

// nodeID returns a stable, monotonically-assigned id for el, used as
// generate-id()'s per-node tag since etree carries no line/column
// information of its own to hash.
func (e *Engine) nodeID(el *etree.Element) int {
	if id, ok := e.nodeIDs[el]; ok {
		return id
	}
	e.nextID++
	e.nodeIDs[el] = e.nextID
	return e.nextID
}

// templateEntry pairs a cached xsl:template with its match priority,
// mirroring the Priority field the teacher's own Template struct
// carries alongside its compiled Matcher.
type templateEntry struct {
	el       *etree.Element
	priority float64
}

// templateCache holds the by-name and by-mode template indices,
// computed lazily and shared by reference across every cloned Context
// of one run. Entries within a mode are kept in document order;
// selection among several matching entries is done by priority at
// dispatch time, see selectTemplate.
type templateCache struct {
	byName map[string]*etree.Element
	byMode map[string][]templateEntry
	built  bool
}

func newTemplateCache() *templateCache {
	return &templateCache{byName: map[string]*etree.Element{}, byMode: map[string][]templateEntry{}}
}

type wsPattern struct {
	ns, local string // local == "*" is the element wildcard
}

func (p wsPattern) matches(ns, local string) bool {
	return p.ns == ns && (p.local == "*" || p.local == local)
}

type keyIndex struct {
	use   string
	match string
	index map[string][]etree.Token
}
