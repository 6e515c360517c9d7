package xpath

import "github.com/beevik/etree"

// NamespaceResolver maps a prefix to a namespace URI. The "" prefix means
// the default namespace.
type NamespaceResolver interface {
	ResolveNamespace(prefix string) (string, bool)
}

// VariableResolver maps a (possibly prefixed) variable name to its bound
// XPath Value.
type VariableResolver interface {
	ResolveVariable(name string) (Value, bool)
}

// Function is the signature every XPath/XSLT built-in and custom extension
// function implements.
type Function func(ctx *Context, args []Value) (Value, error)

// FunctionResolver looks up a function implementation by namespace URI
// (empty for the core library) and local name. Implementations are
// expected to chain: ask the next resolver in line when they don't know
// the name, mirroring the function resolver trio described by the engine.
type FunctionResolver interface {
	ResolveFunction(namespaceURI, localName string) (Function, bool)
}

// Context carries everything an expression evaluation needs: the focus
// (context node / position / size) and the three resolvers.
type Context struct {
	Node     etree.Token
	Position int
	Size     int

	NS    NamespaceResolver
	Vars  VariableResolver
	Funcs FunctionResolver
}

func (c *Context) withNode(n etree.Token, pos, size int) *Context {
	child := *c
	child.Node = n
	child.Position = pos
	child.Size = size
	return &child
}

type chainedFunctions struct {
	first, next FunctionResolver
}

// ChainFunctions returns a resolver that tries first, then next. Either
// side may be nil.
func ChainFunctions(first, next FunctionResolver) FunctionResolver {
	if first == nil {
		return next
	}
	if next == nil {
		return first
	}
	return chainedFunctions{first: first, next: next}
}

func (c chainedFunctions) ResolveFunction(ns, local string) (Function, bool) {
	if fn, ok := c.first.ResolveFunction(ns, local); ok {
		return fn, true
	}
	if c.next == nil {
		return nil, false
	}
	return c.next.ResolveFunction(ns, local)
}

// FuncMap is the simplest FunctionResolver: a flat table of unprefixed
// (namespace-less) functions, used for the XPath 1.0 core library.
type FuncMap map[string]Function

func (m FuncMap) ResolveFunction(ns, local string) (Function, bool) {
	if ns != "" {
		return nil, false
	}
	fn, ok := m[local]
	return fn, ok
}
