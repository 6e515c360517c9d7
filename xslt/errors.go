package xslt

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned for unknown or deliberately
	// unsupported XSLT instructions (e.g. xsl:number).
	ErrNotImplemented = errors.New("not implemented")
	// ErrXPath wraps an XPath expression evaluation failure.
	ErrXPath = errors.New("xpath evaluation failed")
	// ErrFetch wraps an include/import/document() fetch failure.
	ErrFetch = errors.New("fetch failed")
	// ErrMalformedInput wraps an input/transform parse failure.
	ErrMalformedInput = errors.New("malformed xml input")
	// ErrInternalInvariant marks a condition the engine never expects
	// to observe (e.g. a cache miss for a template that reported itself).
	ErrInternalInvariant = errors.New("internal invariant violated")
	// ErrTerminate is raised by xsl:message terminate="yes".
	ErrTerminate = errors.New("transform terminated")
)

// TransformError is the single error type the boundary surfaces for any
// runtime failure past the tolerant AVT/fetch paths: it carries the
// offending instruction's qualified name and the input node's path so a
// caller can locate the failure without a debugger.
type TransformError struct {
	Instruction string
	NodePath    string
	Err         error
}

func (e *TransformError) Error() string {
	if e.NodePath == "" {
		return fmt.Sprintf("%s: %v", e.Instruction, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Instruction, e.NodePath, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func wrapErr(instruction, nodePath string, err error) error {
	if err == nil {
		return nil
	}
	return &TransformError{Instruction: instruction, NodePath: nodePath, Err: err}
}
