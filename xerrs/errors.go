// Package xerrs is this module's error taxonomy (spec.md §7). Errors
// propagate as return values, never panics, carrying the offending
// AST node so a caller can report a source position; this module
// provides no diagnostic formatting of its own (spec.md §1, "Out of
// scope: ... diagnostic formatting").
package xerrs

import (
	"fmt"

	"github.com/jns4u/viperc/ast"
)

// Kind enumerates the five error kinds named in spec.md §7.
type Kind int

const (
	InvalidType Kind = iota
	TypeMismatch
	VariableDeclaration
	Structure
	ConstancyViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidType:
		return "InvalidType"
	case TypeMismatch:
		return "TypeMismatch"
	case VariableDeclaration:
		return "VariableDeclaration"
	case Structure:
		return "Structure"
	case ConstancyViolation:
		return "ConstancyViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every translator entry point
// returns on failure.
type Error struct {
	Kind Kind
	Node ast.Node // offending node, nil if not applicable
	Line int      // source line, -1 if unknown
	Msg  string
	Err  error // wrapped cause, nil if none
}

func (e *Error) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// At builds an *Error anchored at node's source line, in the
// teacher's errorAt idiom (lang/ysem/analyzer.go's errorAt).
func At(kind Kind, node ast.Node, format string, args ...interface{}) *Error {
	line := -1
	if node != nil {
		line = node.Line()
	}
	return &Error{Kind: kind, Node: node, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error anchored at node's source line, wrapping an
// existing cause.
func Wrap(kind Kind, node ast.Node, cause error, format string, args ...interface{}) *Error {
	e := At(kind, node, format, args...)
	e.Err = cause
	return e
}
