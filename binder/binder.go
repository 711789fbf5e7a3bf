// Package binder implements the function binder (spec.md §4.D):
// deriving parameter layout, return type, constancy flag, signature
// string, and selector for each function definition.
//
// Grounded on lang/yparse/symtab.go's ParamSymbol/offset assignment
// (AddParam's sequential Index), extended with golang.org/x/crypto/
// sha3-backed selector hashing via the selector package.
package binder

import (
	"fmt"
	"strings"

	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/selector"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// ConstructorName is the reserved name that marks a function as the
// module's constructor.
const ConstructorName = "__init__"

// Param is a bound function parameter.
type Param struct {
	Name   string
	Type   *types.Type
	Offset int64 // calldata offset (constructor: negative, relative to codesize)
}

// Bound is the function binder's output (spec.md §4.D): name, args,
// output type, constancy, signature, and selector.
type Bound struct {
	Name       string
	Args       []*Param
	ReturnType *types.Type // nil if no declared return
	Const      bool
	Signature  string
	Selector   uint32
	IsCtor     bool
	Node       *ast.FunctionDef
}

// Bind derives a Bound descriptor for fn. h computes the selector
// hash; pass selector.Default outside of tests.
func Bind(h selector.Hasher, fn *ast.FunctionDef) (*Bound, error) {
	isCtor := fn.Name == ConstructorName

	params, err := bindParams(fn, isCtor)
	if err != nil {
		return nil, err
	}

	retType, isConst, err := parseReturnAnnotation(fn.Returns)
	if err != nil {
		return nil, err
	}

	canon := make([]string, len(params))
	for i, p := range params {
		c, err := types.CanonicalizeType(p.Type)
		if err != nil {
			return nil, err
		}
		canon[i] = c
	}
	signature := fmt.Sprintf("%s(%s)", fn.Name, strings.Join(canon, ","))
	sel := selector.FunctionSelector(h, signature)

	return &Bound{
		Name:       fn.Name,
		Args:       params,
		ReturnType: retType,
		Const:      isConst,
		Signature:  signature,
		Selector:   sel,
		IsCtor:     isCtor,
		Node:       fn,
	}, nil
}

func bindParams(fn *ast.FunctionDef, isCtor bool) ([]*Param, error) {
	seen := make(map[string]bool, len(fn.Args))
	params := make([]*Param, len(fn.Args))
	n := len(fn.Args)

	for i, a := range fn.Args {
		if a.Annotation == nil {
			return nil, xerrs.At(xerrs.InvalidType, a, "parameter %q has no type annotation", a.Name)
		}
		if !types.IsVarnameValid(a.Name, nil) {
			return nil, xerrs.At(xerrs.VariableDeclaration, a, "invalid parameter name %q", a.Name)
		}
		if seen[a.Name] {
			return nil, xerrs.At(xerrs.VariableDeclaration, a, "duplicate parameter %q", a.Name)
		}
		seen[a.Name] = true

		typ, err := types.ParseType(a.Annotation)
		if err != nil {
			return nil, err
		}

		var offset int64
		if isCtor {
			// Constructor parameters live at -32*N, -32*(N-1), ..., -32.
			offset = -32 * int64(n-i)
		} else {
			// Regular functions place parameters at 4, 36, 68, ... (skipping
			// the 4-byte selector at the start of calldata).
			offset = 4 + 32*int64(i)
		}
		params[i] = &Param{Name: a.Name, Type: typ, Offset: offset}
	}
	return params, nil
}

// parseReturnAnnotation parses a function's return annotation, which
// may be absent, a plain type expression, or a call-shaped annotation
// carrying at most one unit description and at most one const marker
// (spec.md §4.D).
func parseReturnAnnotation(node ast.Node) (*types.Type, bool, error) {
	if node == nil {
		return nil, false, nil
	}
	call, ok := node.(*ast.Call)
	if !ok {
		t, err := types.ParseType(node)
		return t, false, err
	}

	isConst := false
	seenConst := false
	kept := make([]*ast.Keyword, 0, len(call.Keywords))
	for _, kw := range call.Keywords {
		if kw.Arg == "const" {
			if seenConst {
				return nil, false, xerrs.At(xerrs.Structure, node, "at most one const marker allowed on a return annotation")
			}
			seenConst = true
			nc, ok := kw.Value.(*ast.NameConstant)
			if !ok {
				return nil, false, xerrs.At(xerrs.InvalidType, node, "const= must be a boolean")
			}
			isConst, _ = nc.Value.(bool)
			continue
		}
		kept = append(kept, kw)
	}
	unitKeywords := 0
	for _, kw := range kept {
		if kw.Arg == "unit" {
			unitKeywords++
		}
	}
	if unitKeywords > 1 {
		return nil, false, xerrs.At(xerrs.Structure, node, "at most one unit description allowed on a return annotation")
	}

	// The canonical spelling for a const return, e.g. num(const), passes
	// "const" as a positional name rather than a keyword, so it must be
	// pulled out of call.Args before types.ParseType ever sees it, or it
	// is swallowed there as a bogus unit named "const".
	var units []ast.Node
	for _, a := range call.Args {
		if nm, ok := a.(*ast.Name); ok && nm.Id == "const" {
			if seenConst {
				return nil, false, xerrs.At(xerrs.Structure, node, "at most one const marker allowed on a return annotation")
			}
			seenConst = true
			isConst = true
			continue
		}
		units = append(units, a)
	}
	if len(units)+unitKeywords > 1 {
		return nil, false, xerrs.At(xerrs.Structure, node, "at most one unit description allowed on a return annotation")
	}

	rebuilt := ast.NewCall(call.Line(), call.Func, units, kept...)
	t, err := types.ParseType(rebuilt)
	if err != nil {
		return nil, false, err
	}
	return t, isConst, nil
}
