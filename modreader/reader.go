// Package modreader implements the module reader (spec.md §4.C):
// classifying a module's top-level statements into storage field
// declarations and function definitions.
//
// Grounded on lang/sem/reader.go's single top-to-bottom pass over a
// program's top-level forms, and lang/ysem/analyzer.go's
// buildSymbolTables duplicate-detection idiom.
package modreader

import (
	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// Field is a module-scope storage variable: a slot index assigned in
// source order and its declared type.
type Field struct {
	Name string
	Slot int
	Type *types.Type
	Node *ast.AnnAssign
}

// Module is the classified result of reading a source module: its
// storage fields (in slot order) and function definitions (in source
// order).
type Module struct {
	Fields    []*Field
	FieldsMap map[string]*Field
	Functions []*ast.FunctionDef
}

// Read classifies mod.Body per spec.md §4.C: annotated assignments at
// module scope declare storage fields (each getting the next
// sequential slot index); function definitions are preserved in
// source order; any other top-level form is a Structure error. No
// field may be redeclared, and all fields must precede all
// functions.
func Read(mod *ast.Module) (*Module, error) {
	out := &Module{FieldsMap: make(map[string]*Field)}
	seenFunction := false
	nextSlot := 0

	for _, stmt := range mod.Body {
		switch n := stmt.(type) {
		case *ast.AnnAssign:
			if seenFunction {
				return nil, xerrs.At(xerrs.Structure, n, "storage field %q declared after a function definition", n.Target.Id)
			}
			if _, dup := out.FieldsMap[n.Target.Id]; dup {
				return nil, xerrs.At(xerrs.VariableDeclaration, n, "storage field %q redeclared", n.Target.Id)
			}
			typ, err := types.ParseType(n.Annotation)
			if err != nil {
				return nil, err
			}
			if !types.IsVarnameValid(n.Target.Id, nil) {
				return nil, xerrs.At(xerrs.VariableDeclaration, n, "invalid storage field name %q", n.Target.Id)
			}
			f := &Field{Name: n.Target.Id, Slot: nextSlot, Type: typ, Node: n}
			nextSlot++
			out.Fields = append(out.Fields, f)
			out.FieldsMap[f.Name] = f

		case *ast.FunctionDef:
			seenFunction = true
			out.Functions = append(out.Functions, n)

		default:
			return nil, xerrs.At(xerrs.Structure, n, "unsupported top-level statement")
		}
	}

	if err := checkDuplicateFunctionNames(out.Functions); err != nil {
		return nil, err
	}
	return out, nil
}

// checkDuplicateFunctionNames runs before per-function translation
// and preempts per-function errors (spec.md §7, "Top-level duplicate-
// function-name detection runs before function translation").
func checkDuplicateFunctionNames(fns []*ast.FunctionDef) error {
	seen := make(map[string]bool, len(fns))
	for _, f := range fns {
		if seen[f.Name] {
			return xerrs.At(xerrs.VariableDeclaration, f, "duplicate function definition %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
