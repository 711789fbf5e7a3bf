// Package tctx implements the per-function translation context
// (spec.md §4.E): symbol tables for arguments, locals, and globals,
// plus the memory bump allocator. Its directory is named "context" so
// callers import it as github.com/jns4u/viperc/context, but the
// package itself is named tctx to avoid shadowing the standard
// library's context.Context (SPEC_FULL.md §0).
//
// Grounded on lang/ysem/ir.go's IRGen (a locals map plus an
// offset-converting frame cursor) and lang/yparse/symtab.go's
// SymbolTable/FuncScope split between global and per-function scope.
package tctx

import (
	"github.com/jns4u/viperc/binder"
	"github.com/jns4u/viperc/modreader"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// ReservedMemory is the first byte offset available to local
// variables; slots below it hold the prelude's fixed constants and
// the calldata selector word (spec.md §3).
const ReservedMemory int64 = 256

// Slot is a bound name's offset and type, common shape for args,
// vars, and globals.
type Slot struct {
	Offset int64
	Type   *types.Type
}

// Context is one function's translation-time state (spec.md §4.E).
type Context struct {
	Args    map[string]*Slot
	Vars    map[string]*Slot
	Globals map[string]*Slot
	ForVars map[string]bool

	ReturnType *types.Type
	IsConstant bool

	nextMem int64
}

// New builds a Context for bound, seeding Args from its parameter
// layout and Globals from the module's storage fields.
func New(bound *binder.Bound, globals map[string]*modreader.Field) *Context {
	args := make(map[string]*Slot, len(bound.Args))
	for _, p := range bound.Args {
		args[p.Name] = &Slot{Offset: p.Offset, Type: p.Type}
	}
	globalSlots := make(map[string]*Slot, len(globals))
	for name, f := range globals {
		globalSlots[name] = &Slot{Offset: int64(f.Slot), Type: f.Type}
	}
	return &Context{
		Args:       args,
		Vars:       make(map[string]*Slot),
		Globals:    globalSlots,
		ForVars:    make(map[string]bool),
		ReturnType: bound.ReturnType,
		IsConstant: bound.Const,
		nextMem:    ReservedMemory,
	}
}

// GetNextMem returns the current bump-allocation cursor (spec.md
// §4.E).
func (c *Context) GetNextMem() int64 { return c.nextMem }

// NewVariable validates name's uniqueness against args, vars, and
// globals, allocates it at the bump cursor, advances the cursor by
// 32*size_of(typ), and returns the allocated offset (spec.md §4.E).
func (c *Context) NewVariable(name string, typ *types.Type) (int64, error) {
	if _, exists := c.Args[name]; exists {
		return 0, xerrs.At(xerrs.VariableDeclaration, nil, "%q already declared as a parameter", name)
	}
	if _, exists := c.Vars[name]; exists {
		return 0, xerrs.At(xerrs.VariableDeclaration, nil, "%q already declared", name)
	}
	if _, exists := c.Globals[name]; exists {
		return 0, xerrs.At(xerrs.VariableDeclaration, nil, "%q already declared as a storage field", name)
	}
	size, err := types.GetSizeOfType(typ)
	if err != nil {
		return 0, err
	}
	offset := c.nextMem
	c.Vars[name] = &Slot{Offset: offset, Type: typ}
	c.nextMem += 32 * int64(size)
	return offset, nil
}

// Lookup resolves name against args, then vars, then globals, in that
// order (spec.md §4.F, "Name ... Otherwise lookup in args, then vars,
// then failure"). It returns the slot and which table it was found
// in: "arg", "var", "global", or "" if not found.
func (c *Context) Lookup(name string) (*Slot, string) {
	if s, ok := c.Args[name]; ok {
		return s, "arg"
	}
	if s, ok := c.Vars[name]; ok {
		return s, "var"
	}
	if s, ok := c.Globals[name]; ok {
		return s, "global"
	}
	return nil, ""
}

// PushForVar marks name as a live loop-index variable.
func (c *Context) PushForVar(name string) { c.ForVars[name] = true }

// PopForVar clears name's live loop-index marking.
func (c *Context) PopForVar(name string) { delete(c.ForVars, name) }
