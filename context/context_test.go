package tctx

import (
	"testing"

	"github.com/jns4u/viperc/binder"
	"github.com/jns4u/viperc/modreader"
	"github.com/jns4u/viperc/types"
)

func boundWithArgs() *binder.Bound {
	return &binder.Bound{
		Name: "f",
		Args: []*binder.Param{
			{Name: "to", Type: types.NewBase(types.Address, nil, false), Offset: 4},
		},
		ReturnType: types.NewBase(types.Bool, nil, false),
		Const:      true,
	}
}

func TestNewSeedsArgsAndGlobals(t *testing.T) {
	b := boundWithArgs()
	globals := map[string]*modreader.Field{
		"balance": {Name: "balance", Slot: 0, Type: types.NewBase(types.Num, nil, false)},
	}
	ctx := New(b, globals)

	if ctx.GetNextMem() != ReservedMemory {
		t.Errorf("GetNextMem() = %d, want %d", ctx.GetNextMem(), ReservedMemory)
	}
	if !ctx.IsConstant {
		t.Error("IsConstant should mirror Bound.Const")
	}
	slot, where := ctx.Lookup("to")
	if where != "arg" || slot.Offset != 4 {
		t.Errorf("Lookup(to) = (%+v, %q), want arg offset 4", slot, where)
	}
	gslot, gwhere := ctx.Lookup("balance")
	if gwhere != "global" || gslot.Offset != 0 {
		t.Errorf("Lookup(balance) = (%+v, %q), want global offset 0", gslot, gwhere)
	}
	if _, where := ctx.Lookup("nonexistent"); where != "" {
		t.Errorf("Lookup(nonexistent) where = %q, want empty", where)
	}
}

func TestLookupPrefersArgsOverGlobals(t *testing.T) {
	b := &binder.Bound{Args: []*binder.Param{{Name: "x", Type: types.NewBase(types.Num, nil, false), Offset: 4}}}
	globals := map[string]*modreader.Field{
		"x": {Name: "x", Slot: 0, Type: types.NewBase(types.Num, nil, false)},
	}
	ctx := New(b, globals)
	_, where := ctx.Lookup("x")
	if where != "arg" {
		t.Errorf("Lookup(x) where = %q, want arg (args shadow globals)", where)
	}
}

func TestNewVariableAllocatesAndAdvancesCursor(t *testing.T) {
	ctx := New(&binder.Bound{}, nil)
	off1, err := ctx.NewVariable("a", types.NewBase(types.Num, nil, false))
	if err != nil {
		t.Fatalf("NewVariable() error = %v", err)
	}
	if off1 != ReservedMemory {
		t.Errorf("first variable offset = %d, want %d", off1, ReservedMemory)
	}
	off2, err := ctx.NewVariable("b", types.NewList(types.NewBase(types.Num, nil, false), 3))
	if err != nil {
		t.Fatalf("NewVariable() error = %v", err)
	}
	if off2 != ReservedMemory+32 {
		t.Errorf("second variable offset = %d, want %d", off2, ReservedMemory+32)
	}
	if got := ctx.GetNextMem(); got != ReservedMemory+32+32*3 {
		t.Errorf("GetNextMem() = %d, want %d", got, ReservedMemory+32+32*3)
	}
}

func TestNewVariableRejectsRedeclaration(t *testing.T) {
	b := &binder.Bound{Args: []*binder.Param{{Name: "x", Type: types.NewBase(types.Num, nil, false), Offset: 4}}}
	globals := map[string]*modreader.Field{
		"g": {Name: "g", Slot: 0, Type: types.NewBase(types.Num, nil, false)},
	}
	ctx := New(b, globals)

	if _, err := ctx.NewVariable("x", types.NewBase(types.Num, nil, false)); err == nil {
		t.Error("expected an error: shadows a parameter")
	}
	if _, err := ctx.NewVariable("g", types.NewBase(types.Num, nil, false)); err == nil {
		t.Error("expected an error: shadows a storage field")
	}
	if _, err := ctx.NewVariable("y", types.NewBase(types.Num, nil, false)); err != nil {
		t.Fatalf("NewVariable() error = %v", err)
	}
	if _, err := ctx.NewVariable("y", types.NewBase(types.Num, nil, false)); err == nil {
		t.Error("expected an error: redeclared local")
	}
}

func TestForVarPushPop(t *testing.T) {
	ctx := New(&binder.Bound{}, nil)
	ctx.PushForVar("i")
	if !ctx.ForVars["i"] {
		t.Error("PushForVar should mark the name live")
	}
	ctx.PopForVar("i")
	if ctx.ForVars["i"] {
		t.Error("PopForVar should clear the name")
	}
}
