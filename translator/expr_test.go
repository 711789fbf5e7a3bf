package translator

import (
	"testing"

	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/types"
)

func TestTranslateNumLitInteger(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewInt(1, 42))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	if n.Value != int64(42) || n.Typ.BaseKind != types.Num {
		t.Errorf("TranslateExpr(42) = %+v, want num literal 42", n)
	}
}

func TestTranslateNumLitFloatScalesByDecimalScale(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewFloat(1, 1.5))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	want := int64(1.5 * float64(DecimalScale))
	if n.Value != want || n.Typ.BaseKind != types.Decimal {
		t.Errorf("TranslateExpr(1.5) = %+v, want decimal literal %d", n, want)
	}
}

func TestTranslateStrLitAddressAndBytes32(t *testing.T) {
	tr := newTestTranslator()
	addrLit := "0x" + stringsRepeat("a", 40)
	n, err := tr.TranslateExpr(ast.NewStr(1, addrLit))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	if n.Typ.BaseKind != types.Address {
		t.Errorf("TranslateExpr(%q) type = %v, want address", addrLit, n.Typ.BaseKind)
	}

	bytesLit := "0x" + stringsRepeat("b", 64)
	n2, err := tr.TranslateExpr(ast.NewStr(1, bytesLit))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	if n2.Typ.BaseKind != types.Bytes32 {
		t.Errorf("TranslateExpr(%q) type = %v, want bytes32", bytesLit, n2.Typ.BaseKind)
	}

	if _, err := tr.TranslateExpr(ast.NewStr(1, "not-hex")); err == nil {
		t.Error("expected an error for a malformed string literal")
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}

func TestTranslateNameConstants(t *testing.T) {
	tr := newTestTranslator()
	truth, err := tr.TranslateExpr(ast.NewNameConstant(1, true))
	if err != nil {
		t.Fatalf("TranslateExpr(True) error = %v", err)
	}
	if truth.Value != int64(1) {
		t.Errorf("TranslateExpr(True) = %+v, want literal 1", truth)
	}
	none, err := tr.TranslateExpr(ast.NewNameConstant(1, nil))
	if err != nil {
		t.Fatalf("TranslateExpr(None) error = %v", err)
	}
	if !types.Equal(none.Typ, types.NullType) {
		t.Errorf("TranslateExpr(None) type = %+v, want NullType", none.Typ)
	}
}

func TestTranslateNameSelfIsAddress(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewName(1, "self"))
	if err != nil {
		t.Fatalf("TranslateExpr(self) error = %v", err)
	}
	mustMnemonic(t, n, "address")
}

func TestTranslateNameArgLoadsAndClamps(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.Args["amount"] = slotPtr(64, types.NewBase(types.Num, nil, false))
	n, err := tr.TranslateExpr(ast.NewName(1, "amount"))
	if err != nil {
		t.Fatalf("TranslateExpr(amount) error = %v", err)
	}
	mustMnemonic(t, n, "clamp")
}

func TestTranslateNameUndeclaredIsError(t *testing.T) {
	tr := newTestTranslator()
	if _, err := tr.TranslateExpr(ast.NewName(1, "nope")); err == nil {
		t.Error("expected an error for an undeclared name")
	}
}

func TestTranslateAttributeMsgSender(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewAttribute(1, ast.NewName(1, "msg"), "sender"))
	if err != nil {
		t.Fatalf("TranslateExpr(msg.sender) error = %v", err)
	}
	mustMnemonic(t, n, "caller")
}

func TestTranslateAttributeSelfBalanceUsesBalanceNotStorage(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewAttribute(1, ast.NewName(1, "self"), "balance"))
	if err != nil {
		t.Fatalf("TranslateExpr(self.balance) error = %v", err)
	}
	// finishNum wraps balance's result in a clamp; the balance opcode
	// must appear somewhere in the tree, and sload must not.
	if containsMnemonic(n, "sload") {
		t.Error("self.balance must not read storage; it is the BALANCE opcode")
	}
	if !containsMnemonic(n, "balance") {
		t.Error("self.balance must use the balance opcode")
	}
}

func containsMnemonic(n *lir.Node, mnem string) bool {
	if n == nil {
		return false
	}
	if n.Mnemonic() == mnem {
		return true
	}
	for _, a := range n.Args {
		if containsMnemonic(a, mnem) {
			return true
		}
	}
	return false
}

func TestTranslateAttributeSelfStorageField(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.Globals["owner"] = slotPtr(0, types.NewBase(types.Address, nil, false))
	n, err := tr.TranslateExpr(ast.NewAttribute(1, ast.NewName(1, "self"), "owner"))
	if err != nil {
		t.Fatalf("TranslateExpr(self.owner) error = %v", err)
	}
	if !containsMnemonic(n, "sload") {
		t.Error("self.owner should read storage via sload")
	}
}

func TestTranslateBinOpAddCombinesUnits(t *testing.T) {
	tr := newTestTranslator()
	left := ast.NewInt(1, 5)
	right := ast.NewInt(1, 7)
	n, err := tr.TranslateExpr(ast.NewBinOp(1, left, "add", right))
	if err != nil {
		t.Fatalf("TranslateExpr(5+7) error = %v", err)
	}
	if !containsMnemonic(n, "add") {
		t.Error("expected an add opcode somewhere in the tree")
	}

	wei := types.Unit{"wei": 1}
	tr.Ctx.Vars["a"] = slotPtr(256, types.NewBase(types.Num, wei, false))
	tr.Ctx.Vars["b"] = slotPtr(288, types.NewBase(types.Num, wei, false))
	n, err = tr.TranslateExpr(ast.NewBinOp(1, ast.NewName(1, "a"), "add", ast.NewName(1, "b")))
	if err != nil {
		t.Fatalf("TranslateExpr(a+b) error = %v", err)
	}
	if !n.Typ.Unit.Equal(wei) {
		t.Errorf("a+b unit = %v, want %v", n.Typ.Unit, wei)
	}
}

func TestTranslateBinOpAddRejectsTwoPositionalOperands(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.Vars["a"] = slotPtr(256, types.NewBase(types.Num, nil, true))
	tr.Ctx.Vars["b"] = slotPtr(288, types.NewBase(types.Num, nil, true))
	left := ast.NewName(1, "a")
	right := ast.NewName(1, "b")
	if _, err := tr.TranslateExpr(ast.NewBinOp(1, left, "add", right)); err == nil {
		t.Error("expected an error: cannot add two positional values")
	}
}

// TestGuardedDecimalMulShape pins the overflow-guarded decimal
// multiply pattern (spec.md's testable property for decimal
// multiplication): nested with-bindings around an assert that the
// product divides back evenly, or the left operand is zero.
func TestGuardedDecimalMulShape(t *testing.T) {
	tr := newTestTranslator()
	left := lir.Int(30_000_000_000, types.NewBase(types.Decimal, nil, false))
	right := lir.Int(20_000_000_000, types.NewBase(types.Decimal, nil, false))
	out, err := tr.guardedDecimalMul(left, right, nil)
	if err != nil {
		t.Fatalf("guardedDecimalMul() error = %v", err)
	}
	mustMnemonic(t, out, "with") // with _L
	withR := out.Args[2]
	mustMnemonic(t, withR, "with") // with _R
	withAns := withR.Args[2]
	mustMnemonic(t, withAns, "with") // with _ans
	body := withAns.Args[2]
	mustMnemonic(t, body, "seq")
	mustMnemonic(t, body.Args[0], "assert")
	guard := body.Args[0].Args[0]
	mustMnemonic(t, guard, "or")
	if !containsMnemonic(guard, "sdiv") || !containsMnemonic(guard, "eq") {
		t.Errorf("guard = %+v, want or(eq(sdiv(ans,_L),_R), eq(_L,0))", guard)
	}
	// both-decimal operands: the final value divides back down by
	// DecimalScale (spec.md §3's decimal representation invariant).
	if !containsMnemonic(body.Args[1], "sdiv") {
		t.Error("both-decimal product must be rescaled down by DecimalScale")
	}
}

func TestTranslateCompareRejectsChainedComparisons(t *testing.T) {
	tr := newTestTranslator()
	n := ast.NewCompare(1, ast.NewInt(1, 1), "lt", ast.NewInt(1, 2))
	n.Ops = append(n.Ops, "lt")
	n.Comparators = append(n.Comparators, ast.NewInt(1, 3))
	if _, err := tr.TranslateExpr(n); err == nil {
		t.Error("expected an error: chained comparisons are not supported")
	}
}

func TestTranslateCompareOrderedUsesSignedMnemonic(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewCompare(1, ast.NewInt(1, 1), "lt", ast.NewInt(1, 2)))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	mustMnemonic(t, n, "slt")
}

func TestTranslateCompareNotEqualIsIszeroOfEq(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewCompare(1, ast.NewInt(1, 1), "ne", ast.NewInt(1, 2)))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	mustMnemonic(t, n, "iszero")
	mustMnemonic(t, n.Args[0], "eq")
}

func TestTranslateBoolOpRequiresExactlyTwoOperands(t *testing.T) {
	tr := newTestTranslator()
	bo := ast.NewBoolOp(1, "and", ast.NewNameConstant(1, true))
	if _, err := tr.TranslateExpr(bo); err == nil {
		t.Error("expected an error: and/or requires exactly two operands")
	}
}

func TestTranslateUnaryOpNegation(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateExpr(ast.NewUnaryOp(1, "neg", ast.NewInt(1, 5)))
	if err != nil {
		t.Fatalf("TranslateExpr(-5) error = %v", err)
	}
	if !containsMnemonic(n, "sub") {
		t.Error("unary negation should lower through sub(0, operand)")
	}
}

func TestTranslateCallFloorOnDecimal(t *testing.T) {
	tr := newTestTranslator()
	arg := ast.NewFloat(1, 2.5)
	n, err := tr.TranslateExpr(ast.NewCall(1, ast.NewName(1, "floor"), []ast.Node{arg}))
	if err != nil {
		t.Fatalf("TranslateExpr(floor(2.5)) error = %v", err)
	}
	if !containsMnemonic(n, "sdiv") {
		t.Error("floor on a decimal should divide by DecimalScale")
	}
}

func TestTranslateCallUnsupportedIsStructureError(t *testing.T) {
	tr := newTestTranslator()
	if _, err := tr.TranslateExpr(ast.NewCall(1, ast.NewName(1, "nested_call"), nil)); err == nil {
		t.Error("expected an error: unsupported/nested call")
	}
}

func TestTranslateListRejectsEmpty(t *testing.T) {
	tr := newTestTranslator()
	if _, err := tr.TranslateExpr(ast.NewList(1)); err == nil {
		t.Error("expected an error: empty list literal")
	}
}

func TestTranslateListMixedTypesIsDeferredToMixed(t *testing.T) {
	tr := newTestTranslator()
	elts := []ast.Node{ast.NewInt(1, 1), ast.NewNameConstant(1, true)}
	n, err := tr.TranslateExpr(ast.NewList(1, elts...))
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	if n.Typ.Elem != types.Mixed {
		t.Errorf("heterogeneous list literal element type = %+v, want the Mixed singleton", n.Typ.Elem)
	}
}

func TestTranslateDictBuildsSortedStruct(t *testing.T) {
	tr := newTestTranslator()
	d := ast.NewDict(1,
		[]ast.Node{ast.NewName(1, "y"), ast.NewName(1, "x")},
		[]ast.Node{ast.NewInt(1, 1), ast.NewNameConstant(1, true)})
	n, err := tr.TranslateExpr(d)
	if err != nil {
		t.Fatalf("TranslateExpr() error = %v", err)
	}
	names := types.StructFieldNames(n.Typ)
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Errorf("struct field order = %v, want [x y]", names)
	}
}

func TestTranslateDictRejectsDuplicateKey(t *testing.T) {
	tr := newTestTranslator()
	d := ast.NewDict(1,
		[]ast.Node{ast.NewName(1, "x"), ast.NewName(1, "x")},
		[]ast.Node{ast.NewInt(1, 1), ast.NewInt(1, 2)})
	if _, err := tr.TranslateExpr(d); err == nil {
		t.Error("expected an error: duplicate struct literal key")
	}
}
